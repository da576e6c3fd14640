package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/countdown"
	"github.com/spec-kit/sla-countdown/internal/domain"
	"github.com/spec-kit/sla-countdown/internal/events"
	"github.com/spec-kit/sla-countdown/internal/repository"
	apperrors "github.com/spec-kit/sla-countdown/pkg/util/errorutil"
)

// SnapshotPublisher fans an authoritative snapshot out to every replica.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap domain.SLASnapshot) error
}

// Snapshot sources reported with applied events.
const (
	SourcePush      = "push"
	SourcePoll      = "poll"
	SourceBroadcast = "broadcast"
)

// CountdownService connects dashboard viewers to the live SLA countdowns.
type CountdownService struct {
	engine     *countdown.Engine
	snapshots  repository.SLASnapshotRepository
	dispatcher events.Dispatcher
	publisher  SnapshotPublisher
	logger     *zap.Logger

	mu         sync.Mutex
	priorities map[string]domain.TicketPriority
	expiry     map[string]map[*countdown.Handle]countdown.ExpiredFunc
}

// CountdownDependencies bundles collaborators for the countdown service.
type CountdownDependencies struct {
	EngineOptions countdown.Options
	SnapshotRepo  repository.SLASnapshotRepository
	Dispatcher    events.Dispatcher
	Publisher     SnapshotPublisher
	Logger        *zap.Logger
}

// NewCountdownService constructs the service and its engine.
func NewCountdownService(deps CountdownDependencies) *CountdownService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CountdownService{
		snapshots:  deps.SnapshotRepo,
		dispatcher: deps.Dispatcher,
		publisher:  deps.Publisher,
		logger:     logger,
		priorities: make(map[string]domain.TicketPriority),
		expiry:     make(map[string]map[*countdown.Handle]countdown.ExpiredFunc),
	}
	opts := deps.EngineOptions
	if opts.Logger == nil {
		opts.Logger = logger
	}
	opts.OnExpired = s.handleExpired
	s.engine = countdown.NewEngine(opts)
	return s
}

// Engine exposes the underlying countdown engine.
func (s *CountdownService) Engine() *countdown.Engine {
	return s.engine
}

// Watch registers onTick for the ticket's countdown. The latest authoritative
// snapshot is loaded first; without a snapshot store the viewer can only join
// a ticket that is already being tracked. onExpired, when set, is called once
// when the engine latches the ticket's deadline.
func (s *CountdownService) Watch(ctx context.Context, ticketID, viewerID string, onTick countdown.TickFunc, onExpired countdown.ExpiredFunc) (*countdown.Handle, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}

	var (
		handle *countdown.Handle
		err    error
	)
	snap, loadErr := s.loadSnapshot(ctx, ticketID)
	switch {
	case loadErr == nil:
		s.rememberPriority(snap)
		handle, err = s.engine.Register(ticketID, ToCountdownSnapshot(*snap), onTick, nil)
	case errors.Is(loadErr, repository.ErrNoPool):
		handle, err = s.engine.Join(ticketID, onTick, nil)
		if errors.Is(err, countdown.ErrNotTracked) {
			return nil, apperrors.NewUnavailable("sla snapshot store", loadErr)
		}
	default:
		return nil, loadErr
	}
	if err != nil {
		return nil, mapCountdownError(err)
	}
	if onExpired != nil {
		s.addExpiryListener(ticketID, handle, onExpired)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventSLAWatchStarted,
		TicketID: ticketID,
		Payload:  events.SLAWatchPayload{ViewerID: viewerID},
	})
	return handle, nil
}

// Unwatch releases a handle obtained from Watch.
func (s *CountdownService) Unwatch(ctx context.Context, handle *countdown.Handle, viewerID string) {
	if handle == nil {
		return
	}
	s.removeExpiryListener(handle)
	handle.Close()
	s.publishEvent(ctx, events.Event{
		Type:     events.EventSLAWatchStopped,
		TicketID: handle.ItemID(),
		Payload:  events.SLAWatchPayload{ViewerID: viewerID},
	})
}

// Current returns the ticket's countdown. live is false when nobody watches
// the ticket and the value was computed once from the stored snapshot.
func (s *CountdownService) Current(ctx context.Context, ticketID string) (status countdown.Status, live bool, err error) {
	if status, ok := s.engine.Status(ticketID); ok {
		return status, true, nil
	}
	snap, err := s.loadSnapshot(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNoPool) {
			return countdown.Status{}, false, apperrors.NewNotFound("sla countdown", map[string]any{"ticket_id": ticketID})
		}
		return countdown.Status{}, false, err
	}
	cs := ToCountdownSnapshot(*snap)
	remaining := int64(0)
	if cs.RemainingMinutes != nil {
		remaining = int64(*cs.RemainingMinutes) * 60
	}
	return countdown.Status{
		ItemID:       ticketID,
		Breakdown:    countdown.Compute(remaining, cs.Pauses, cs.Lifecycle),
		TotalMinutes: cs.TotalMinutes,
		Lifecycle:    cs.Lifecycle,
		Pauses:       cs.Pauses,
	}, false, nil
}

// PushSnapshot accepts an authoritative snapshot from the backend. With a
// publisher configured it is broadcast to all replicas (this one included);
// otherwise it is applied locally.
func (s *CountdownService) PushSnapshot(ctx context.Context, snap domain.SLASnapshot) error {
	if strings.TrimSpace(snap.TicketID) == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	if s.publisher != nil {
		err := s.publisher.PublishSnapshot(ctx, snap)
		if err == nil {
			return nil
		}
		s.logger.Warn("snapshot broadcast failed; applying locally", zap.String("ticket_id", snap.TicketID), zap.Error(err))
	}
	_, err := s.ApplySnapshot(ctx, snap, SourcePush)
	return err
}

// ApplySnapshot feeds a snapshot into the engine. Snapshots for tickets that
// nobody watches are dropped and reported as not applied.
func (s *CountdownService) ApplySnapshot(ctx context.Context, snap domain.SLASnapshot, source string) (bool, error) {
	cs := ToCountdownSnapshot(snap)
	if err := s.engine.Update(snap.TicketID, cs); err != nil {
		if errors.Is(err, countdown.ErrNotTracked) {
			return false, nil
		}
		return false, mapCountdownError(err)
	}
	s.rememberPriority(&snap)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventSLASnapshotApplied,
		TicketID: snap.TicketID,
		Payload: events.SLASnapshotAppliedPayload{
			RemainingMinutes: snap.RemainingMinutes,
			Status:           snap.Status,
			Paused:           cs.Pauses.Paused(),
			Source:           source,
		},
	})
	return true, nil
}

// TrackedTickets lists the tickets currently watched.
func (s *CountdownService) TrackedTickets() []string {
	return s.engine.Items()
}

// Shutdown stops the countdown loop.
func (s *CountdownService) Shutdown() {
	s.engine.Stop()
}

// handleExpired is the engine's expiry hook. It runs once per latched
// deadline and fans out to every viewer that asked for it.
func (s *CountdownService) handleExpired(ticketID string) {
	s.mu.Lock()
	listeners := make([]countdown.ExpiredFunc, 0, len(s.expiry[ticketID]))
	for _, fn := range s.expiry[ticketID] {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ticketID)
	}

	payload := events.SLAExpiredPayload{Priority: s.priority(ticketID)}
	if status, ok := s.engine.Status(ticketID); ok {
		payload.TotalMinutes = status.TotalMinutes
		payload.Observers = status.Observers
	}
	s.publishEvent(context.Background(), events.Event{
		Type:     events.EventSLAExpired,
		TicketID: ticketID,
		Payload:  payload,
	})
}

func (s *CountdownService) loadSnapshot(ctx context.Context, ticketID string) (*domain.SLASnapshot, error) {
	if s.snapshots == nil {
		return nil, repository.ErrNoPool
	}
	snap, err := s.snapshots.GetByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("sla snapshot", map[string]any{"ticket_id": ticketID})
		}
		if errors.Is(err, repository.ErrNoPool) {
			return nil, err
		}
		return nil, apperrors.MapError(err)
	}
	return snap, nil
}

func (s *CountdownService) rememberPriority(snap *domain.SLASnapshot) {
	if snap == nil || snap.Priority == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorities[snap.TicketID] = snap.Priority
}

func (s *CountdownService) addExpiryListener(ticketID string, handle *countdown.Handle, fn countdown.ExpiredFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiry[ticketID] == nil {
		s.expiry[ticketID] = make(map[*countdown.Handle]countdown.ExpiredFunc)
	}
	s.expiry[ticketID][handle] = fn
}

func (s *CountdownService) removeExpiryListener(handle *countdown.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticketID := handle.ItemID()
	delete(s.expiry[ticketID], handle)
	if len(s.expiry[ticketID]) == 0 {
		delete(s.expiry, ticketID)
	}
}

func (s *CountdownService) priority(ticketID string) domain.TicketPriority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priorities[ticketID]
}

func (s *CountdownService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// ToCountdownSnapshot maps a backend snapshot onto the engine's input.
// Extra pause reasons are combined with the well-known ones by OR.
func ToCountdownSnapshot(snap domain.SLASnapshot) countdown.Snapshot {
	pauses := countdown.PauseConditions{
		countdown.PauseManual:               snap.ManualPause,
		countdown.PauseAwaitingReply:        snap.AwaitingReplyPause,
		countdown.PauseOutsideBusinessHours: snap.OutsideBusinessHours,
	}
	for reason, on := range snap.ExtraPauses {
		pauses[reason] = pauses[reason] || on
	}
	lifecycle := countdown.LifecycleActive
	if snap.Status.IsFinished() {
		lifecycle = countdown.LifecycleCompleted
	}
	return countdown.Snapshot{
		RemainingMinutes: snap.RemainingMinutes,
		TotalMinutes:     snap.TotalMinutes,
		Lifecycle:        lifecycle,
		Pauses:           pauses,
	}
}

func mapCountdownError(err error) error {
	switch {
	case errors.Is(err, countdown.ErrEmptyItemID):
		return apperrors.NewValidationError("ticket id required", nil)
	case errors.Is(err, countdown.ErrNilObserver):
		return apperrors.NewInternalError(err)
	case errors.Is(err, countdown.ErrNotTracked):
		return apperrors.NewNotFound("sla countdown", nil)
	default:
		return err
	}
}
