package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/countdown"
	"github.com/spec-kit/sla-countdown/internal/domain"
	"github.com/spec-kit/sla-countdown/internal/persistence"
	"github.com/spec-kit/sla-countdown/internal/repository"
	"github.com/spec-kit/sla-countdown/internal/service"
)

type memSnapshots struct {
	mu    sync.Mutex
	byID  map[string]domain.SLASnapshot
	lists [][]string
}

func (m *memSnapshots) GetByTicketID(_ context.Context, ticketID string) (*domain.SLASnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.byID[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &snap, nil
}

func (m *memSnapshots) ListByTicketIDs(_ context.Context, ticketIDs []string) ([]domain.SLASnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, append([]string(nil), ticketIDs...))
	var out []domain.SLASnapshot
	for _, id := range ticketIDs {
		if snap, ok := m.byID[id]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *memSnapshots) set(id string, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = domain.SLASnapshot{TicketID: id, Status: domain.TicketStatusOpen, RemainingMinutes: &remaining}
}

type recordingApplier struct {
	snaps   []domain.SLASnapshot
	sources []string
}

func (a *recordingApplier) ApplySnapshot(_ context.Context, snap domain.SLASnapshot, source string) (bool, error) {
	a.snaps = append(a.snaps, snap)
	a.sources = append(a.sources, source)
	return true, nil
}

func newCountdowns(t *testing.T, repo repository.SLASnapshotRepository) *service.CountdownService {
	t.Helper()
	s := service.NewCountdownService(service.CountdownDependencies{
		EngineOptions: countdown.Options{ManualTicks: true},
		SnapshotRepo:  repo,
	})
	t.Cleanup(s.Shutdown)
	return s
}

func TestSnapshotPoller_PollOnce_refreshes_watched_tickets(t *testing.T) {
	repo := &memSnapshots{byID: map[string]domain.SLASnapshot{}}
	repo.set("A", 30)
	repo.set("B", 45)
	repo.set("C", 60)
	countdowns := newCountdowns(t, repo)
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		_, err := countdowns.Watch(ctx, id, "v", func(countdown.Breakdown) {}, nil)
		require.NoError(t, err)
	}

	repo.set("A", 5)
	repo.set("B", 45)
	poller := NewSnapshotPoller(countdowns, repo, time.Minute, 1, zap.NewNop())

	applied, err := poller.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, [][]string{{"A"}, {"B"}}, repo.lists)

	status, ok := countdowns.Engine().Status("A")
	require.True(t, ok)
	assert.Equal(t, 300, status.Breakdown.TotalSeconds)
	_, tracked := countdowns.Engine().Status("C")
	assert.False(t, tracked)
}

func TestSnapshotPoller_without_store(t *testing.T) {
	poller := NewSnapshotPoller(newCountdowns(t, nil), nil, 0, 0, zap.NewNop())

	_, err := poller.PollOnce(context.Background())
	assert.ErrorIs(t, err, repository.ErrNoPool)
}

func TestSnapshotSubscriber_Handle(t *testing.T) {
	applier := &recordingApplier{}
	sub := NewSnapshotSubscriber(&persistence.Redis{}, "sla:snapshots", applier, zap.NewNop())
	ctx := context.Background()

	payload := []byte(`{"ticket_id":"T1","status":"IN_PROGRESS","remaining_minutes":12,
		"pause_conditions":{"manual":true,"holiday_freeze":true}}`)
	require.NoError(t, sub.Handle(ctx, payload))

	require.Len(t, applier.snaps, 1)
	snap := applier.snaps[0]
	assert.Equal(t, "T1", snap.TicketID)
	assert.Equal(t, domain.TicketStatusInProgress, snap.Status)
	assert.Equal(t, 12, *snap.RemainingMinutes)
	assert.True(t, snap.ManualPause)
	assert.Equal(t, map[string]bool{"holiday_freeze": true}, snap.ExtraPauses)
	assert.Equal(t, []string{service.SourceBroadcast}, applier.sources)

	assert.Error(t, sub.Handle(ctx, []byte(`{not json`)))
	assert.Error(t, sub.Handle(ctx, []byte(`{"remaining_minutes":3}`)))
	assert.Len(t, applier.snaps, 1)
}

func TestSnapshotSubscriber_Run_without_redis(t *testing.T) {
	sub := NewSnapshotSubscriber(&persistence.Redis{}, "sla:snapshots", &recordingApplier{}, zap.NewNop())
	assert.NoError(t, sub.Run(context.Background()))
}

func TestRedisSnapshotPublisher_requires_client(t *testing.T) {
	pub := NewRedisSnapshotPublisher(&persistence.Redis{}, "sla:snapshots")
	assert.Nil(t, pub)

	err := pub.PublishSnapshot(context.Background(), domain.SLASnapshot{TicketID: "T1"})
	assert.ErrorIs(t, err, persistence.ErrRedisNotConfigured)
}

func TestGroup_waits_for_workers(t *testing.T) {
	g := NewGroup(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var stopped []string
	for _, name := range []string{"a", "b"} {
		name := name
		g.Go(ctx, name, func(ctx context.Context) error {
			<-ctx.Done()
			mu.Lock()
			stopped = append(stopped, name)
			mu.Unlock()
			if name == "b" {
				return errors.New("b failed")
			}
			return nil
		})
	}

	cancel()
	g.Wait()
	assert.ElementsMatch(t, []string{"a", "b"}, stopped)
}
