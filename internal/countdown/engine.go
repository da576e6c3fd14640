package countdown

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/observability"
)

const (
	DefaultTickInterval          = time.Second
	DefaultResyncIntervalTicks   = 10
	DefaultDriftToleranceSeconds = 60
)

var (
	// ErrEmptyItemID is returned when registering without an item identity.
	ErrEmptyItemID = errors.New("countdown: empty item id")
	// ErrNilObserver is returned when registering without a tick callback.
	ErrNilObserver = errors.New("countdown: nil tick callback")
	// ErrNotTracked is returned when updating an item nobody observes.
	ErrNotTracked = errors.New("countdown: item not tracked")
)

// Options configures an Engine.
type Options struct {
	TickInterval          time.Duration
	ResyncIntervalTicks   int
	DriftToleranceSeconds int
	// ManualTicks leaves tick driving to the caller through Tick.
	ManualTicks bool
	// OnExpired is invoked once per crossed deadline, in addition to the
	// observer supplied expiry callback.
	OnExpired ExpiredFunc
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// Status describes a tracked item at the time of the call.
type Status struct {
	ItemID       string
	Breakdown    Breakdown
	TotalMinutes *int
	Lifecycle    Lifecycle
	Pauses       PauseConditions
	Observers    int
}

// Engine keeps live countdowns for many items on one shared ticker.
//
// An item is tracked while at least one observer is registered for it. The
// loop starts with the first registration and stops once the last item is
// released; Start and Stop control it explicitly.
type Engine struct {
	mu             sync.Mutex
	opts           Options
	logger         *zap.Logger
	metrics        *observability.Metrics
	entries        map[string]*entry
	nextObserverID uint64
	tickCount      uint64
	running        bool
	stopCh         chan struct{}
}

// NewEngine builds an idle engine.
func NewEngine(opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ResyncIntervalTicks <= 0 {
		opts.ResyncIntervalTicks = DefaultResyncIntervalTicks
	}
	if opts.DriftToleranceSeconds <= 0 {
		opts.DriftToleranceSeconds = DefaultDriftToleranceSeconds
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		entries: make(map[string]*entry),
	}
}

// Register adds an observer for itemID. The first registration seeds the
// countdown from snap; later ones keep the running counter and only resync
// when snap carries minutes other than the last synced ones. onTick receives
// the current breakdown before Register returns.
//
// An item seeded with missing or zero minutes is overdue from the start and
// its expiry fires on the first tick that finds it active and unpaused.
func (e *Engine) Register(itemID string, snap Snapshot, onTick TickFunc, onExpired ExpiredFunc) (*Handle, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, ErrEmptyItemID
	}
	if onTick == nil {
		return nil, ErrNilObserver
	}

	e.mu.Lock()
	e.nextObserverID++
	obs := observer{id: e.nextObserverID, onTick: onTick, onExpired: onExpired}

	ent, ok := e.entries[itemID]
	if !ok {
		ent = newEntry(itemID, snap)
		e.entries[itemID] = ent
		e.logger.Debug("tracking item", zap.String("ticket_id", itemID), zap.Int64("remaining_seconds", ent.remaining))
	} else if ent.apply(snap, int64(e.opts.DriftToleranceSeconds)) {
		e.metrics.RecordResync()
		e.logger.Debug("resynced on registration", zap.String("ticket_id", itemID), zap.Int64("remaining_seconds", ent.remaining))
	}
	ent.observers.add(obs)
	b := ent.breakdown()
	e.startLocked()
	e.mu.Unlock()

	e.metrics.RecordRegistration()
	onTick(b)
	return &Handle{engine: e, itemID: itemID, observerID: obs.id}, nil
}

// Join adds an observer to an item that is already tracked, keeping its
// countdown as is. It returns ErrNotTracked when nobody observes itemID.
func (e *Engine) Join(itemID string, onTick TickFunc, onExpired ExpiredFunc) (*Handle, error) {
	if onTick == nil {
		return nil, ErrNilObserver
	}

	e.mu.Lock()
	ent, ok := e.entries[itemID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNotTracked
	}
	e.nextObserverID++
	obs := observer{id: e.nextObserverID, onTick: onTick, onExpired: onExpired}
	ent.observers.add(obs)
	b := ent.breakdown()
	e.startLocked()
	e.mu.Unlock()

	e.metrics.RecordRegistration()
	onTick(b)
	return &Handle{engine: e, itemID: itemID, observerID: obs.id}, nil
}

// Unregister releases the observer behind h. Unknown or already released
// handles are ignored. No callbacks reach the observer afterwards except from
// a tick that was already in progress.
func (e *Engine) Unregister(h *Handle) {
	if h == nil || h.engine != e {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[h.itemID]
	if !ok || !ent.observers.remove(h.observerID) {
		return
	}
	e.metrics.RecordUnregistration()
	if ent.observers.len() == 0 {
		delete(e.entries, h.itemID)
		e.logger.Debug("released item", zap.String("ticket_id", h.itemID))
	}
	if len(e.entries) == 0 {
		e.stopLocked()
	}
}

// Update pushes a fresh authoritative snapshot for a tracked item.
func (e *Engine) Update(itemID string, snap Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[itemID]
	if !ok {
		return ErrNotTracked
	}
	if ent.apply(snap, int64(e.opts.DriftToleranceSeconds)) {
		e.metrics.RecordResync()
		e.logger.Debug("resynced on update", zap.String("ticket_id", itemID), zap.Int64("remaining_seconds", ent.remaining))
	}
	return nil
}

// Status returns the current state of itemID.
func (e *Engine) Status(itemID string) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[itemID]
	if !ok {
		return Status{}, false
	}
	return Status{
		ItemID:       itemID,
		Breakdown:    ent.breakdown(),
		TotalMinutes: copyInt(ent.totalMinutes),
		Lifecycle:    ent.lifecycle,
		Pauses:       ent.pauses.clone(),
		Observers:    ent.observers.len(),
	}, true
}

// Items lists tracked item ids in sorted order.
func (e *Engine) Items() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked items.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Handle is the ownership token returned by Register.
type Handle struct {
	engine     *Engine
	itemID     string
	observerID uint64
}

// ItemID returns the item the handle observes.
func (h *Handle) ItemID() string {
	return h.itemID
}

// Close unregisters the observer. It is safe to call more than once.
func (h *Handle) Close() {
	if h == nil || h.engine == nil {
		return
	}
	h.engine.Unregister(h)
}
