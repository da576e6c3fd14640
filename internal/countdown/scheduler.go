package countdown

import (
	"time"

	"go.uber.org/zap"
)

type delivery struct {
	itemID    string
	breakdown Breakdown
	observers observerList
	expired   bool
	onExpired ExpiredFunc
}

// Start launches the shared ticking loop. It is a no-op when already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked()
}

// Stop halts the loop. Tracked items are kept and the loop restarts on the
// next registration.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Running reports whether the scheduler is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Tick runs one scheduler step synchronously.
func (e *Engine) Tick() {
	e.tick(nil)
}

func (e *Engine) startLocked() {
	if e.running {
		return
	}
	e.running = true
	if e.opts.ManualTicks {
		return
	}
	e.stopCh = make(chan struct{})
	go e.run(e.stopCh)
	e.logger.Debug("countdown scheduler started", zap.Duration("interval", e.opts.TickInterval))
}

func (e *Engine) stopLocked() {
	if !e.running {
		return
	}
	e.running = false
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
		e.logger.Debug("countdown scheduler stopped", zap.Uint64("tick", e.tickCount))
	}
}

func (e *Engine) run(stopCh chan struct{}) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.tick(stopCh)
		}
	}
}

// tick advances every entry by one second. loop identifies the goroutine
// driving it so a loop that was already replaced cannot tick twice.
func (e *Engine) tick(loop chan struct{}) {
	e.mu.Lock()
	if loop != nil && loop != e.stopCh {
		e.mu.Unlock()
		return
	}

	e.tickCount++
	cadence := e.tickCount%uint64(e.opts.ResyncIntervalTicks) == 0

	deliveries := make([]delivery, 0, len(e.entries))
	for id, ent := range e.entries {
		if ent.observers.len() == 0 {
			e.logger.DPanic("tracked item without observers", zap.String("ticket_id", id))
			delete(e.entries, id)
			continue
		}
		res := ent.tick(cadence)
		if res.resynced {
			e.metrics.RecordResync()
		}
		d := delivery{
			itemID:    id,
			breakdown: res.breakdown,
			observers: ent.observers.snapshot(),
			expired:   res.expired,
		}
		if res.expired {
			d.onExpired = d.observers.expiryHandler()
		}
		deliveries = append(deliveries, d)
	}
	if len(e.entries) == 0 {
		e.stopLocked()
	}
	hook := e.opts.OnExpired
	tickCount := e.tickCount
	e.mu.Unlock()

	e.metrics.RecordTick(len(deliveries))
	for _, d := range deliveries {
		if d.expired {
			e.metrics.RecordExpiration()
			e.logger.Info("sla deadline crossed", zap.String("ticket_id", d.itemID), zap.Uint64("tick", tickCount))
			if d.onExpired != nil {
				d.onExpired(d.itemID)
			}
			if hook != nil {
				hook(d.itemID)
			}
		}
		d.observers.notify(d.breakdown)
	}
}
