package countdown

// minResyncDriftSeconds is the smallest correction applied by a cadence resync.
const minResyncDriftSeconds = 1

// pendingSync is an authoritative value waiting for the next cadence tick.
// elapsed counts the seconds decremented locally since it was pushed.
type pendingSync struct {
	minutes int
	elapsed int64
}

type entry struct {
	itemID            string
	remaining         int64
	lastSyncedMinutes int
	totalMinutes      *int
	pending           *pendingSync
	pauses            PauseConditions
	lifecycle         Lifecycle
	observers         observerList
	crossed           bool
}

type tickResult struct {
	breakdown Breakdown
	resynced  bool
	expired   bool
}

func newEntry(itemID string, snap Snapshot) *entry {
	minutes := snap.minutes()
	return &entry{
		itemID:            itemID,
		remaining:         int64(minutes) * 60,
		lastSyncedMinutes: minutes,
		totalMinutes:      copyInt(snap.TotalMinutes),
		pauses:            snap.Pauses.clone(),
		lifecycle:         snap.lifecycle(),
	}
}

// apply takes a fresh authoritative snapshot. Pause flags and lifecycle are
// replaced at once. The counter only moves when the authoritative minutes
// differ from the last synced value: immediately when the implied drift
// exceeds tolerance, otherwise on the next cadence tick. It reports whether
// the local counter was resynced.
func (ent *entry) apply(snap Snapshot, toleranceSeconds int64) bool {
	ent.pauses = snap.Pauses.clone()
	ent.lifecycle = snap.lifecycle()
	if snap.TotalMinutes != nil {
		ent.totalMinutes = copyInt(snap.TotalMinutes)
	}

	minutes := snap.minutes()
	if minutes == ent.lastSyncedMinutes {
		ent.pending = nil
		return false
	}
	// remaining is the last synced value minus the seconds counted since.
	if abs64(ent.remaining-int64(minutes)*60) > toleranceSeconds {
		ent.resyncTo(minutes)
		return true
	}
	ent.pending = &pendingSync{minutes: minutes}
	return false
}

func (ent *entry) resyncTo(minutes int) {
	ent.remaining = int64(minutes) * 60
	ent.lastSyncedMinutes = minutes
	ent.pending = nil
}

// settlePending applies a pending authoritative value, projected forward by the
// time that elapsed locally since it arrived.
func (ent *entry) settlePending() bool {
	p := ent.pending
	if p == nil {
		return false
	}
	ent.pending = nil
	ent.lastSyncedMinutes = p.minutes

	target := int64(p.minutes)*60 - p.elapsed
	if target < 0 {
		target = 0
	}
	if abs64(target-ent.remaining) < minResyncDriftSeconds {
		return false
	}
	ent.remaining = target
	return true
}

func (ent *entry) paused() bool {
	return ent.pauses.Paused()
}

func (ent *entry) advance() {
	if ent.lifecycle != LifecycleActive || ent.paused() || ent.remaining <= 0 {
		return
	}
	ent.remaining--
	if ent.pending != nil {
		ent.pending.elapsed++
	}
}

func (ent *entry) breakdown() Breakdown {
	return Compute(ent.remaining, ent.pauses, ent.lifecycle)
}

// crossDeadline latches the first time an active, unpaused item reaches zero.
func (ent *entry) crossDeadline(b Breakdown) bool {
	if ent.crossed || !b.IsOverdue || ent.lifecycle != LifecycleActive || ent.paused() {
		return false
	}
	ent.crossed = true
	return true
}

func (ent *entry) tick(cadence bool) tickResult {
	var res tickResult
	if cadence {
		res.resynced = ent.settlePending()
	}
	ent.advance()
	res.breakdown = ent.breakdown()
	res.expired = ent.crossDeadline(res.breakdown)
	return res
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
