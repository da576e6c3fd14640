package countdown

// Lifecycle is the countdown-relevant status of a tracked item.
type Lifecycle string

const (
	LifecycleActive    Lifecycle = "active"
	LifecycleCompleted Lifecycle = "completed"
)

// Well-known pause reasons. The set is open: any other key is composed the same way.
const (
	PauseManual               = "manual"
	PauseAwaitingReply        = "awaiting_external_reply"
	PauseOutsideBusinessHours = "outside_business_hours"
)

// PauseConditions holds independently sourced pause flags keyed by reason.
type PauseConditions map[string]bool

// Paused reports whether any condition is set.
func (p PauseConditions) Paused() bool {
	for _, on := range p {
		if on {
			return true
		}
	}
	return false
}

func (p PauseConditions) clone() PauseConditions {
	out := make(PauseConditions, len(p))
	for reason, on := range p {
		out[reason] = on
	}
	return out
}

// Snapshot is the authoritative SLA state pushed in by the caller.
type Snapshot struct {
	RemainingMinutes *int
	TotalMinutes     *int
	Lifecycle        Lifecycle
	Pauses           PauseConditions
}

func (s Snapshot) minutes() int {
	if s.RemainingMinutes == nil || *s.RemainingMinutes < 0 {
		return 0
	}
	return *s.RemainingMinutes
}

func (s Snapshot) lifecycle() Lifecycle {
	if s.Lifecycle == LifecycleCompleted {
		return LifecycleCompleted
	}
	return LifecycleActive
}

// Breakdown is the displayable form of a countdown on one tick.
type Breakdown struct {
	Hours        int
	Minutes      int
	Seconds      int
	IsOverdue    bool
	IsPaused     bool
	TotalSeconds int
}

// Compute derives the breakdown for the given remaining seconds. Paused items
// keep reporting their frozen remaining time.
func Compute(remainingSeconds int64, pauses PauseConditions, lifecycle Lifecycle) Breakdown {
	if lifecycle != LifecycleActive || remainingSeconds <= 0 {
		return Breakdown{IsOverdue: remainingSeconds <= 0}
	}
	total := int(remainingSeconds)
	return Breakdown{
		Hours:        total / 3600,
		Minutes:      (total % 3600) / 60,
		Seconds:      total % 60,
		IsPaused:     pauses.Paused(),
		TotalSeconds: total,
	}
}
