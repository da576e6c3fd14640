package domain

import "time"

// SLASnapshot is the authoritative SLA state of a ticket as computed by the
// backend. Remaining and total minutes are nil until a policy applies.
type SLASnapshot struct {
	TicketID             string
	Priority             TicketPriority
	Status               TicketStatus
	RemainingMinutes     *int
	TotalMinutes         *int
	ManualPause          bool
	AwaitingReplyPause   bool
	OutsideBusinessHours bool
	ExtraPauses          map[string]bool
	UpdatedAt            time.Time
}
