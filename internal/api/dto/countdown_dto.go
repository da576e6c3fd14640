package dto

import (
	"time"

	"github.com/spec-kit/sla-countdown/internal/countdown"
	"github.com/spec-kit/sla-countdown/internal/domain"
)

// BreakdownResponse is one rendered countdown value.
type BreakdownResponse struct {
	Hours        int  `json:"hours"`
	Minutes      int  `json:"minutes"`
	Seconds      int  `json:"seconds"`
	IsOverdue    bool `json:"is_overdue"`
	IsPaused     bool `json:"is_paused"`
	TotalSeconds int  `json:"total_seconds"`
}

// CountdownStatusResponse describes the SLA countdown of a ticket.
type CountdownStatusResponse struct {
	TicketID     string            `json:"ticket_id"`
	Breakdown    BreakdownResponse `json:"breakdown"`
	TotalMinutes *int              `json:"total_minutes"`
	Lifecycle    string            `json:"lifecycle"`
	Pauses       map[string]bool   `json:"pause_conditions"`
	Observers    int               `json:"observers"`
	Live         bool              `json:"live"`
}

// SLASnapshotMessage is the wire form of an authoritative SLA snapshot, used
// by the push endpoint and the redis fan-out channel. Pause conditions are an
// open set; unknown keys are kept.
type SLASnapshotMessage struct {
	TicketID         string                `json:"ticket_id"`
	Priority         domain.TicketPriority `json:"priority,omitempty"`
	Status           domain.TicketStatus   `json:"status"`
	RemainingMinutes *int                  `json:"remaining_minutes"`
	TotalMinutes     *int                  `json:"total_minutes"`
	PauseConditions  map[string]bool       `json:"pause_conditions"`
	UpdatedAt        *time.Time            `json:"updated_at,omitempty"`
}

// NewBreakdownResponse maps an engine breakdown.
func NewBreakdownResponse(b countdown.Breakdown) BreakdownResponse {
	return BreakdownResponse{
		Hours:        b.Hours,
		Minutes:      b.Minutes,
		Seconds:      b.Seconds,
		IsOverdue:    b.IsOverdue,
		IsPaused:     b.IsPaused,
		TotalSeconds: b.TotalSeconds,
	}
}

// NewCountdownStatusResponse maps an engine status.
func NewCountdownStatusResponse(status countdown.Status, live bool) CountdownStatusResponse {
	pauses := make(map[string]bool, len(status.Pauses))
	for reason, on := range status.Pauses {
		pauses[reason] = on
	}
	return CountdownStatusResponse{
		TicketID:     status.ItemID,
		Breakdown:    NewBreakdownResponse(status.Breakdown),
		TotalMinutes: status.TotalMinutes,
		Lifecycle:    string(status.Lifecycle),
		Pauses:       pauses,
		Observers:    status.Observers,
		Live:         live,
	}
}

// ToDomain converts the message, splitting well-known pause keys from the rest.
func (m SLASnapshotMessage) ToDomain() domain.SLASnapshot {
	snap := domain.SLASnapshot{
		TicketID:         m.TicketID,
		Priority:         m.Priority,
		Status:           m.Status,
		RemainingMinutes: m.RemainingMinutes,
		TotalMinutes:     m.TotalMinutes,
	}
	if snap.Status == "" {
		snap.Status = domain.TicketStatusOpen
	}
	if m.UpdatedAt != nil {
		snap.UpdatedAt = *m.UpdatedAt
	}
	for reason, on := range m.PauseConditions {
		switch reason {
		case countdown.PauseManual:
			snap.ManualPause = on
		case countdown.PauseAwaitingReply:
			snap.AwaitingReplyPause = on
		case countdown.PauseOutsideBusinessHours:
			snap.OutsideBusinessHours = on
		default:
			if snap.ExtraPauses == nil {
				snap.ExtraPauses = make(map[string]bool)
			}
			snap.ExtraPauses[reason] = on
		}
	}
	return snap
}

// NewSLASnapshotMessage converts a domain snapshot to its wire form.
func NewSLASnapshotMessage(snap domain.SLASnapshot) SLASnapshotMessage {
	pauses := map[string]bool{
		countdown.PauseManual:               snap.ManualPause,
		countdown.PauseAwaitingReply:        snap.AwaitingReplyPause,
		countdown.PauseOutsideBusinessHours: snap.OutsideBusinessHours,
	}
	for reason, on := range snap.ExtraPauses {
		pauses[reason] = pauses[reason] || on
	}
	msg := SLASnapshotMessage{
		TicketID:         snap.TicketID,
		Priority:         snap.Priority,
		Status:           snap.Status,
		RemainingMinutes: snap.RemainingMinutes,
		TotalMinutes:     snap.TotalMinutes,
		PauseConditions:  pauses,
	}
	if !snap.UpdatedAt.IsZero() {
		updated := snap.UpdatedAt
		msg.UpdatedAt = &updated
	}
	return msg
}
