package events

import (
	"time"

	"github.com/spec-kit/sla-countdown/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLAExpired         EventType = "sla_expired"
	EventSLASnapshotApplied EventType = "sla_snapshot_applied"
	EventSLAWatchStarted    EventType = "sla_watch_started"
	EventSLAWatchStopped    EventType = "sla_watch_stopped"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SLAExpiredPayload payload.
type SLAExpiredPayload struct {
	Priority     domain.TicketPriority `json:"priority,omitempty"`
	TotalMinutes *int                  `json:"total_minutes,omitempty"`
	Observers    int                   `json:"observers"`
}

// SLASnapshotAppliedPayload payload.
type SLASnapshotAppliedPayload struct {
	RemainingMinutes *int                `json:"remaining_minutes"`
	Status           domain.TicketStatus `json:"status"`
	Paused           bool                `json:"paused"`
	Source           string              `json:"source"`
}

// SLAWatchPayload payload for watch start/stop.
type SLAWatchPayload struct {
	ViewerID string `json:"viewer_id"`
}
