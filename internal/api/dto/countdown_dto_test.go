package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-countdown/internal/countdown"
	"github.com/spec-kit/sla-countdown/internal/domain"
)

func TestSLASnapshotMessage_ToDomain(t *testing.T) {
	var msg SLASnapshotMessage
	require.NoError(t, json.Unmarshal([]byte(`{
		"ticket_id": "T7",
		"priority": "HIGH",
		"remaining_minutes": 42,
		"total_minutes": 240,
		"pause_conditions": {
			"manual": false,
			"awaiting_external_reply": true,
			"outside_business_hours": true,
			"vendor_hold": true
		}
	}`), &msg))

	snap := msg.ToDomain()
	assert.Equal(t, "T7", snap.TicketID)
	assert.Equal(t, domain.TicketPriorityHigh, snap.Priority)
	assert.Equal(t, domain.TicketStatusOpen, snap.Status)
	assert.Equal(t, 42, *snap.RemainingMinutes)
	assert.Equal(t, 240, *snap.TotalMinutes)
	assert.False(t, snap.ManualPause)
	assert.True(t, snap.AwaitingReplyPause)
	assert.True(t, snap.OutsideBusinessHours)
	assert.Equal(t, map[string]bool{"vendor_hold": true}, snap.ExtraPauses)
	assert.True(t, snap.UpdatedAt.IsZero())
}

func TestSLASnapshotMessage_missing_minutes_stay_nil(t *testing.T) {
	var msg SLASnapshotMessage
	require.NoError(t, json.Unmarshal([]byte(`{"ticket_id":"T8","status":"CLOSED"}`), &msg))

	snap := msg.ToDomain()
	assert.Nil(t, snap.RemainingMinutes)
	assert.Equal(t, domain.TicketStatusClosed, snap.Status)
	assert.Nil(t, snap.ExtraPauses)
}

func TestNewSLASnapshotMessage_carries_all_pause_keys(t *testing.T) {
	updated := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	remaining := 5
	msg := NewSLASnapshotMessage(domain.SLASnapshot{
		TicketID:         "T1",
		Status:           domain.TicketStatusInProgress,
		RemainingMinutes: &remaining,
		ManualPause:      true,
		ExtraPauses:      map[string]bool{"vendor_hold": true},
		UpdatedAt:        updated,
	})

	assert.Equal(t, map[string]bool{
		countdown.PauseManual:               true,
		countdown.PauseAwaitingReply:        false,
		countdown.PauseOutsideBusinessHours: false,
		"vendor_hold":                       true,
	}, msg.PauseConditions)
	require.NotNil(t, msg.UpdatedAt)
	assert.Equal(t, updated, *msg.UpdatedAt)

	back := msg.ToDomain()
	assert.True(t, back.ManualPause)
	assert.Equal(t, updated, back.UpdatedAt)
}

func TestNewCountdownStatusResponse(t *testing.T) {
	total := 120
	resp := NewCountdownStatusResponse(countdown.Status{
		ItemID:       "T1",
		Breakdown:    countdown.Breakdown{Minutes: 1, Seconds: 5, TotalSeconds: 65},
		TotalMinutes: &total,
		Lifecycle:    countdown.LifecycleActive,
		Pauses:       countdown.PauseConditions{countdown.PauseManual: false},
		Observers:    2,
	}, true)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ticket_id": "T1",
		"breakdown": {"hours":0,"minutes":1,"seconds":5,"is_overdue":false,"is_paused":false,"total_seconds":65},
		"total_minutes": 120,
		"lifecycle": "active",
		"pause_conditions": {"manual": false},
		"observers": 2,
		"live": true
	}`, string(raw))
}
