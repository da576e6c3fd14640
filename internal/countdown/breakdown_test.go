package countdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		remaining int64
		pauses    PauseConditions
		lifecycle Lifecycle
		want      Breakdown
	}{
		{
			name:      "splits hours minutes seconds",
			remaining: 3*3600 + 25*60 + 7,
			lifecycle: LifecycleActive,
			want:      Breakdown{Hours: 3, Minutes: 25, Seconds: 7, TotalSeconds: 12307},
		},
		{
			name:      "zero is overdue",
			remaining: 0,
			lifecycle: LifecycleActive,
			want:      Breakdown{IsOverdue: true},
		},
		{
			name:      "negative is overdue",
			remaining: -42,
			lifecycle: LifecycleActive,
			want:      Breakdown{IsOverdue: true},
		},
		{
			name:      "paused keeps frozen remaining",
			remaining: 600,
			pauses:    PauseConditions{PauseManual: true},
			lifecycle: LifecycleActive,
			want:      Breakdown{Minutes: 10, IsPaused: true, TotalSeconds: 600},
		},
		{
			name:      "completed shows nothing",
			remaining: 600,
			pauses:    PauseConditions{PauseManual: true},
			lifecycle: LifecycleCompleted,
			want:      Breakdown{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.remaining, tt.pauses, tt.lifecycle))
		})
	}
}

func TestPauseConditions_Paused_is_logical_or(t *testing.T) {
	assert.False(t, PauseConditions(nil).Paused())
	assert.False(t, PauseConditions{PauseManual: false, PauseAwaitingReply: false}.Paused())
	assert.True(t, PauseConditions{PauseManual: false, PauseOutsideBusinessHours: true}.Paused())
	assert.True(t, PauseConditions{"holiday_freeze": true}.Paused())
}

func TestSnapshot_minutes_clamps_missing_and_negative(t *testing.T) {
	neg := -3
	five := 5
	assert.Equal(t, 0, Snapshot{}.minutes())
	assert.Equal(t, 0, Snapshot{RemainingMinutes: &neg}.minutes())
	assert.Equal(t, 5, Snapshot{RemainingMinutes: &five}.minutes())
}

func TestSnapshot_lifecycle_defaults_to_active(t *testing.T) {
	assert.Equal(t, LifecycleActive, Snapshot{}.lifecycle())
	assert.Equal(t, LifecycleActive, Snapshot{Lifecycle: "bogus"}.lifecycle())
	assert.Equal(t, LifecycleCompleted, Snapshot{Lifecycle: LifecycleCompleted}.lifecycle())
}
