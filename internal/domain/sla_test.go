package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixzit/fm-service/internal/domain"
)

var t0 = time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)

func TestPauseResume_AccumulatesElapsed(t *testing.T) {
	var state domain.SLAPauseState

	require.NoError(t, state.Pause(t0))
	assert.True(t, state.IsPaused)
	require.NotNil(t, state.PausedAt)

	state.Resume(t0.Add(90 * time.Minute))
	assert.False(t, state.IsPaused)
	assert.Nil(t, state.PausedAt)
	assert.Equal(t, int64(90*60*1000), state.TotalPausedMs)

	require.NoError(t, state.Pause(t0.Add(3*time.Hour)))
	state.Resume(t0.Add(3*time.Hour + 30*time.Second))
	assert.Equal(t, int64(90*60*1000+30*1000), state.TotalPausedMs)
}

func TestResume_WithoutPauseIsNoop(t *testing.T) {
	state := domain.SLAPauseState{TotalPausedMs: 5000}
	state.Resume(t0)
	assert.Equal(t, int64(5000), state.TotalPausedMs)
	assert.False(t, state.IsPaused)
	assert.Nil(t, state.PausedAt)
}

func TestPause_TwiceDoesNotDoubleCount(t *testing.T) {
	var state domain.SLAPauseState
	require.NoError(t, state.Pause(t0))
	assert.ErrorIs(t, state.Pause(t0.Add(time.Hour)), domain.ErrAlreadyPaused)

	state.Resume(t0.Add(2 * time.Hour))
	assert.Equal(t, (2 * time.Hour).Milliseconds(), state.TotalPausedMs)
}

func TestResume_BeforePauseNeverDecreases(t *testing.T) {
	state := domain.SLAPauseState{TotalPausedMs: 1000}
	require.NoError(t, state.Pause(t0))
	state.Resume(t0.Add(-time.Minute))
	assert.Equal(t, int64(1000), state.TotalPausedMs)
}

func TestEvaluateSLA(t *testing.T) {
	deadline := t0.Add(4 * time.Hour)

	t.Run("running clock", func(t *testing.T) {
		status := domain.EvaluateSLA(&deadline, domain.SLAPauseState{}, false, t0.Add(time.Hour))
		assert.True(t, status.Applies)
		assert.Equal(t, 3*time.Hour, status.Remaining)
		assert.False(t, status.Breached)
	})

	t.Run("paused time extends the deadline", func(t *testing.T) {
		pause := domain.SLAPauseState{TotalPausedMs: (2 * time.Hour).Milliseconds()}
		status := domain.EvaluateSLA(&deadline, pause, false, t0.Add(5*time.Hour))
		assert.Equal(t, time.Hour, status.Remaining)
		require.NotNil(t, status.EffectiveDeadline)
		assert.True(t, deadline.Add(2*time.Hour).Equal(*status.EffectiveDeadline))
	})

	t.Run("ongoing pause freezes remaining", func(t *testing.T) {
		var pause domain.SLAPauseState
		require.NoError(t, pause.Pause(t0.Add(time.Hour)))
		early := domain.EvaluateSLA(&deadline, pause, false, t0.Add(2*time.Hour))
		late := domain.EvaluateSLA(&deadline, pause, false, t0.Add(10*time.Hour))
		assert.Equal(t, 3*time.Hour, early.Remaining)
		assert.Equal(t, early.Remaining, late.Remaining)
		assert.True(t, late.Paused)
	})

	t.Run("breached", func(t *testing.T) {
		status := domain.EvaluateSLA(&deadline, domain.SLAPauseState{}, false, t0.Add(6*time.Hour))
		assert.True(t, status.Breached)
		assert.Equal(t, -2*time.Hour, status.Remaining)
	})

	t.Run("terminal entity", func(t *testing.T) {
		status := domain.EvaluateSLA(&deadline, domain.SLAPauseState{}, true, t0.Add(6*time.Hour))
		assert.False(t, status.Applies)
		assert.Equal(t, time.Duration(0), status.Remaining)
		assert.False(t, status.Breached)
	})
}

func TestSLAPolicy_HoursFor(t *testing.T) {
	policy := domain.DefaultSLAPolicy()
	assert.True(t, policy.HoursFor(domain.PriorityUrgent).Equal(decimal.NewFromInt(4)))
	assert.True(t, policy.HoursFor(domain.PriorityLow).Equal(decimal.NewFromInt(72)))
	assert.True(t, policy.HoursFor("UNKNOWN").Equal(decimal.NewFromInt(24)))
}
