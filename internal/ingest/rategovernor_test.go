package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateGovernorBackoffLadder(t *testing.T) {
	steps := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	gov := NewRateGovernor(time.Millisecond, steps)

	for i, want := range steps {
		delay, retry := gov.OnFailure("host-a")
		assert.Truef(t, retry, "step %d: expected retry=true within the ladder", i)
		assert.Equalf(t, want, delay, "step %d", i)
	}

	_, retry := gov.OnFailure("host-a")
	assert.False(t, retry, "expected retry=false once the backoff ladder is exhausted")

	state := gov.State("host-a")
	assert.Equal(t, len(steps), state.ConsecutiveFailures)
}

func TestRateGovernorOnSuccessResetsBackoff(t *testing.T) {
	gov := NewRateGovernor(time.Millisecond, []time.Duration{10 * time.Millisecond})

	gov.OnFailure("host-b")
	gov.OnSuccess("host-b")

	state := gov.State("host-b")
	assert.Equal(t, 0, state.ConsecutiveFailures)
	assert.True(t, state.NextAllowedAt.IsZero())
}

func TestRateGovernorHostsAreIndependent(t *testing.T) {
	gov := NewRateGovernor(time.Millisecond, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond})

	gov.OnFailure("host-a")
	gov.OnFailure("host-a")

	state := gov.State("host-c")
	assert.Equal(t, 0, state.ConsecutiveFailures, "unrelated host starts with 0 failures")
}
