package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"time"
)

var testExpPolicy = ExpPolicy{
	Min:   1 * time.Minute,
	Max:   10 * time.Minute,
	Scale: 2.0,
}

func TestBackoff(t *testing.T) {
	backoff := NewExpBackoff(testExpPolicy)
	assert.Equal(t, backoff.Backoff(), testExpPolicy.Min)
	assert.Equal(t, backoff.Backoff(), 2*testExpPolicy.Min)
	assert.Equal(t, backoff.Backoff(), 4*testExpPolicy.Min)
	assert.Equal(t, backoff.Backoff(), 8*testExpPolicy.Min)
	assert.Equal(t, backoff.Backoff(), testExpPolicy.Max)
	assert.Equal(t, backoff.Backoff(), testExpPolicy.Max)

	backoff.Reset()
	assert.Equal(t, backoff.Backoff(), testExpPolicy.Min)
	assert.Equal(t, backoff.Backoff(), 2*testExpPolicy.Min)
}

func TestExpPolicyDelays(t *testing.T) {
	delays := ExpPolicy{Min: time.Second, Max: 4 * time.Second, Scale: 2.0, MaxAttempts: 5}.Delays()

	expected := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for _, want := range expected {
		delay, ok := delays()
		assert.True(t, ok)
		assert.Equal(t, want, delay)
	}
	_, ok := delays()
	assert.False(t, ok)
}
