package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker(t *testing.T) {
	c := &clock{t: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	b := New("gateway",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(c.now),
	)

	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateChange{Opened: true}, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())

	assert.False(t, b.Allow(), "open circuit rejects during cooldown")

	c.advance(10 * time.Second)
	assert.True(t, b.Allow(), "one probe after cooldown")
	assert.False(t, b.Allow(), "second caller waits for the next cooldown")

	// Failed probe keeps it open and restarts the cooldown.
	assert.Equal(t, StateChange{}, b.RecordFailure())
	c.advance(5 * time.Second)
	assert.False(t, b.Allow())

	c.advance(5 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{}, b.RecordSuccess())
	c.advance(10 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateChange{Closed: true}, b.RecordSuccess())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := New("gateway", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "open", StateOpen.String())
}
