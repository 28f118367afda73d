package filter

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestDebouncer(t *testing.T) {
	clk := clock.NewMock()
	d := NewDebouncer(clk, 2*time.Second)

	assert.True(t, d.Check("page").Allow, "first signal passes")

	clk.Add(500 * time.Millisecond)
	r := d.Check("page")
	assert.False(t, r.Allow)
	assert.Equal(t, 1, r.Suppressed)
	assert.Equal(t, 500*time.Millisecond, r.SinceLast)

	// a different key has its own window
	assert.True(t, d.Check("other").Allow)

	clk.Add(1499 * time.Millisecond)
	r = d.Check("page")
	assert.False(t, r.Allow, "dropped signals do not extend the window")
	assert.Equal(t, 2, r.Suppressed)

	clk.Add(1 * time.Millisecond)
	r = d.Check("page")
	assert.True(t, r.Allow, "window is inclusive at exactly 2s")
	assert.Equal(t, 2*time.Second, r.SinceLast)
}

func TestDebouncerReset(t *testing.T) {
	clk := clock.NewMock()
	d := NewDebouncer(clk, time.Minute)

	assert.True(t, d.Check("page").Allow)
	assert.False(t, d.Check("page").Allow)

	d.Reset()
	assert.True(t, d.Check("page").Allow)
}

func TestDebouncerZeroWindow(t *testing.T) {
	d := NewDebouncer(clock.NewMock(), 0)
	assert.True(t, d.Check("page").Allow)
	assert.True(t, d.Check("page").Allow)
}
