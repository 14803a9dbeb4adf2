package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesSamePath(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add("/pics/a.png")
	}
	d.Add("/pics/b.png")

	select {
	case batch := <-d.Output():
		assert.ElementsMatch(t, []string{"/pics/a.png", "/pics/b.png"}, batch)
	case <-time.After(time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestDebouncer_QuietWindowRestartsOnActivity(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add("/pics/a.png")
	time.Sleep(25 * time.Millisecond)
	d.Add("/pics/a.png")

	// The first window was interrupted, so nothing has been emitted yet.
	select {
	case <-d.Output():
		t.Fatal("batch emitted before the window elapsed")
	case <-time.After(30 * time.Millisecond):
	}

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
	case <-time.After(time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	d.Stop()

	// Adds after Stop are dropped, not a panic.
	d.Add("/pics/a.png")

	_, ok := <-d.Output()
	assert.False(t, ok)
}
