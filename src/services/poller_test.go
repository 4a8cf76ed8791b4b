package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_TicksUntilStopped(t *testing.T) {
	p := NewPoller()
	var n atomic.Int32
	p.Start(5*time.Millisecond, func() { n.Add(1) })
	require.True(t, p.Running())

	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)

	p.Stop()
	p.Stop()
	assert.False(t, p.Running())
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load())
}

func TestPoller_StartReplacesSchedule(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var first, second atomic.Int32
	p.Start(5*time.Millisecond, func() { first.Add(1) })
	require.Eventually(t, func() bool { return first.Load() >= 1 }, time.Second, time.Millisecond)

	p.Start(5*time.Millisecond, func() { second.Add(1) })
	frozen := first.Load()
	require.Eventually(t, func() bool { return second.Load() >= 2 }, time.Second, time.Millisecond)

	assert.Equal(t, frozen, first.Load(), "the replaced schedule no longer fires")
	assert.Equal(t, 2, p.Starts())
}

func TestPoller_NonPositiveIntervalStops(t *testing.T) {
	p := NewPoller()
	p.Start(time.Hour, func() {})
	p.Start(0, func() {})
	assert.False(t, p.Running())
}
