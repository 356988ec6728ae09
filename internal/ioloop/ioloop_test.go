package ioloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTimerFiresOnce(t *testing.T) {
	l := New()
	fired := 0
	l.SetTimer(time.Millisecond, 0, func() { fired++ })

	deadline := time.Now().Add(time.Second)
	for fired == 0 && time.Now().Before(deadline) {
		l.RunOnceNoWait()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, fired)
	assert.False(t, l.Alive())
}

func TestTimersFireInRegistrationOrderOnTie(t *testing.T) {
	l := New()
	var order []int
	// Same delay: registration order must be preserved (spec §5).
	l.SetTimer(0, 0, func() { order = append(order, 1) })
	l.SetTimer(0, 0, func() { order = append(order, 2) })
	l.SetTimer(0, 0, func() { order = append(order, 3) })

	time.Sleep(2 * time.Millisecond)
	l.RunOnceNoWait()
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestClearCancelsPendingTimer(t *testing.T) {
	l := New()
	fired := false
	id := l.SetTimer(10*time.Millisecond, 0, func() { fired = true })
	l.Clear(id)

	time.Sleep(20 * time.Millisecond)
	l.RunOnceNoWait()
	assert.False(t, fired)
}

func TestRepeatingTimerFiresMultipleTimes(t *testing.T) {
	l := New()
	count := 0
	id := l.SetTimer(time.Millisecond, time.Millisecond, func() {
		count++
	})

	deadline := time.Now().Add(time.Second)
	for count < 3 && time.Now().Before(deadline) {
		l.RunOnceNoWait()
		time.Sleep(time.Millisecond)
	}
	l.Clear(id)
	assert.GreaterOrEqual(t, count, 3)
}

func TestIdleRunsEveryIteration(t *testing.T) {
	l := New()
	calls := 0
	l.Idle(func() { calls++ })

	l.RunOnceNoWait()
	l.RunOnceNoWait()
	assert.Equal(t, 2, calls)
}

func TestSubmitDeliversOnLoopThread(t *testing.T) {
	l := New()
	done := make(chan struct{})
	l.Submit(func() { close(done) })

	l.RunOnceNoWait()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted callback never ran")
	}
}

func TestCloseAllAndDrainClearsHandles(t *testing.T) {
	l := New()
	l.SetTimer(time.Hour, 0, func() {})
	require.True(t, l.Alive())

	l.CloseAllAndDrain(time.Now().Add(time.Second))
	assert.False(t, l.Alive())
}

func TestRunDefaultReturnsOnContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		l.RunDefault(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunDefault did not return after context cancellation")
	}
}

func TestWalkVisitsEveryHandle(t *testing.T) {
	l := New()
	l.SetTimer(time.Hour, 0, func() {})
	l.SetTimer(time.Hour, 0, func() {})

	seen := 0
	l.Walk(func(HandleID) { seen++ })
	assert.Equal(t, 2, seen)
}
