package jobpump

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
)

func TestQueueMicrotaskRunsDuringDrain(t *testing.T) {
	rt := goja.New()
	p, err := New(rt)
	require.NoError(t, err)

	ran := false
	p.QueueMicrotask(func() { ran = true })
	require.NoError(t, p.DrainJobs())
	require.True(t, ran)
	require.Equal(t, 0, p.Pending())
}

func TestQueueMicrotaskPreservesFIFOOrder(t *testing.T) {
	rt := goja.New()
	p, err := New(rt)
	require.NoError(t, err)

	var order []int
	p.QueueMicrotask(func() { order = append(order, 1) })
	p.QueueMicrotask(func() { order = append(order, 2) })
	p.QueueMicrotask(func() { order = append(order, 3) })
	require.NoError(t, p.DrainJobs())
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestMicrotaskQueuedDuringDrainAlsoRuns(t *testing.T) {
	rt := goja.New()
	p, err := New(rt)
	require.NoError(t, err)

	var order []int
	p.QueueMicrotask(func() {
		order = append(order, 1)
		p.QueueMicrotask(func() { order = append(order, 2) })
	})
	require.NoError(t, p.DrainJobs())
	require.Equal(t, []int{1, 2}, order)
}

func TestDrainJobsNoopWhenEmpty(t *testing.T) {
	rt := goja.New()
	p, err := New(rt)
	require.NoError(t, err)
	require.NoError(t, p.DrainJobs())
}
