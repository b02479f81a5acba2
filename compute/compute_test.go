package compute

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingItem struct {
	ran     *int32
	threads chan int
}

func (c *countingItem) Run(threadIndex int) {
	atomic.AddInt32(c.ran, 1)
	c.threads <- threadIndex
}

func TestRunIsABarrier(t *testing.T) {
	s := New(4)
	defer s.Stop()
	assert.Equal(t, 4, s.Workers())

	const n = 100
	var ran int32
	threads := make(chan int, n)
	items := make([]WorkItem, n)
	for i := range items {
		items[i] = &countingItem{ran: &ran, threads: threads}
	}
	s.Run(items)

	// every item completed before Run returned
	assert.Equal(t, int32(n), atomic.LoadInt32(&ran))
	close(threads)
	for idx := range threads {
		if idx < 0 || idx >= 4 {
			t.Fatalf("item saw thread index %d, want [0, 4)", idx)
		}
	}
}

func TestRunEmptyBatch(t *testing.T) {
	s := New(2)
	defer s.Stop()
	assert.NotPanics(t, func() { s.Run(nil) })
}

func TestClampedWorkerCount(t *testing.T) {
	s := New(0)
	defer s.Stop()
	assert.Equal(t, 1, s.Workers())
}

func TestReusableAcrossBatches(t *testing.T) {
	s := New(3)
	defer s.Stop()

	var ran int32
	threads := make(chan int, 30)
	for batch := 0; batch < 3; batch++ {
		items := make([]WorkItem, 10)
		for i := range items {
			items[i] = &countingItem{ran: &ran, threads: threads}
		}
		s.Run(items)
	}
	assert.Equal(t, int32(30), atomic.LoadInt32(&ran))
}
