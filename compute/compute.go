// Package compute provides the parallel executor that runs batches of
// independent work items across a fixed pool of worker goroutines.
package compute

import "sync"

// WorkItem is a unit of work. Run receives the stable index of the worker
// executing it, which items may use to seed per-thread state.
type WorkItem interface {
	Run(threadIndex int)
}

type task struct {
	item WorkItem
	wg   *sync.WaitGroup
}

// System is a fixed-size pool of workers. Batches submitted via Run are
// executed with no ordering guarantees between items; Run returns only
// after every item in the batch has completed.
type System struct {
	workers int
	tasks   chan task

	closeOnce sync.Once
}

// New creates a System with the given number of workers. Anything less
// than 1 is treated as 1.
func New(numWorkers int) *System {
	if numWorkers < 1 {
		numWorkers = 1
	}
	s := &System{
		workers: numWorkers,
		tasks:   make(chan task, numWorkers),
	}
	for i := 0; i < numWorkers; i++ {
		go s.worker(i)
	}
	return s
}

func (s *System) worker(threadIndex int) {
	for t := range s.tasks {
		t.item.Run(threadIndex)
		t.wg.Done()
	}
}

// Workers returns the pool size.
func (s *System) Workers() int { return s.workers }

// Run executes a batch of independent work items and blocks until all of
// them have completed. Items must not submit further work to the same
// System, or the pool can deadlock.
func (s *System) Run(items []WorkItem) {
	var wg sync.WaitGroup
	wg.Add(len(items))
	for _, it := range items {
		s.tasks <- task{item: it, wg: &wg}
	}
	wg.Wait()
}

// Stop shuts the pool down. The System must not be used afterwards.
func (s *System) Stop() {
	s.closeOnce.Do(func() { close(s.tasks) })
}
