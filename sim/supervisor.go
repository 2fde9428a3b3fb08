package sim

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrStopTimeout is reported for a task that did not exit in time.
var ErrStopTimeout = errors.New("task did not stop in time")

// StopResult is the outcome of stopping one task.
type StopResult struct {
	Name string
	Err  error
}

// supervisor tracks running actor goroutines so they can be terminated at
// shutdown. Tasks deregister themselves when they return.
type supervisor struct {
	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup

	idleOnce sync.Once
	idle     chan struct{}
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newSupervisor() *supervisor {
	return &supervisor{tasks: make(map[string]*task)}
}

// Go runs fn in a goroutine under a context derived from parent.
func (s *supervisor) Go(parent context.Context, name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(parent)
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[name] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.tasks[name] == t {
				delete(s.tasks, name)
			}
			s.mu.Unlock()
			close(t.done)
			cancel()
		}()
		fn(ctx)
	}()
}

// Alive returns the names of tasks still running, sorted.
func (s *supervisor) Alive() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopAll cancels every running task and waits up to timeout for each.
func (s *supervisor) StopAll(timeout time.Duration) []StopResult {
	s.mu.Lock()
	pending := make(map[string]*task, len(s.tasks))
	for name, t := range s.tasks {
		pending[name] = t
	}
	s.mu.Unlock()

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pending[name].cancel()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	results := make([]StopResult, 0, len(names))
	expired := false
	for _, name := range names {
		t := pending[name]
		if !expired {
			select {
			case <-t.done:
				results = append(results, StopResult{Name: name})
				continue
			case <-deadline.C:
				expired = true
			}
		}
		select {
		case <-t.done:
			results = append(results, StopResult{Name: name})
		default:
			results = append(results, StopResult{Name: name, Err: ErrStopTimeout})
		}
	}
	return results
}

// Wait blocks until every task has returned or timeout expires. It reports
// whether all tasks finished. All calls share one watcher goroutine, which
// exits once the last task does; no Go may follow the first Wait.
func (s *supervisor) Wait(timeout time.Duration) bool {
	s.idleOnce.Do(func() {
		s.idle = make(chan struct{})
		go func() {
			s.wg.Wait()
			close(s.idle)
		}()
	})
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.idle:
		return true
	case <-timer.C:
		return false
	}
}
