package acquisition

import "sync"

// mutation is a configuration change requested from outside the acquisition
// loop. It runs at the top of the next cycle, before any instrument I/O of
// that cycle.
type mutation struct {
	name  string
	apply func(s *Session) error
}

type mutationQueue struct {
	mu      sync.Mutex
	pending []mutation
}

func (q *mutationQueue) push(m mutation) {
	q.mu.Lock()
	q.pending = append(q.pending, m)
	q.mu.Unlock()
}

// drain removes and returns everything queued so far, in arrival order
func (q *mutationQueue) drain() []mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func (q *mutationQueue) clear() {
	q.drain()
}

func (q *mutationQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
