package ecs

import "sync"

// entityQueue collects entities under its own lock until the frame drains
// them. An entity already waiting is not queued twice.
type entityQueue struct {
	mu      sync.Mutex
	pending []*Entity
	queued  map[*Entity]struct{}
}

func newEntityQueue(capacity int) *entityQueue {
	return &entityQueue{
		pending: make([]*Entity, 0, capacity),
		queued:  make(map[*Entity]struct{}, capacity),
	}
}

func (q *entityQueue) push(e *Entity) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[e]; ok {
		return false
	}
	q.queued[e] = struct{}{}
	q.pending = append(q.pending, e)
	return true
}

// drain moves everything pending into dst (reusing its backing array) and
// empties the queue.
func (q *entityQueue) drain(dst []*Entity) []*Entity {
	q.mu.Lock()
	defer q.mu.Unlock()
	dst = append(dst[:0], q.pending...)
	clear(q.pending)
	q.pending = q.pending[:0]
	clear(q.queued)
	return dst
}

func (q *entityQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *entityQueue) reset() {
	q.mu.Lock()
	clear(q.pending)
	q.pending = q.pending[:0]
	clear(q.queued)
	q.mu.Unlock()
}
