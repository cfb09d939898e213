package relay

import (
	"context"
	"sync"
	"time"
)

// DefaultPollTimeout is how long Pop waits before reporting an empty queue
const DefaultPollTimeout = 100 * time.Millisecond

// Queue is a thread-safe bounded FIFO of translated text.
// Push never blocks: when the queue is full the oldest item is dropped.
type Queue struct {
	items []string
	size  int
	head  int // index of the oldest item
	count int

	mu     sync.Mutex
	notify chan struct{} // signalled on every push, capacity 1
}

// NewQueue creates a queue holding at most capacity items
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		items:  make([]string, capacity),
		size:   capacity,
		notify: make(chan struct{}, 1),
	}
}

// Push appends an item to the tail of the queue.
// Returns true if the oldest item had to be dropped to make room.
func (q *Queue) Push(item string) bool {
	q.mu.Lock()
	dropped := false
	if q.count == q.size {
		// Full: overwrite the oldest slot and advance head
		q.items[q.head] = ""
		q.head = (q.head + 1) % q.size
		q.count--
		dropped = true
	}
	tail := (q.head + q.count) % q.size
	q.items[tail] = item
	q.count++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return dropped
}

// TryPop removes and returns the oldest item without waiting
func (q *Queue) TryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return "", false
	}

	item := q.items[q.head]
	q.items[q.head] = ""
	q.head = (q.head + 1) % q.size
	q.count--

	return item, true
}

// Pop removes and returns the oldest item, waiting up to timeout for one to
// arrive. It returns false when the timeout elapses or ctx is done first.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, bool) {
	if item, ok := q.TryPop(); ok {
		return item, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if item, ok := q.TryPop(); ok {
				return item, true
			}
			// Another consumer won the race; keep waiting
		case <-timer.C:
			return q.TryPop()
		case <-ctx.Done():
			return "", false
		}
	}
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the maximum number of items the queue holds
func (q *Queue) Cap() int {
	return q.size
}

// Reset discards all queued items
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		q.items[i] = ""
	}
	q.head = 0
	q.count = 0
}
