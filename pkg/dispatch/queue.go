package dispatch

import (
	"container/heap"
	"sync"
	"time"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// requestHeap orders requests by (DueAt, seq): earliest due first, submission
// order among equals.
type requestHeap []*Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].DueAt.Equal(h[j].DueAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].DueAt.Before(h[j].DueAt)
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(*Request)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// timedQueue is a bounded priority queue of requests keyed by due time.
// Producers never block: Put fails fast once the size cap is reached. A
// single consumer drains it through PopDue.
type timedQueue struct {
	mu    sync.Mutex
	items requestHeap
	max   int
	seq   uint64

	// signal wakes the consumer after a Put. Capacity 1: a pending wakeup
	// covers any number of enqueues.
	signal chan struct{}
}

func newTimedQueue(max int) *timedQueue {
	return &timedQueue{
		max:    max,
		signal: make(chan struct{}, 1),
	}
}

// Put enqueues a request, assigning its sequence number. Fails with
// QueueFullError when the queue is at capacity.
func (q *timedQueue) Put(req *Request) error {
	q.mu.Lock()
	if len(q.items) >= q.max {
		size := len(q.items)
		q.mu.Unlock()
		return &waapi.QueueFullError{Size: size, Max: q.max}
	}
	q.seq++
	req.seq = q.seq
	heap.Push(&q.items, req)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// PopDue blocks until a request is due or stopCh closes. The wait never
// exceeds poll, so a far-future head cannot delay shutdown, and an earlier
// Put wakes the consumer immediately.
func (q *timedQueue) PopDue(stopCh <-chan struct{}, poll time.Duration) (*Request, bool) {
	for {
		q.mu.Lock()
		wait := poll
		if len(q.items) > 0 {
			now := time.Now()
			next := q.items[0]
			if !next.DueAt.After(now) {
				req := heap.Pop(&q.items).(*Request)
				q.mu.Unlock()
				return req, true
			}
			if until := next.DueAt.Sub(now); until < wait {
				wait = until
			}
		}
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return nil, false
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Size returns the number of queued requests.
func (q *timedQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainAll removes and returns every queued request, regardless of due time.
// Used at shutdown to fail outstanding waiters.
func (q *timedQueue) DrainAll() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := make([]*Request, 0, len(q.items))
	for q.items.Len() > 0 {
		drained = append(drained, heap.Pop(&q.items).(*Request))
	}
	return drained
}
