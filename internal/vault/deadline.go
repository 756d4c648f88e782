package vault

import (
	"container/heap"
	"time"
)

type deadline struct {
	key string
	gen uint64
	at  time.Time
}

type deadlineHeap []deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)        { *h = append(*h, x.(deadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// deadlineQueue is not safe for concurrent use; Store guards it with its mutex.
type deadlineQueue struct {
	h deadlineHeap
}

func newDeadlineQueue() *deadlineQueue {
	return &deadlineQueue{}
}

func (q *deadlineQueue) push(key string, gen uint64, at time.Time) {
	heap.Push(&q.h, deadline{key: key, gen: gen, at: at})
}

func (q *deadlineQueue) peek() (time.Time, bool) {
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].at, true
}

func (q *deadlineQueue) popDue(now time.Time) (deadline, bool) {
	if len(q.h) == 0 || q.h[0].at.After(now) {
		return deadline{}, false
	}
	return heap.Pop(&q.h).(deadline), true
}

func (q *deadlineQueue) len() int {
	return len(q.h)
}

func (q *deadlineQueue) reset() {
	q.h = nil
}
