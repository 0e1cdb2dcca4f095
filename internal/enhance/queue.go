// Package enhance runs the background, priority-ordered task system that
// re-works weak quality dimensions through the mid tier.
package enhance

import (
	"container/heap"
	"sync"

	"github.com/sells-group/uvp-engine/internal/model"
)

// item pairs a task with the state the worker needs to process it: the
// result being improved and the extraction it came from (for re-scoring).
type item struct {
	task       model.EnhancementTask
	result     *model.SynthesisResult
	extraction *model.CombinedExtractionResult
}

// queue is a priority queue ordered by (priority desc, age asc). Pushes
// signal waiting workers through the ready channel.
type queue struct {
	mu    sync.Mutex
	items pqueue
	ready chan struct{}
}

func newQueue(depth int) *queue {
	if depth <= 0 {
		depth = 256
	}
	q := &queue{ready: make(chan struct{}, depth)}
	heap.Init(&q.items)
	return q
}

func (q *queue) push(it item) {
	q.mu.Lock()
	heap.Push(&q.items, it)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop removes the highest-priority item. Returns false when empty.
func (q *queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return item{}, false
	}
	return heap.Pop(&q.items).(item), true
}

// dropSubject removes all queued items for the subject and returns them.
func (q *queue) dropSubject(subjectID string) []item {
	q.mu.Lock()
	defer q.mu.Unlock()
	var dropped []item
	var keep pqueue
	for _, it := range q.items {
		if it.task.SubjectID == subjectID {
			dropped = append(dropped, it)
		} else {
			keep = append(keep, it)
		}
	}
	q.items = keep
	heap.Init(&q.items)
	return dropped
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// pqueue implements heap.Interface.
type pqueue []item

func (p pqueue) Len() int { return len(p) }

func (p pqueue) Less(i, j int) bool {
	if p[i].task.Priority != p[j].task.Priority {
		return p[i].task.Priority > p[j].task.Priority
	}
	// Equal priority: older first.
	return p[i].task.CreatedAt.Before(p[j].task.CreatedAt)
}

func (p pqueue) Swap(i, j int) { p[i], p[j] = p[j], p[i] }

func (p *pqueue) Push(x any) { *p = append(*p, x.(item)) }

func (p *pqueue) Pop() any {
	old := *p
	n := len(old)
	it := old[n-1]
	*p = old[:n-1]
	return it
}
