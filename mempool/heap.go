package mempool

import "container/heap"

// evictionQueue is a container/heap priority queue ordered so the entry
// that should be evicted first under memory pressure sits at the root:
// lowest fee_rate, and among equal fee_rates the most recently received
// (spec §4.5 "evicts the lowest fee-rate entries"). The ordering mirrors
// the reference pack's txPriorityQueue (a slice plus an injected Less),
// generalized here to a fixed comparator since the pool only ever
// evicts one way.
type evictionQueue struct {
	items []*Entry
}

func (q *evictionQueue) Len() int { return len(q.items) }

func (q *evictionQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.FeeRate != b.FeeRate {
		return a.FeeRate < b.FeeRate
	}
	return a.ReceivedAt > b.ReceivedAt
}

func (q *evictionQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *evictionQueue) Push(x any) {
	e := x.(*Entry)
	e.index = len(q.items)
	q.items = append(q.items, e)
}

func (q *evictionQueue) Pop() any {
	n := len(q.items)
	e := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	e.index = -1
	return e
}

func (q *evictionQueue) push(e *Entry) { heap.Push(q, e) }

func (q *evictionQueue) popMin() *Entry {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*Entry)
}

func (q *evictionQueue) remove(e *Entry) {
	if e.index < 0 || e.index >= len(q.items) || q.items[e.index] != e {
		return
	}
	heap.Remove(q, e.index)
}
