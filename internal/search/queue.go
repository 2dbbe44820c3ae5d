package search

import (
	"container/heap"
)

type entry struct {
	l   *label
	seq uint64
}

// frontier orders entries by arrival, then boardings, then push order.
type frontier []entry

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	a, b := f[i].l, f[j].l
	if a.arrival != b.arrival {
		return a.arrival < b.arrival
	}
	if a.boardings != b.boardings {
		return a.boardings < b.boardings
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(entry)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	e := old[n-1]
	*f = old[:n-1]
	return e
}

type queue struct {
	f   frontier
	seq uint64
}

func (q *queue) push(l *label) {
	q.seq++
	heap.Push(&q.f, entry{l: l, seq: q.seq})
}

func (q *queue) pop() *label {
	return heap.Pop(&q.f).(entry).l
}

func (q *queue) empty() bool { return len(q.f) == 0 }
