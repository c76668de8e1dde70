// Package probing provides reference implementations of the prober and
// scanner capabilities an lsh.Index is driven through: a round-robin
// multi-table prober and a bounded top-k heap scanner. Neither is part of
// the index core; they are external collaborators consuming its public
// interfaces.
package probing

import "container/heap"

// candidate pairs a candidate row with its distance to the query.
type candidate struct {
	row  int
	dist float64
}

// candidateMaxHeap is a max-heap on distance, so the worst of the current
// top-k sits at the root and can be evicted in O(log k).
type candidateMaxHeap []candidate

func (h candidateMaxHeap) Len() int           { return len(h) }
func (h candidateMaxHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h candidateMaxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateMaxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// HeapScanner maintains a bounded top-k set of candidates by distance,
// keyed by a caller-chosen metric. It is not called directly by the index
// core; a Prober typically wraps one and feeds it candidate rows as they
// are visited.
type HeapScanner struct {
	k      int
	heap   candidateMaxHeap
	seen   map[int]bool
	metric func(row int) float64
}

// NewHeapScanner creates a scanner that keeps the k candidates with the
// smallest metric(row), deduplicating rows visited more than once (e.g.
// across multiple probed buckets).
func NewHeapScanner(k int, metric func(row int) float64) *HeapScanner {
	return &HeapScanner{
		k:      k,
		heap:   make(candidateMaxHeap, 0, k),
		seen:   make(map[int]bool),
		metric: metric,
	}
}

// Offer considers row as a candidate, computing its distance via the
// configured metric. Rows already seen are ignored.
func (s *HeapScanner) Offer(row int) {
	if s.seen[row] {
		return
	}
	s.seen[row] = true
	dist := s.metric(row)

	if s.heap.Len() < s.k {
		heap.Push(&s.heap, candidate{row: row, dist: dist})
		return
	}
	if s.heap.Len() > 0 && dist < s.heap[0].dist {
		s.heap[0] = candidate{row: row, dist: dist}
		heap.Fix(&s.heap, 0)
	}
}

// Len returns how many distinct candidates have been offered, capped at k.
func (s *HeapScanner) Len() int { return s.heap.Len() }

// Results returns the collected candidates sorted by ascending distance.
func (s *HeapScanner) Results() []Neighbor {
	tmp := make(candidateMaxHeap, len(s.heap))
	copy(tmp, s.heap)

	out := make([]Neighbor, len(tmp))
	for i := len(tmp) - 1; i >= 0; i-- {
		top := heap.Pop(&tmp).(candidate)
		out[i] = Neighbor{Row: top.row, Distance: top.dist}
	}
	return out
}

// Neighbor is a scored search result.
type Neighbor struct {
	Row      int
	Distance float64
}
