package centrality

import "math"

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Entries are ordered by distance, then by vertex id, so equal-distance
// vertices settle in a deterministic order.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
}

func (a PQItem) less(b PQItem) bool {
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.Node < b.Node
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.items[i].less(h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].less(h.items[smallest]) {
			smallest = left
		}
		if right < n && h.items[right].less(h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// sourceState holds the per-source scratch arrays of one worker. Only the
// entries listed in Touched are dirty between runs.
type sourceState struct {
	Dist    []float64
	Sigma   []float64  // number of shortest paths from the source
	Delta   []float64  // dependency accumulated during back-propagation
	Preds   [][]uint32 // incoming edge ids on shortest paths
	Settled []bool
	Touched []uint32 // vertices touched during this run (for fast reset)
	Order   []uint32 // vertices in settle order
	PQ      MinHeap

	allowed []uint32 // allowed[v] == stamp when v is inside the current restriction
	stamp   uint32
}

func newSourceState(n uint32) *sourceState {
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	return &sourceState{
		Dist:    dist,
		Sigma:   make([]float64, n),
		Delta:   make([]float64, n),
		Preds:   make([][]uint32, n),
		Settled: make([]bool, n),
		Touched: make([]uint32, 0, 1024),
		Order:   make([]uint32, 0, 1024),
		PQ:      MinHeap{items: make([]PQItem, 0, 256)},
		allowed: make([]uint32, n),
	}
}

func (st *sourceState) touch(v uint32) {
	if math.IsInf(st.Dist[v], 1) {
		st.Touched = append(st.Touched, v)
	}
}

// restrict limits the next run to the given vertices.
func (st *sourceState) restrict(vertices []uint32) {
	st.stamp++
	if st.stamp == 0 {
		// Wrapped around; clear stale stamps.
		clear(st.allowed)
		st.stamp = 1
	}
	for _, v := range vertices {
		st.allowed[v] = st.stamp
	}
}

func (st *sourceState) isAllowed(v uint32) bool { return st.allowed[v] == st.stamp }

// Reset clears only the touched entries for fast reuse.
func (st *sourceState) Reset() {
	for _, v := range st.Touched {
		st.Dist[v] = math.Inf(1)
		st.Sigma[v] = 0
		st.Delta[v] = 0
		st.Preds[v] = st.Preds[v][:0]
		st.Settled[v] = false
	}
	st.Touched = st.Touched[:0]
	st.Order = st.Order[:0]
	st.PQ.Reset()
}
