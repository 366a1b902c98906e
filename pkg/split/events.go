package split

type eventKind uint8

const (
	eventStart eventKind = iota
	eventEnd
)

// sweepEvent marks the sweep line entering or leaving a segment's XY
// envelope.
type sweepEvent struct {
	x    float64
	kind eventKind
	seg  int
}

func (a sweepEvent) less(b sweepEvent) bool {
	if a.x != b.x {
		return a.x < b.x
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.seg < b.seg
}

// eventQueue is a concrete-typed min-heap of sweep events ordered by x,
// with starts before ends at equal x.
type eventQueue struct {
	items []sweepEvent
}

func (h *eventQueue) Len() int { return len(h.items) }

func (h *eventQueue) Push(ev sweepEvent) {
	h.items = append(h.items, ev)
	h.siftUp(len(h.items) - 1)
}

func (h *eventQueue) Pop() sweepEvent {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *eventQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.items[i].less(h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *eventQueue) siftDown(i int) {
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
