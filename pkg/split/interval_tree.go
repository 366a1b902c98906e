package split

import "space_syntax/pkg/geo"

// intervalNode is a node of an AVL tree keyed on (interval.Low, id) and
// augmented with the maximum High of its subtree.
type intervalNode struct {
	iv     geo.Interval
	id     int
	max    float64
	height int8
	left   *intervalNode
	right  *intervalNode
}

// intervalTree holds the Y intervals of the segments currently crossed by
// the sweep line.
type intervalTree struct {
	root *intervalNode
	size int
}

func (t *intervalTree) Len() int { return t.size }

// Insert adds the interval for segment id.
func (t *intervalTree) Insert(iv geo.Interval, id int) {
	t.root = insertNode(t.root, &intervalNode{iv: iv, id: id, max: iv.High, height: 1})
	t.size++
}

// Delete removes the interval previously inserted for id. Returns false if
// it was not present.
func (t *intervalTree) Delete(iv geo.Interval, id int) bool {
	var removed bool
	t.root = deleteNode(t.root, iv.Low, id, &removed)
	if removed {
		t.size--
	}
	return removed
}

// SearchOverlaps calls fn for every stored id whose interval overlaps iv,
// in key order.
func (t *intervalTree) SearchOverlaps(iv geo.Interval, fn func(id int)) {
	searchNode(t.root, iv, fn)
}

func searchNode(n *intervalNode, iv geo.Interval, fn func(id int)) {
	if n == nil || n.max < iv.Low {
		return
	}
	searchNode(n.left, iv, fn)
	if n.iv.Overlaps(iv) {
		fn(n.id)
	}
	if n.iv.Low > iv.High {
		// Every key on the right starts even later.
		return
	}
	searchNode(n.right, iv, fn)
}

func keyLess(low float64, id int, n *intervalNode) bool {
	if low != n.iv.Low {
		return low < n.iv.Low
	}
	return id < n.id
}

func height(n *intervalNode) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *intervalNode) update() {
	n.height = max(height(n.left), height(n.right)) + 1
	n.max = n.iv.High
	if n.left != nil && n.left.max > n.max {
		n.max = n.left.max
	}
	if n.right != nil && n.right.max > n.max {
		n.max = n.right.max
	}
}

func rotateRight(n *intervalNode) *intervalNode {
	l := n.left
	n.left = l.right
	l.right = n
	n.update()
	l.update()
	return l
}

func rotateLeft(n *intervalNode) *intervalNode {
	r := n.right
	n.right = r.left
	r.left = n
	n.update()
	r.update()
	return r
}

func rebalance(n *intervalNode) *intervalNode {
	n.update()
	switch bf := height(n.left) - height(n.right); {
	case bf > 1:
		if height(n.left.left) < height(n.left.right) {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if height(n.right.right) < height(n.right.left) {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

func insertNode(n, x *intervalNode) *intervalNode {
	if n == nil {
		return x
	}
	if keyLess(x.iv.Low, x.id, n) {
		n.left = insertNode(n.left, x)
	} else {
		n.right = insertNode(n.right, x)
	}
	return rebalance(n)
}

func deleteNode(n *intervalNode, low float64, id int, removed *bool) *intervalNode {
	if n == nil {
		return nil
	}
	switch {
	case low == n.iv.Low && id == n.id:
		*removed = true
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		// Replace with the in-order successor.
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		var dummy bool
		n.right = deleteNode(n.right, succ.iv.Low, succ.id, &dummy)
		succ.left = n.left
		succ.right = n.right
		return rebalance(succ)
	case keyLess(low, id, n):
		n.left = deleteNode(n.left, low, id, removed)
	default:
		n.right = deleteNode(n.right, low, id, removed)
	}
	return rebalance(n)
}
