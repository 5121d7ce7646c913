// Package spatial provides the per-tick quadtree used for visibility and
// proximity queries over entities and stars.
//
// The tree is rebuilt from scratch every simulation tick rather than updated
// incrementally. Items never move between nodes, which keeps the structure
// simple at O(n log n) rebuild cost; entity counts stay in the low thousands.
package spatial

import "math"

// Point is a position in world coordinates.
type Point struct {
	X float64
	Y float64
}

// Bounds is an axis-aligned rectangle anchored at its top-left corner.
type Bounds struct {
	X float64
	Y float64
	W float64
	H float64
}

// contains uses half-open edges so the four children of a node tile it
// without overlap. The root is special-cased in Insert to accept its far edges.
func (b Bounds) contains(p Point) bool {
	return p.X >= b.X && p.X < b.X+b.W && p.Y >= b.Y && p.Y < b.Y+b.H
}

func (b Bounds) intersectsRect(o Bounds) bool {
	return b.X <= o.X+o.W && b.X+b.W >= o.X && b.Y <= o.Y+o.H && b.Y+b.H >= o.Y
}

// intersectsCircle clamps the circle center onto the rectangle and compares
// the residual distance against the radius.
func (b Bounds) intersectsCircle(cx, cy, r float64) bool {
	nx := math.Max(b.X, math.Min(cx, b.X+b.W))
	ny := math.Max(b.Y, math.Min(cy, b.Y+b.H))
	dx := cx - nx
	dy := cy - ny
	return dx*dx+dy*dy <= r*r
}

type item struct {
	point Point
	ref   string
}

type node struct {
	bounds   Bounds
	depth    int
	items    []item
	children *[4]node
}

// Quadtree partitions a fixed region into recursively subdivided quadrants.
// Payloads are opaque string handles, not object references, so the tree can
// be discarded and rebuilt every tick without aliasing the entity table.
type Quadtree struct {
	root      node
	threshold int
	maxDepth  int
	size      int
}

const (
	defaultThreshold = 8
	defaultMaxDepth  = 6
)

// New constructs a quadtree over the given bounds. A non-positive threshold
// or depth falls back to the defaults.
func New(bounds Bounds, threshold, maxDepth int) *Quadtree {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Quadtree{
		root:      node{bounds: bounds},
		threshold: threshold,
		maxDepth:  maxDepth,
	}
}

// Insert places a payload at the given point. It returns false only when the
// point lies outside the root bounds.
func (q *Quadtree) Insert(p Point, ref string) bool {
	b := q.root.bounds
	if p.X < b.X || p.X > b.X+b.W || p.Y < b.Y || p.Y > b.Y+b.H {
		return false
	}
	q.insert(&q.root, item{point: p, ref: ref})
	q.size++
	return true
}

func (q *Quadtree) insert(n *node, it item) {
	if n.children != nil {
		q.insertChild(n, it)
		return
	}
	n.items = append(n.items, it)
	// Subdivide on first overflow unless the depth cap was reached, in which
	// case the leaf holds the excess.
	if len(n.items) > q.threshold && n.depth < q.maxDepth {
		q.subdivide(n)
	}
}

func (q *Quadtree) subdivide(n *node) {
	hw := n.bounds.W / 2
	hh := n.bounds.H / 2
	children := &[4]node{
		{bounds: Bounds{X: n.bounds.X, Y: n.bounds.Y, W: hw, H: hh}, depth: n.depth + 1},
		{bounds: Bounds{X: n.bounds.X + hw, Y: n.bounds.Y, W: hw, H: hh}, depth: n.depth + 1},
		{bounds: Bounds{X: n.bounds.X, Y: n.bounds.Y + hh, W: hw, H: hh}, depth: n.depth + 1},
		{bounds: Bounds{X: n.bounds.X + hw, Y: n.bounds.Y + hh, W: hw, H: hh}, depth: n.depth + 1},
	}
	pending := n.items
	n.items = nil
	n.children = children
	for _, it := range pending {
		q.insertChild(n, it)
	}
}

func (q *Quadtree) insertChild(n *node, it item) {
	for i := range n.children {
		if n.children[i].contains(it.point, n) {
			q.insert(&n.children[i], it)
			return
		}
	}
	// Points on the far edges of the parent fall through half-open child
	// containment; keep them on the deepest node that holds them.
	n.items = append(n.items, it)
}

// contains widens the half-open child test for points on the parent's far
// edges so every point accepted by Insert lands somewhere.
func (n *node) contains(p Point, parent *node) bool {
	if n.bounds.contains(p) {
		return true
	}
	farX := parent.bounds.X + parent.bounds.W
	farY := parent.bounds.Y + parent.bounds.H
	onFarX := p.X == farX && n.bounds.X+n.bounds.W == farX
	onFarY := p.Y == farY && n.bounds.Y+n.bounds.H == farY
	inX := (p.X >= n.bounds.X && p.X < n.bounds.X+n.bounds.W) || onFarX
	inY := (p.Y >= n.bounds.Y && p.Y < n.bounds.Y+n.bounds.H) || onFarY
	return inX && inY
}

// QueryRadius returns every payload within distance r of center, pruning
// subtrees whose bounds do not touch the circle.
func (q *Quadtree) QueryRadius(center Point, r float64) []string {
	if r < 0 {
		return nil
	}
	var out []string
	q.root.queryRadius(center.X, center.Y, r, &out)
	return out
}

func (n *node) queryRadius(cx, cy, r float64, out *[]string) {
	if !n.bounds.intersectsCircle(cx, cy, r) {
		return
	}
	for _, it := range n.items {
		dx := it.point.X - cx
		dy := it.point.Y - cy
		if dx*dx+dy*dy <= r*r {
			*out = append(*out, it.ref)
		}
	}
	if n.children == nil {
		return
	}
	for i := range n.children {
		n.children[i].queryRadius(cx, cy, r, out)
	}
}

// QueryRect returns every payload inside the rectangle (edges inclusive),
// pruning subtrees that do not overlap it.
func (q *Quadtree) QueryRect(x, y, w, h float64) []string {
	rect := Bounds{X: x, Y: y, W: w, H: h}
	var out []string
	q.root.queryRect(rect, &out)
	return out
}

func (n *node) queryRect(rect Bounds, out *[]string) {
	if !n.bounds.intersectsRect(rect) {
		return
	}
	for _, it := range n.items {
		p := it.point
		if p.X >= rect.X && p.X <= rect.X+rect.W && p.Y >= rect.Y && p.Y <= rect.Y+rect.H {
			*out = append(*out, it.ref)
		}
	}
	if n.children == nil {
		return
	}
	for i := range n.children {
		n.children[i].queryRect(rect, out)
	}
}

// Clear discards all items and children, keeping the configured bounds.
func (q *Quadtree) Clear() {
	q.root = node{bounds: q.root.bounds}
	q.size = 0
}

// Len reports the number of stored items.
func (q *Quadtree) Len() int {
	return q.size
}

// Bounds returns the root bounds the tree was built with.
func (q *Quadtree) Bounds() Bounds {
	return q.root.bounds
}
