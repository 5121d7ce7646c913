package render

// Pool recycles sprites so a steady frame allocates nothing. Not safe for
// concurrent use; one pool belongs to one render goroutine.
type Pool struct {
	free      []*Sprite
	allocated int
	reused    int
}

// NewPool preallocates n sprites.
func NewPool(n int) *Pool {
	if n < 0 {
		n = 0
	}
	p := &Pool{free: make([]*Sprite, 0, n)}
	for i := 0; i < n; i++ {
		s := &Sprite{}
		s.reset()
		p.free = append(p.free, s)
	}
	p.allocated = n
	return p
}

// Acquire returns a reset sprite, allocating only when the free list is empty.
func (p *Pool) Acquire() *Sprite {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.reused++
		return s
	}
	p.allocated++
	s := &Sprite{}
	s.reset()
	return s
}

// Release resets a sprite and returns it to the free list. Nil is ignored.
func (p *Pool) Release(s *Sprite) {
	if s == nil {
		return
	}
	s.reset()
	p.free = append(p.free, s)
}

// PoolStats reports allocation behavior for diagnostics.
type PoolStats struct {
	Allocated int
	Reused    int
	Free      int
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{Allocated: p.allocated, Reused: p.reused, Free: len(p.free)}
}
