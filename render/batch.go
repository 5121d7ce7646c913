package render

// batchKey groups sprites that can share one draw call.
type batchKey struct {
	texture string
	tier    Tier
}

// Batch is one draw call worth of sprites, in queue order.
type Batch struct {
	Texture string
	Tier    Tier
	Sprites []*Sprite
}

// Batcher groups queued sprites by texture and tier. Batches come back in
// first-seen key order so layering stays stable frame to frame. Not safe for
// concurrent use.
type Batcher struct {
	batches map[batchKey]*Batch
	order   []batchKey
	queued  int
}

func NewBatcher() *Batcher {
	return &Batcher{batches: make(map[batchKey]*Batch)}
}

// Queue appends a sprite to its group.
func (b *Batcher) Queue(s *Sprite) {
	if s == nil {
		return
	}
	key := batchKey{texture: s.Texture, tier: s.Tier}
	batch, ok := b.batches[key]
	if !ok {
		batch = &Batch{Texture: s.Texture, Tier: s.Tier}
		b.batches[key] = batch
		b.order = append(b.order, key)
	}
	batch.Sprites = append(batch.Sprites, s)
	b.queued++
}

// Flush returns the grouped batches and resets the batcher for the next frame.
// Sprites are not released; that stays with the pool owner.
func (b *Batcher) Flush() []Batch {
	out := make([]Batch, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, *b.batches[key])
	}
	b.batches = make(map[batchKey]*Batch)
	b.order = nil
	b.queued = 0
	return out
}

// Queued reports how many sprites wait in the current frame.
func (b *Batcher) Queued() int {
	return b.queued
}
