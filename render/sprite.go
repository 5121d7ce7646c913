// Package render holds the allocation-free support utilities a drawing layer
// leans on every frame: a sprite pool, a quantized gradient cache, stateless
// level-of-detail selection, and draw-call batching. The package never draws;
// the embedding renderer consumes what it produces.
package render

// Sprite is one queued draw request. Instances come from a Pool and must be
// released back once the frame is flushed.
type Sprite struct {
	Texture  string
	X        float64
	Y        float64
	Scale    float64
	Rotation float64
	Alpha    float64
	Layer    int
	Tier     Tier
}

func (s *Sprite) reset() {
	*s = Sprite{Scale: 1, Alpha: 1}
}
