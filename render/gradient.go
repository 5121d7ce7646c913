package render

// GradientKey is the quantized lookup key. Continuous hue/radius/intensity
// values collapse onto a small grid so nearby requests share one entry. The
// color-stop list is not part of the key: the build function derives the
// stops from the key alone, so equal quantized parameters always name the
// same artifact.
type GradientKey struct {
	Hue       int
	Radius    int
	Intensity int
}

// Quantization steps: 5 degrees of hue, 4 px of radius, 5% intensity.
const (
	hueStep       = 5.0
	radiusStep    = 4.0
	intensityStep = 0.05
)

// QuantizeKey snaps continuous parameters onto the cache grid.
func QuantizeKey(hue, radius, intensity float64) GradientKey {
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}
	hue = hue - 360*float64(int(hue/360))
	if hue < 0 {
		hue += 360
	}
	if radius < 0 {
		radius = 0
	}
	return GradientKey{
		Hue:       int(hue/hueStep + 0.5),
		Radius:    int(radius/radiusStep + 0.5),
		Intensity: int(intensity/intensityStep + 0.5),
	}
}

// GradientStop is one offset/color pair of a radial gradient.
type GradientStop struct {
	Offset float64
	R      uint8
	G      uint8
	B      uint8
	A      uint8
}

// Gradient is the cached artifact handed to the drawing layer.
type Gradient struct {
	Key   GradientKey
	Stops []GradientStop
}

// GradientCache memoizes built gradients with FIFO eviction. Not safe for
// concurrent use; it lives on the render goroutine next to the pool.
type GradientCache struct {
	cap     int
	build   func(GradientKey) Gradient
	entries map[GradientKey]Gradient
	order   []GradientKey
	hits    int
	misses  int
}

// NewGradientCache builds a cache holding at most capacity entries. The build
// function runs once per distinct quantized key until eviction.
func NewGradientCache(capacity int, build func(GradientKey) Gradient) *GradientCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &GradientCache{
		cap:     capacity,
		build:   build,
		entries: make(map[GradientKey]Gradient, capacity),
	}
}

// Lookup returns the gradient for the quantized parameters, building and
// inserting it on a miss. The oldest entry is evicted when full.
func (c *GradientCache) Lookup(hue, radius, intensity float64) Gradient {
	key := QuantizeKey(hue, radius, intensity)
	if g, ok := c.entries[key]; ok {
		c.hits++
		return g
	}
	c.misses++
	g := c.build(key)
	g.Key = key

	if len(c.entries) >= c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = g
	c.order = append(c.order, key)
	return g
}

// CacheStats reports hit/miss counters and occupancy.
type CacheStats struct {
	Hits   int
	Misses int
	Size   int
}

func (c *GradientCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

// Clear drops every entry but keeps the counters.
func (c *GradientCache) Clear() {
	c.entries = make(map[GradientKey]Gradient, c.cap)
	c.order = nil
}
