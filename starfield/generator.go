// Package starfield generates the deterministic procedural star layer.
//
// Generation is a pure function of (seed, region, cell): the same inputs
// always produce the same stars, so a cell can be thrown away and rebuilt at
// any time without drift. The generator memoizes cells by key; repeated
// EnsureRadius calls over overlapping neighborhoods never duplicate a cell.
package starfield

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// CellKey identifies one generated cell within a region.
type CellKey struct {
	Region string
	CX     int
	CY     int
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Region, k.CX, k.CY)
}

// Star is a single generated point. Stars are never destroyed; ignition and
// twinkle advance are the only mutations.
type Star struct {
	Key          CellKey
	Index        int
	X            float64
	Y            float64
	Brightness   float64
	TwinklePhase float64
	TwinkleSpeed float64
	Lit          bool
	Burst        float64
}

// ID renders the canonical wire identifier for a star.
func (s *Star) ID() string {
	return fmt.Sprintf("%s:%d", s.Key.String(), s.Index)
}

// Config tunes density and layout. Zero values fall back to defaults.
type Config struct {
	Seed             int64
	CellSize         float64
	BaseStarsPerCell int
	HubRadius        float64
	FalloffScale     float64
	DensityFloor     float64
	RegionDensity    map[string]float64
	NebulaScale      float64
	NebulaInfluence  float64
}

func (c *Config) applyDefaults() {
	if c.CellSize <= 0 {
		c.CellSize = 256
	}
	if c.BaseStarsPerCell <= 0 {
		c.BaseStarsPerCell = 12
	}
	if c.HubRadius <= 0 {
		c.HubRadius = 2048
	}
	if c.FalloffScale <= 0 {
		c.FalloffScale = 4096
	}
	if c.DensityFloor <= 0 {
		c.DensityFloor = 0.15
	}
	if c.NebulaScale <= 0 {
		c.NebulaScale = 0.0009
	}
	if c.NebulaInfluence < 0 || c.NebulaInfluence >= 1 {
		c.NebulaInfluence = 0.35
	}
}

// Generator owns the memoized cell table and the lit-star overlay.
// It is not safe for concurrent use; the sync client and tick loop share one
// goroutine-confined instance.
type Generator struct {
	cfg   Config
	noise opensimplex.Noise
	cells map[CellKey][]*Star
}

// NewGenerator constructs a generator for the given config.
func NewGenerator(cfg Config) *Generator {
	cfg.applyDefaults()
	return &Generator{
		cfg:   cfg,
		noise: opensimplex.NewNormalized(cfg.Seed),
		cells: make(map[CellKey][]*Star),
	}
}

// splitmix64 is the hash-chain step every per-cell value derives from.
func splitmix64(state uint64) uint64 {
	state += 0x9e3779b97f4a7c15
	z := state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hashRegion(region string) uint64 {
	// FNV-1a, inlined to keep the chain self-contained.
	h := uint64(14695981039346656037)
	for i := 0; i < len(region); i++ {
		h ^= uint64(region[i])
		h *= 1099511628211
	}
	return h
}

type hashChain struct {
	state uint64
}

func newHashChain(seed int64, key CellKey) hashChain {
	s := uint64(seed)
	s ^= hashRegion(key.Region)
	s ^= uint64(int64(key.CX)) * 0x9e3779b97f4a7c15
	s ^= uint64(int64(key.CY)) * 0xc2b2ae3d27d4eb4f
	return hashChain{state: splitmix64(s)}
}

func (h *hashChain) next() uint64 {
	h.state = splitmix64(h.state)
	return h.state
}

func (h *hashChain) float64() float64 {
	return float64(h.next()>>11) / float64(1<<53)
}

// GenerateCell computes the star list for a cell. It is pure: it never touches
// the memo table and two calls with the same key return identical content.
func (g *Generator) GenerateCell(key CellKey) []*Star {
	chain := newHashChain(g.cfg.Seed, key)

	base := 1 + int(chain.float64()*float64(g.cfg.BaseStarsPerCell))
	count := int(math.Round(float64(base) * g.densityAt(key)))
	if count < 0 {
		count = 0
	}

	stars := make([]*Star, 0, count)
	for i := 0; i < count; i++ {
		stars = append(stars, &Star{
			Key:          key,
			Index:        i,
			X:            (float64(key.CX) + chain.float64()) * g.cfg.CellSize,
			Y:            (float64(key.CY) + chain.float64()) * g.cfg.CellSize,
			Brightness:   0.3 + 0.7*chain.float64(),
			TwinklePhase: 2 * math.Pi * chain.float64(),
			TwinkleSpeed: 0.5 + 1.5*chain.float64(),
		})
	}
	return stars
}

// densityAt multiplies the region density, the radial hub falloff, and the
// nebula modulation for a cell center.
func (g *Generator) densityAt(key CellKey) float64 {
	density := 1.0
	if mult, ok := g.cfg.RegionDensity[key.Region]; ok && mult > 0 {
		density = mult
	}

	cx := (float64(key.CX) + 0.5) * g.cfg.CellSize
	cy := (float64(key.CY) + 0.5) * g.cfg.CellSize
	density *= g.hubFalloff(math.Hypot(cx, cy))
	density *= g.nebulaModulation(cx, cy)
	return density
}

// hubFalloff keeps full density inside the hub radius and decays
// exponentially beyond it, never dropping below the configured floor.
func (g *Generator) hubFalloff(dist float64) float64 {
	if dist <= g.cfg.HubRadius {
		return 1
	}
	decay := math.Exp(-(dist - g.cfg.HubRadius) / g.cfg.FalloffScale)
	return g.cfg.DensityFloor + (1-g.cfg.DensityFloor)*decay
}

// nebulaModulation maps a smooth noise field into a band around 1.0 so dense
// and sparse drifts form at nebula scale. Deterministic for a given seed.
func (g *Generator) nebulaModulation(x, y float64) float64 {
	n := g.noise.Eval2(x*g.cfg.NebulaScale, y*g.cfg.NebulaScale)
	return 1 - g.cfg.NebulaInfluence + 2*g.cfg.NebulaInfluence*n
}

// NebulaDensityAt exposes the raw nebula field for background rendering.
func (g *Generator) NebulaDensityAt(x, y float64) float64 {
	return g.noise.Eval2(x*g.cfg.NebulaScale, y*g.cfg.NebulaScale)
}

// EnsureRadius generates every cell in the square neighborhood of radiusCells
// around the focus point, skipping cells already memoized. Returns the number
// of newly generated cells.
func (g *Generator) EnsureRadius(fx, fy float64, region string, radiusCells int) int {
	if radiusCells < 0 {
		return 0
	}
	focusCX := int(math.Floor(fx / g.cfg.CellSize))
	focusCY := int(math.Floor(fy / g.cfg.CellSize))

	generated := 0
	for cy := focusCY - radiusCells; cy <= focusCY+radiusCells; cy++ {
		for cx := focusCX - radiusCells; cx <= focusCX+radiusCells; cx++ {
			key := CellKey{Region: region, CX: cx, CY: cy}
			if _, ok := g.cells[key]; ok {
				continue
			}
			g.cells[key] = g.GenerateCell(key)
			generated++
		}
	}
	return generated
}

// Cell returns the memoized stars for a key, or nil when not yet generated.
func (g *Generator) Cell(key CellKey) []*Star {
	return g.cells[key]
}

// CellCount reports how many cells are currently memoized.
func (g *Generator) CellCount() int {
	return len(g.cells)
}

// Keys returns the memoized cell keys in unspecified order.
func (g *Generator) Keys() []CellKey {
	keys := make([]CellKey, 0, len(g.cells))
	for key := range g.cells {
		keys = append(keys, key)
	}
	return keys
}

// Ignite marks a star lit and arms its burst decay. Returns false when the
// cell is not memoized or the index is out of range. Re-igniting a lit star
// only refreshes the burst.
func (g *Generator) Ignite(key CellKey, index int) bool {
	stars, ok := g.cells[key]
	if !ok || index < 0 || index >= len(stars) {
		return false
	}
	star := stars[index]
	star.Lit = true
	star.Burst = 1
	return true
}

// IgniteID ignites a star by its wire identifier.
func (g *Generator) IgniteID(id string) bool {
	key, index, err := ParseStarID(id)
	if err != nil {
		return false
	}
	return g.Ignite(key, index)
}

const burstDecayPerSecond = 1.2

// AdvanceTwinkle moves every memoized star's twinkle phase forward and decays
// active ignition bursts.
func (g *Generator) AdvanceTwinkle(dt float64) {
	if dt <= 0 {
		return
	}
	for _, stars := range g.cells {
		for _, star := range stars {
			star.TwinklePhase = math.Mod(star.TwinklePhase+star.TwinkleSpeed*dt, 2*math.Pi)
			if star.Burst > 0 {
				star.Burst -= burstDecayPerSecond * dt
				if star.Burst < 0 {
					star.Burst = 0
				}
			}
		}
	}
}

// EvictBeyond drops memoized cells of the given region whose Chebyshev cell
// distance from the focus exceeds retainCells. Lit flags on evicted cells are
// lost locally; the server's lit-star list restores them on regeneration.
// Returns the number of evicted cells.
func (g *Generator) EvictBeyond(fx, fy float64, region string, retainCells int) int {
	if retainCells < 0 {
		return 0
	}
	focusCX := int(math.Floor(fx / g.cfg.CellSize))
	focusCY := int(math.Floor(fy / g.cfg.CellSize))

	evicted := 0
	for key := range g.cells {
		if key.Region != region {
			continue
		}
		dx := key.CX - focusCX
		if dx < 0 {
			dx = -dx
		}
		dy := key.CY - focusCY
		if dy < 0 {
			dy = -dy
		}
		if dx > retainCells || dy > retainCells {
			delete(g.cells, key)
			evicted++
		}
	}
	return evicted
}

// ParseStarID splits a canonical "region:cx:cy:index" identifier.
func ParseStarID(id string) (CellKey, int, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] == "" {
		return CellKey{}, 0, fmt.Errorf("star id %q: want region:cx:cy:index", id)
	}
	cx, err := strconv.Atoi(parts[1])
	if err != nil {
		return CellKey{}, 0, fmt.Errorf("star id %q: bad cell x: %w", id, err)
	}
	cy, err := strconv.Atoi(parts[2])
	if err != nil {
		return CellKey{}, 0, fmt.Errorf("star id %q: bad cell y: %w", id, err)
	}
	index, err := strconv.Atoi(parts[3])
	if err != nil || index < 0 {
		return CellKey{}, 0, fmt.Errorf("star id %q: bad index", id)
	}
	return CellKey{Region: parts[0], CX: cx, CY: cy}, index, nil
}
