package render

// Tier is a level-of-detail bucket. Lower tiers draw more.
type Tier int

const (
	TierFull Tier = iota
	TierHigh
	TierMid
	TierFar
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierHigh:
		return "high"
	case TierMid:
		return "mid"
	default:
		return "far"
	}
}

// Tier thresholds over normalized view distance [0,1].
const (
	fullCutoff = 0.25
	highCutoff = 0.5
	midCutoff  = 0.8
)

// TierFor maps a normalized distance to a tier. Stateless; callers may
// re-evaluate every frame without hysteresis concerns because the snapshot
// smoothing already damps distance jitter.
func TierFor(normDist float64) Tier {
	switch {
	case normDist < fullCutoff:
		return TierFull
	case normDist < highCutoff:
		return TierHigh
	case normDist < midCutoff:
		return TierMid
	default:
		return TierFar
	}
}

// Detail lists what a tier draws.
type Detail struct {
	Trails          bool
	Glow            bool
	Labels          bool
	ParticleDensity float64
}

var tierDetail = [...]Detail{
	TierFull: {Trails: true, Glow: true, Labels: true, ParticleDensity: 1.0},
	TierHigh: {Trails: true, Glow: true, ParticleDensity: 0.6},
	TierMid:  {Glow: true, ParticleDensity: 0.25},
	TierFar:  {},
}

// DetailFor returns the feature set for a tier.
func DetailFor(t Tier) Detail {
	if t < TierFull || t > TierFar {
		return tierDetail[TierFar]
	}
	return tierDetail[t]
}
