// Copyright 2025 BPI Labs

package economy

import "sync"

// RollingMeans tracks an exponential rolling mean per PoE component so
// Φ(t) normalizes each raw measurement against recent history instead
// of a fixed scale, resisting one-epoch gaming of a single component.
type RollingMeans struct {
	mu    sync.Mutex
	alpha float64
	means PoEComponents
	seen  bool
}

// NewRollingMeans returns a tracker with smoothing factor alpha in
// (0,1]; higher alpha weights the most recent epoch more heavily.
func NewRollingMeans(alpha float64) *RollingMeans {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &RollingMeans{alpha: alpha}
}

// Normalize divides each raw component by its rolling mean (capped at
// 1.0 so no component can push Φ above its own weight), then folds the
// raw measurement into the mean for the next epoch.
func (r *RollingMeans) Normalize(raw PoEComponents) PoEComponents {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seen {
		r.means = raw
		r.seen = true
		return PoEComponents{Volume: 1, Liquidity: 1, Uptime: 1, Quality: 1}
	}

	norm := PoEComponents{
		Volume:    capUnit(divOrOne(raw.Volume, r.means.Volume)),
		Liquidity: capUnit(divOrOne(raw.Liquidity, r.means.Liquidity)),
		Uptime:    capUnit(divOrOne(raw.Uptime, r.means.Uptime)),
		Quality:   capUnit(divOrOne(raw.Quality, r.means.Quality)),
	}

	r.means = PoEComponents{
		Volume:    ema(r.means.Volume, raw.Volume, r.alpha),
		Liquidity: ema(r.means.Liquidity, raw.Liquidity, r.alpha),
		Uptime:    ema(r.means.Uptime, raw.Uptime, r.alpha),
		Quality:   ema(r.means.Quality, raw.Quality, r.alpha),
	}

	return norm
}

func divOrOne(v, mean float64) float64 {
	if mean <= 0 {
		return 1
	}
	return v / mean
}

func capUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ema(prevMean, sample, alpha float64) float64 {
	return alpha*sample + (1-alpha)*prevMean
}

// ComputePhi folds normalized components into Φ = wV·V̂ + wL·L̂ + wU·Û + wQ·Q̂.
// Callers must have validated weights sum to 1 via PoEWeights.Sum().
func ComputePhi(epoch uint64, normalized PoEComponents, weights PoEWeights) PoEIndex {
	phi := weights.Volume*normalized.Volume +
		weights.Liquidity*normalized.Liquidity +
		weights.Uptime*normalized.Uptime +
		weights.Quality*normalized.Quality

	return PoEIndex{
		Phi:        phi,
		Components: normalized,
		Epoch:      epoch,
	}
}

// Gamma is the gating function Γ(Φ) = Φ/(1+Φ), mapping Φ∈[0,∞) onto
// [0,1) so emission scales smoothly rather than stepping at the NEX
// threshold.
func Gamma(phi float64) float64 {
	if phi < 0 {
		phi = 0
	}
	return phi / (1 + phi)
}
