package signal

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// TrapType names the manipulation patterns the detector recognizes.
type TrapType string

const (
	TrapOINoPremium     TrapType = "OI_NO_PREMIUM_RISE"
	TrapPremiumNoOI     TrapType = "PREMIUM_NO_OI"
	TrapOISpikeNoFollow TrapType = "OI_SPIKE_NO_FOLLOW"
	TrapIVCrush         TrapType = "IV_DROP_CRUSH"
	TrapChoppyHighIV    TrapType = "IV_CHOPPY_UNDERLYING"
	TrapSpreadWidening  TrapType = "SPREAD_WIDENING"
	TrapLiquidityDrop   TrapType = "LIQUIDITY_EVAPORATION"
	TrapDeltaSpike      TrapType = "DELTA_SPIKE_COLLAPSE"
)

// Trap is a detected manipulation pattern with a 0-100 severity.
type Trap struct {
	Type        TrapType
	Severity    float64
	Description string
	Timestamp   time.Time
}

type TrapConfig struct {
	FlatPremiumEpsilon  float64 `json:"flat_premium_epsilon"` // premium range below this counts as flat
	OISpikeThreshold    float64 `json:"oi_spike_threshold"`   // single-step OI jump that needs follow-through
	OIDropThreshold     float64 `json:"oi_drop_threshold"`    // OI decline that flags short covering
	IVCrushPercent      float64 `json:"iv_crush_percent"`     // negative
	IVExtremelyHigh     float64 `json:"iv_extremely_high"`
	SpreadWideningPct   float64 `json:"spread_widening_pct"` // jump over recent average, in percent points
	VolumeDropPercent   float64 `json:"volume_drop_percent"`
	DeltaSpikeThreshold float64 `json:"delta_spike_threshold"`
	HistoryDepth        int     `json:"history_depth"`
	SkipSeverity        float64 `json:"skip_severity"` // severity at or above which an entry is skipped outright
}

func DefaultTrapConfig() TrapConfig {
	return TrapConfig{
		FlatPremiumEpsilon:  1.0,
		OISpikeThreshold:    200,
		OIDropThreshold:     50,
		IVCrushPercent:      -5.0,
		IVExtremelyHigh:     50.0,
		SpreadWideningPct:   0.5,
		VolumeDropPercent:   50,
		DeltaSpikeThreshold: 0.15,
		HistoryDepth:        50,
		SkipSeverity:        70,
	}
}

// TrapDetector watches the tick stream for patterns where open interest,
// premium, volume, IV and spread stop confirming each other. It protects
// the entry path; exits have their own triggers.
type TrapDetector struct {
	cfg TrapConfig

	mu         sync.Mutex
	prices     []float64
	ois        []float64
	ivs        []float64
	spreadPcts []float64
	deltas     []float64
	volumes    []float64
	recent     []Trap
}

func NewTrapDetector(cfg TrapConfig) *TrapDetector {
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 50
	}
	return &TrapDetector{cfg: cfg}
}

// Observe folds a snapshot in and returns the first trap detected, if
// any. Checks run in rough order of how often they fire in practice.
func (d *TrapDetector) Observe(snap types.OptionSnapshot) *Trap {
	d.mu.Lock()
	defer d.mu.Unlock()

	depth := d.cfg.HistoryDepth
	d.prices = appendCapped(d.prices, snap.Price, depth)
	d.ois = appendCapped(d.ois, snap.OpenInterest, depth)
	d.ivs = appendCapped(d.ivs, snap.Greeks.ImpliedVol, depth)
	d.spreadPcts = appendCapped(d.spreadPcts, snap.SpreadPercent(), depth)
	d.deltas = appendCapped(d.deltas, snap.Greeks.Delta, depth)
	d.volumes = appendCapped(d.volumes, snap.Volume, depth)

	checks := []func(types.OptionSnapshot) *Trap{
		d.oiNoPremium,
		d.premiumNoOI,
		d.oiSpikeNoFollow,
		d.ivCrush,
		d.choppyHighIV,
		d.spreadWidening,
		d.liquidityDrop,
		d.deltaSpikeCollapse,
	}
	for _, check := range checks {
		if trap := check(snap); trap != nil {
			trap.Timestamp = snap.Timestamp
			d.recent = append(d.recent, *trap)
			d.pruneLocked(snap.Timestamp)
			return trap
		}
	}
	d.pruneLocked(snap.Timestamp)
	return nil
}

// ShouldSkipEntry applies the severity policy: high-severity traps skip
// outright, medium ones skip when the tape has been dirty recently.
func (d *TrapDetector) ShouldSkipEntry(trap *Trap) bool {
	if trap == nil {
		return false
	}
	if trap.Severity >= d.cfg.SkipSeverity {
		return true
	}
	if trap.Severity > 50 {
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, t := range d.recent {
			if t.Timestamp.Before(trap.Timestamp) && trap.Timestamp.Sub(t.Timestamp) <= 5*time.Second {
				return true
			}
		}
	}
	return false
}

// RecentTraps returns traps seen within the window before now.
func (d *TrapDetector) RecentTraps(now time.Time, window time.Duration) []Trap {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-window)
	var out []Trap
	for _, t := range d.recent {
		if t.Timestamp.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (d *TrapDetector) pruneLocked(now time.Time) {
	cutoff := now.Add(-60 * time.Second)
	kept := d.recent[:0]
	for _, t := range d.recent {
		if t.Timestamp.After(cutoff) {
			kept = append(kept, t)
		}
	}
	d.recent = kept
}

func (d *TrapDetector) oiNoPremium(types.OptionSnapshot) *Trap {
	if len(d.ois) < 5 {
		return nil
	}
	oiTrend := tail(d.ois) - back(d.ois, 4)
	high, low := highLow(d.prices[len(d.prices)-5:])
	if oiTrend > 0 && high-low < d.cfg.FlatPremiumEpsilon {
		return &Trap{
			Type:        TrapOINoPremium,
			Severity:    math.Min(oiTrend, 80),
			Description: fmt.Sprintf("OI +%.0f but premium range < %.1f", oiTrend, d.cfg.FlatPremiumEpsilon),
		}
	}
	return nil
}

func (d *TrapDetector) premiumNoOI(types.OptionSnapshot) *Trap {
	if len(d.ois) < 5 {
		return nil
	}
	oiTrend := tail(d.ois) - back(d.ois, 4)
	premiumTrend := tail(d.prices) - back(d.prices, 4)
	if oiTrend < -d.cfg.OIDropThreshold && premiumTrend > 2 {
		return &Trap{
			Type:        TrapPremiumNoOI,
			Severity:    math.Min(-oiTrend/d.cfg.OIDropThreshold*35, 70),
			Description: fmt.Sprintf("premium +%.1f with OI falling %.0f (short covering)", premiumTrend, oiTrend),
		}
	}
	return nil
}

func (d *TrapDetector) oiSpikeNoFollow(types.OptionSnapshot) *Trap {
	if len(d.ois) < 10 {
		return nil
	}
	window := d.ois[len(d.ois)-10:]
	var maxJump float64
	for i := 1; i < len(window); i++ {
		if j := window[i] - window[i-1]; j > maxJump {
			maxJump = j
		}
	}
	if maxJump <= d.cfg.OISpikeThreshold {
		return nil
	}
	follow := tail(d.prices) - back(d.prices, 4)
	if math.Abs(follow) < d.cfg.FlatPremiumEpsilon {
		return &Trap{
			Type:        TrapOISpikeNoFollow,
			Severity:    math.Min(maxJump/d.cfg.OISpikeThreshold*75, 85),
			Description: fmt.Sprintf("OI spike +%.0f with no premium continuation", maxJump),
		}
	}
	return nil
}

func (d *TrapDetector) ivCrush(snap types.OptionSnapshot) *Trap {
	if len(d.ivs) < 5 {
		return nil
	}
	base := back(d.ivs, 4)
	if base <= 0 {
		return nil
	}
	changePct := (snap.Greeks.ImpliedVol - base) / base * 100
	premiumMove := tail(d.prices) - back(d.prices, 4)
	if changePct < d.cfg.IVCrushPercent && math.Abs(premiumMove) < d.cfg.FlatPremiumEpsilon {
		return &Trap{
			Type:        TrapIVCrush,
			Severity:    math.Min(math.Abs(changePct)*10, 85),
			Description: fmt.Sprintf("IV %.1f%% with flat premium (crush risk)", changePct),
		}
	}
	return nil
}

func (d *TrapDetector) choppyHighIV(types.OptionSnapshot) *Trap {
	if len(d.ivs) < 10 {
		return nil
	}
	window := d.ivs[len(d.ivs)-10:]
	var avgIV float64
	for _, v := range window {
		avgIV += v
	}
	avgIV /= float64(len(window))

	prices := d.prices[len(d.prices)-10:]
	reversals := 0
	for i := 1; i < len(prices)-1; i++ {
		if (prices[i] > prices[i-1] && prices[i] > prices[i+1]) ||
			(prices[i] < prices[i-1] && prices[i] < prices[i+1]) {
			reversals++
		}
	}
	choppiness := float64(reversals) / float64(len(prices))
	if avgIV > d.cfg.IVExtremelyHigh && choppiness > 0.5 {
		return &Trap{
			Type:        TrapChoppyHighIV,
			Severity:    math.Min(choppiness*100, 70),
			Description: fmt.Sprintf("high IV (%.1f) with choppy price action", avgIV),
		}
	}
	return nil
}

func (d *TrapDetector) spreadWidening(snap types.OptionSnapshot) *Trap {
	if len(d.spreadPcts) < 5 {
		return nil
	}
	// average of the window excluding the two freshest ticks
	base := d.spreadPcts[len(d.spreadPcts)-5 : len(d.spreadPcts)-2]
	var avg float64
	for _, s := range base {
		avg += s
	}
	avg /= float64(len(base))

	widening := snap.SpreadPercent() - avg
	if widening > d.cfg.SpreadWideningPct {
		return &Trap{
			Type:        TrapSpreadWidening,
			Severity:    math.Min(widening*50, 75),
			Description: fmt.Sprintf("spread widened from %.2f%% to %.2f%%", avg, snap.SpreadPercent()),
		}
	}
	return nil
}

func (d *TrapDetector) liquidityDrop(snap types.OptionSnapshot) *Trap {
	if len(d.volumes) < 5 {
		return nil
	}
	base := d.volumes[len(d.volumes)-5 : len(d.volumes)-1]
	var avg float64
	for _, v := range base {
		avg += v
	}
	avg /= float64(len(base))
	if avg <= 0 {
		return nil
	}
	dropPct := (avg - snap.Volume) / avg * 100
	if dropPct > d.cfg.VolumeDropPercent {
		return &Trap{
			Type:        TrapLiquidityDrop,
			Severity:    math.Min(dropPct/2, 80),
			Description: fmt.Sprintf("volume dropped %.1f%% (avg %.0f to %.0f)", dropPct, avg, snap.Volume),
		}
	}
	return nil
}

func (d *TrapDetector) deltaSpikeCollapse(types.OptionSnapshot) *Trap {
	if len(d.deltas) < 3 {
		return nil
	}
	prev := d.deltas[len(d.deltas)-3]
	spike := d.deltas[len(d.deltas)-2]
	cur := d.deltas[len(d.deltas)-1]

	if math.Abs(spike-prev) > d.cfg.DeltaSpikeThreshold && math.Abs(cur-spike) > 0.10 {
		return &Trap{
			Type:        TrapDeltaSpike,
			Severity:    math.Min(math.Abs(spike-prev)*100, 75),
			Description: fmt.Sprintf("delta spike %.2f to %.2f to %.2f (fake move)", prev, spike, cur),
		}
	}
	return nil
}

func tail(vals []float64) float64 {
	return vals[len(vals)-1]
}

// back returns the value n ticks before the newest one.
func back(vals []float64, n int) float64 {
	return vals[len(vals)-1-n]
}
