package signal

import (
	"fmt"
	"sync"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// Bias is the market permission gate. It tells which side may be traded,
// it does not generate entries.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNoTrade Bias = "NO_TRADE"
	BiasUnknown Bias = "UNKNOWN"
)

// MarketStructure classifies the recent price swing pattern.
type MarketStructure string

const (
	StructureBullish  MarketStructure = "HH-HL"
	StructureBearish  MarketStructure = "LL-LH"
	StructureSideways MarketStructure = "SIDEWAYS"
	StructureUnknown  MarketStructure = "UNKNOWN"
)

type BiasConfig struct {
	BullishDeltaMin  float64 `json:"bullish_delta_min"`  // delta at or above this permits calls
	BearishDeltaMax  float64 `json:"bearish_delta_max"`  // delta at or below this permits puts
	GammaFlatEpsilon float64 `json:"gamma_flat_epsilon"` // gamma trend below this is flat
	IVSafeLow        float64 `json:"iv_safe_low"`
	IVSafeHigh       float64 `json:"iv_safe_high"`
	IVExtremelyLow   float64 `json:"iv_extremely_low"`
	IVExtremelyHigh  float64 `json:"iv_extremely_high"`
	IVCrushPercent   float64 `json:"iv_crush_percent"` // negative; sharp drop beyond this is a crush
	HistoryDepth     int     `json:"history_depth"`
}

func DefaultBiasConfig() BiasConfig {
	return BiasConfig{
		BullishDeltaMin:  0.45,
		BearishDeltaMax:  -0.45,
		GammaFlatEpsilon: 0.01,
		IVSafeLow:        20.0,
		IVSafeHigh:       40.0,
		IVExtremelyLow:   15.0,
		IVExtremelyHigh:  50.0,
		IVCrushPercent:   -3.0,
		HistoryDepth:     100,
	}
}

// BiasMetrics exposes the component scores behind the last decision.
type BiasMetrics struct {
	DeltaSignal   float64
	GammaRising   bool
	OIVolumeAlign float64
	IVHealth      float64
	Structure     MarketStructure
	Confidence    float64
}

// BiasEngine folds option ticks into a rolling view of market permission.
// All methods are safe for concurrent use.
type BiasEngine struct {
	cfg BiasConfig

	mu        sync.Mutex
	bias      Bias
	metrics   BiasMetrics
	priceHist []float64
	gammaHist []float64
	prev      types.OptionSnapshot
	hasPrev   bool
}

func NewBiasEngine(cfg BiasConfig) *BiasEngine {
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 100
	}
	return &BiasEngine{cfg: cfg, bias: BiasUnknown}
}

// Observe folds a snapshot into the rolling state and returns the updated
// bias. Snapshots are expected in timestamp order; the caller gates
// staleness.
func (e *BiasEngine) Observe(snap types.OptionSnapshot) Bias {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.priceHist = appendCapped(e.priceHist, snap.Price, e.cfg.HistoryDepth)
	e.gammaHist = appendCapped(e.gammaHist, snap.Greeks.Gamma, e.cfg.HistoryDepth)

	if !e.hasPrev {
		e.prev = snap
		e.hasPrev = true
		e.bias = BiasUnknown
		return e.bias
	}

	deltaSignal := e.deltaSignal(snap.Greeks.Delta)
	gammaRising := e.gammaRising()
	oiVolAlign := e.oiVolumeAlignment(snap)
	ivHealth := e.ivHealth(snap.Greeks.ImpliedVol, e.prev.Greeks.ImpliedVol)
	structure := e.marketStructure()

	bias, confidence := e.decide(deltaSignal, gammaRising, oiVolAlign, ivHealth, structure)

	e.metrics = BiasMetrics{
		DeltaSignal:   deltaSignal,
		GammaRising:   gammaRising,
		OIVolumeAlign: oiVolAlign,
		IVHealth:      ivHealth,
		Structure:     structure,
		Confidence:    confidence,
	}
	e.bias = bias
	e.prev = snap
	return bias
}

func (e *BiasEngine) Bias() Bias {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bias
}

func (e *BiasEngine) Metrics() BiasMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// Allows reports whether the current bias permits the given option side.
func (e *BiasEngine) Allows(optType types.OptionType) bool {
	switch e.Bias() {
	case BiasBullish:
		return optType == types.OptionCall
	case BiasBearish:
		return optType == types.OptionPut
	default:
		return false
	}
}

func (e *BiasEngine) deltaSignal(delta float64) float64 {
	switch {
	case delta >= e.cfg.BullishDeltaMin:
		return 1
	case delta <= e.cfg.BearishDeltaMax:
		return -1
	default:
		return 0
	}
}

// gammaRising checks the trend across the last three readings. A flat or
// falling gamma means the acceleration edge is gone.
func (e *BiasEngine) gammaRising() bool {
	n := len(e.gammaHist)
	if n < 3 {
		return false
	}
	trend := e.gammaHist[n-1] - e.gammaHist[n-3]
	return trend > e.cfg.GammaFlatEpsilon*e.gammaHist[n-3]
}

// oiVolumeAlignment scores whether open interest, volume and price move
// together. OI rising with a flat price and volume is an operator trap.
func (e *BiasEngine) oiVolumeAlignment(snap types.OptionSnapshot) float64 {
	oiRising := snap.OpenInterest > e.prev.OpenInterest
	priceRising := snap.Price > e.prev.Price
	volRising := snap.Volume > e.prev.Volume

	if !oiRising {
		return 0
	}
	switch {
	case priceRising && volRising:
		return 1
	case priceRising || volRising:
		return 0.5
	default:
		return -1
	}
}

func (e *BiasEngine) ivHealth(iv, prevIV float64) float64 {
	var health float64
	switch {
	case iv >= e.cfg.IVSafeLow && iv <= e.cfg.IVSafeHigh:
		health = 0.5
	case iv < e.cfg.IVExtremelyLow:
		health = -0.5
	case iv > e.cfg.IVExtremelyHigh:
		health = -0.3
	default:
		health = 0.2
	}
	if prevIV > 0 {
		changePct := (iv - prevIV) / prevIV * 100
		if changePct < e.cfg.IVCrushPercent {
			health -= 0.5
		}
	}
	if health < -1 {
		health = -1
	}
	if health > 1 {
		health = 1
	}
	return health
}

// marketStructure compares the last five prices against the five before
// them: higher highs and higher lows read bullish, the inverse bearish.
func (e *BiasEngine) marketStructure() MarketStructure {
	n := len(e.priceHist)
	if n < 10 {
		return StructureUnknown
	}
	recent := e.priceHist[n-5:]
	prior := e.priceHist[n-10 : n-5]

	recentHigh, recentLow := highLow(recent)
	priorHigh, priorLow := highLow(prior)

	switch {
	case recentHigh > priorHigh && recentLow > priorLow:
		return StructureBullish
	case recentHigh < priorHigh && recentLow < priorLow:
		return StructureBearish
	default:
		return StructureSideways
	}
}

func (e *BiasEngine) decide(deltaSignal float64, gammaRising bool, oiVolAlign, ivHealth float64, structure MarketStructure) (Bias, float64) {
	bias := BiasNoTrade
	confidence := 20.0

	if deltaSignal != 0 {
		if gammaRising && oiVolAlign >= 0 {
			if ivHealth >= -0.3 {
				confidence = 85
			} else {
				confidence = 60
			}
			if deltaSignal > 0 {
				bias = BiasBullish
			} else {
				bias = BiasBearish
			}
		} else {
			confidence = 40
		}
	}

	if structure == StructureSideways {
		confidence *= 0.7
	}
	return bias, confidence
}

func (m BiasMetrics) String() string {
	arrow := "→"
	if m.GammaRising {
		arrow = "↑"
	}
	return fmt.Sprintf("Δ:%+.0f Γ:%s OI-V:%.2f IV:%.2f %s (%.0f%%)",
		m.DeltaSignal, arrow, m.OIVolumeAlign, m.IVHealth, m.Structure, m.Confidence)
}

func appendCapped(hist []float64, v float64, depth int) []float64 {
	hist = append(hist, v)
	if len(hist) > depth {
		hist = hist[len(hist)-depth:]
	}
	return hist
}

func highLow(vals []float64) (high, low float64) {
	high, low = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	return high, low
}
