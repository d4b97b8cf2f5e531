package signal

import (
	"math"
	"sync"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// EntrySignal is the outcome of an entry check.
type EntrySignal string

const (
	NoSignal EntrySignal = "NO_SIGNAL"
	CallBuy  EntrySignal = "CALL_BUY"
	PutBuy   EntrySignal = "PUT_BUY"
)

type EntryConfig struct {
	MaxSpreadPercent    float64 `json:"max_spread_percent"`
	IdealDeltaCallMin   float64 `json:"ideal_delta_call_min"`
	IdealDeltaPutMax    float64 `json:"ideal_delta_put_max"` // negative
	IdealGammaMin       float64 `json:"ideal_gamma_min"`
	RejectFlatPrice     float64 `json:"reject_flat_price"`      // min price move per tick
	RejectIVDropPercent float64 `json:"reject_iv_drop_percent"` // negative
	RejectSpreadPercent float64 `json:"reject_spread_percent"`
	RejectDeltaJump     float64 `json:"reject_delta_jump"`
	MinConfidence       float64 `json:"min_confidence"`
}

func DefaultEntryConfig() EntryConfig {
	return EntryConfig{
		MaxSpreadPercent:    1.0,
		IdealDeltaCallMin:   0.45,
		IdealDeltaPutMax:    -0.45,
		IdealGammaMin:       0.002,
		RejectFlatPrice:     0.002,
		RejectIVDropPercent: -3.0,
		RejectSpreadPercent: 1.5,
		RejectDeltaJump:     0.20,
		MinConfidence:       60,
	}
}

// EntryContext records everything known at signal time. It rides along
// with the trade into the journal.
type EntryContext struct {
	Signal     EntrySignal
	OptionType types.OptionType
	Symbol     string
	Strike     float64
	Price      float64
	Greeks     types.Greeks
	Reasons    []string
	Confidence float64
}

// EntryEngine fires only when acceleration, commitment and participation
// all confirm at once: premium, volume, OI and gamma rising, delta in the
// power zone, side permitted by the bias, tape clean of traps.
type EntryEngine struct {
	cfg  EntryConfig
	bias *BiasEngine
	trap *TrapDetector

	mu   sync.Mutex
	last *EntryContext
}

func NewEntryEngine(cfg EntryConfig, bias *BiasEngine, trap *TrapDetector) *EntryEngine {
	return &EntryEngine{cfg: cfg, bias: bias, trap: trap}
}

// Check evaluates one tick pair for an entry. prev must be the
// immediately preceding snapshot of the same contract. Returns nil when
// any condition fails; all conditions must hold, none compensates for
// another.
func (e *EntryEngine) Check(quote types.OptionQuote, prev types.OptionSnapshot) *EntryContext {
	snap := quote.OptionSnapshot
	bias := e.bias.Bias()

	if bias != BiasBullish && bias != BiasBearish {
		return nil
	}
	if snap.Bid <= 0 || snap.Ask <= 0 || snap.Price <= 0 {
		return nil
	}
	if snap.SpreadPercent() > e.cfg.MaxSpreadPercent {
		return nil
	}

	var reasons []string
	confidence := 0.0

	if snap.Price <= prev.Price {
		return nil
	}
	reasons = append(reasons, "ltp_rising")
	confidence += 15

	if snap.Volume <= prev.Volume {
		return nil
	}
	reasons = append(reasons, "volume_rising")
	confidence += 15

	if snap.OpenInterest <= prev.OpenInterest {
		return nil
	}
	reasons = append(reasons, "oi_rising")
	confidence += 15

	if snap.Greeks.Gamma <= prev.Greeks.Gamma || snap.Greeks.Gamma <= e.cfg.IdealGammaMin {
		return nil
	}
	reasons = append(reasons, "gamma_rising")
	confidence += 15

	signal := NoSignal
	if bias == BiasBullish {
		if quote.OptionType != types.OptionCall || snap.Greeks.Delta < e.cfg.IdealDeltaCallMin {
			return nil
		}
		signal = CallBuy
	} else {
		if quote.OptionType != types.OptionPut || snap.Greeks.Delta > e.cfg.IdealDeltaPutMax {
			return nil
		}
		signal = PutBuy
	}
	reasons = append(reasons, "delta_power_zone")
	confidence += 20

	if e.rejected(snap, prev) {
		return nil
	}

	trap := e.trap.Observe(snap)
	if e.trap.ShouldSkipEntry(trap) {
		return nil
	}

	confidence += e.bias.Metrics().Confidence * 0.2
	if confidence > 100 {
		confidence = 100
	}

	ctx := &EntryContext{
		Signal:     signal,
		OptionType: quote.OptionType,
		Symbol:     snap.Symbol,
		Strike:     quote.Strike,
		Price:      snap.Price,
		Greeks:     snap.Greeks,
		Reasons:    reasons,
		Confidence: confidence,
	}

	e.mu.Lock()
	e.last = ctx
	e.mu.Unlock()
	return ctx
}

// rejected applies the hard veto rules that override an otherwise clean
// alignment.
func (e *EntryEngine) rejected(snap, prev types.OptionSnapshot) bool {
	if math.Abs(snap.Price-prev.Price) < e.cfg.RejectFlatPrice {
		return true
	}
	if prev.Greeks.ImpliedVol > 0 {
		ivChangePct := (snap.Greeks.ImpliedVol - prev.Greeks.ImpliedVol) / prev.Greeks.ImpliedVol * 100
		if ivChangePct < e.cfg.RejectIVDropPercent {
			return true
		}
	}
	if snap.SpreadPercent() > e.cfg.RejectSpreadPercent {
		return true
	}
	if math.Abs(snap.Greeks.Delta-prev.Greeks.Delta) > e.cfg.RejectDeltaJump {
		return true
	}
	return false
}

// LastContext returns the most recent entry context, or nil.
func (e *EntryEngine) LastContext() *EntryContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// ValidQuality re-validates a context before the order goes out.
func (e *EntryEngine) ValidQuality(ctx *EntryContext) bool {
	if ctx == nil {
		return false
	}
	if ctx.Confidence < e.cfg.MinConfidence {
		return false
	}
	if len(ctx.Reasons) < 4 {
		return false
	}
	if math.Abs(ctx.Greeks.Delta) < 0.45 {
		return false
	}
	return ctx.Greeks.Gamma >= e.cfg.IdealGammaMin
}
