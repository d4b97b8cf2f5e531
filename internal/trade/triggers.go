package trade

import (
	"math"

	"github.com/quantvx/options-scalp-bot/internal/expiry"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// exitContext carries everything a trigger may inspect for one evaluation.
type exitContext struct {
	trade  *Trade
	snap   types.OptionSnapshot
	policy *expiry.Policy
}

// exitTrigger is one predicate in the priority chain. It reports the reason
// and whether it fired.
type exitTrigger func(*exitContext) (ExitReason, bool)

// evaluateExits walks the chain in strict priority order and returns on the
// first match. Capital-protection truncation (time backstop, hard stop)
// dominates profit-taking, which dominates the softer Greek-quality signals;
// a decaying soft signal must never delay a mandatory exit near expiry.
func (m *Manager) evaluateExits(t *Trade, snap types.OptionSnapshot, policy *expiry.Policy) (ExitReason, bool) {
	ctx := &exitContext{trade: t, snap: snap, policy: policy}

	chain := []exitTrigger{
		m.timeForcedExit,
		m.timeBasedTarget,
		m.hardStopLoss,
		m.profitTarget,
		m.deltaWeakness,
		m.gammaRollover,
		m.thetaDamage,
		m.ivCrush,
		m.oiPriceMismatch,
	}

	for _, trigger := range chain {
		if reason, fired := trigger(ctx); fired {
			return reason, true
		}
	}
	return "", false
}

// timeForcedExit is the hard backstop: past the policy's max hold the trade
// leaves immediately, profit or not.
func (m *Manager) timeForcedExit(ctx *exitContext) (ExitReason, bool) {
	if ctx.policy == nil {
		return "", false
	}
	if ctx.trade.TimeInTrade <= ctx.policy.MaxHold {
		return "", false
	}
	if ctx.trade.UnrealizedPnl > 0 {
		return ExitTimeForcedProfit, true
	}
	return ExitTimeForcedLoss, true
}

// timeBasedTarget books profit early once the minimum hold has passed and
// the premium has reached the configured target above entry.
func (m *Manager) timeBasedTarget(ctx *exitContext) (ExitReason, bool) {
	if ctx.policy == nil {
		return "", false
	}
	t := ctx.trade
	if t.TimeInTrade <= ctx.policy.MinHold || t.UnrealizedPnl <= 0 {
		return "", false
	}
	if t.PnlFraction() >= m.cfg.ProfitTargetPercent {
		return ExitTimeBasedTarget, true
	}
	return "", false
}

func (m *Manager) hardStopLoss(ctx *exitContext) (ExitReason, bool) {
	stop := m.cfg.DefaultHardStopPercent
	if ctx.policy != nil {
		stop = ctx.policy.HardStopLossPercent
	}
	if ctx.trade.PnlFraction() <= -stop {
		return ExitHardStopLoss, true
	}
	return "", false
}

func (m *Manager) profitTarget(ctx *exitContext) (ExitReason, bool) {
	if ctx.trade.PnlFraction() >= m.cfg.ProfitTargetPercent {
		return ExitTargetHit, true
	}
	return "", false
}

// deltaWeakness fires when directional conviction erodes: |delta| has
// degraded past the configured fraction of its entry value.
func (m *Manager) deltaWeakness(ctx *exitContext) (ExitReason, bool) {
	entryDelta := math.Abs(ctx.trade.EntryGreeks.Delta)
	if entryDelta == 0 {
		return "", false
	}
	if math.Abs(ctx.snap.Greeks.Delta) < entryDelta*(1-m.cfg.DeltaWeaknessPercent) {
		return ExitDeltaWeakness, true
	}
	return "", false
}

// gammaRollover fires once the smoothed gamma series has confirmed a peak
// and declined from it. Expiry proximity tightens the required decline.
func (m *Manager) gammaRollover(ctx *exitContext) (ExitReason, bool) {
	sensitivity := 1.0
	if ctx.policy != nil && ctx.policy.GammaExitSensitivity > 0 {
		sensitivity = ctx.policy.GammaExitSensitivity
	}
	drop := m.cfg.GammaDropFraction / sensitivity
	if ctx.trade.gamma.rolledOver(drop) {
		return ExitGammaRollover, true
	}
	return "", false
}

// thetaDamage fires when time decay has worsened past the threshold while
// the premium sits flat: decay is eating the position with no move to pay
// for it.
func (m *Manager) thetaDamage(ctx *exitContext) (ExitReason, bool) {
	t := ctx.trade
	worsened := ctx.snap.Greeks.Theta < t.EntryGreeks.Theta &&
		math.Abs(ctx.snap.Greeks.Theta-t.EntryGreeks.Theta) > m.cfg.ThetaDamageThreshold
	flat := math.Abs(ctx.snap.Price-t.EntryPrice) < m.cfg.FlatPriceEpsilon
	if worsened && flat {
		return ExitThetaDamage, true
	}
	return "", false
}

// ivCrush fires when implied volatility has dropped past the threshold
// since entry while the premium has stalled.
func (m *Manager) ivCrush(ctx *exitContext) (ExitReason, bool) {
	t := ctx.trade
	entryIV := t.EntryGreeks.ImpliedVol
	if entryIV <= 0 {
		return "", false
	}
	dropped := (entryIV-ctx.snap.Greeks.ImpliedVol)/entryIV >= m.cfg.IVCrushPercent
	stalled := math.Abs(ctx.snap.Price-t.EntryPrice) < 2*m.cfg.FlatPriceEpsilon
	if dropped && stalled {
		return ExitIVCrush, true
	}
	return "", false
}

// oiPriceMismatch is the trap signal: open interest building sharply while
// the premium refuses to follow means the position is on the wrong side of
// fresh positioning.
func (m *Manager) oiPriceMismatch(ctx *exitContext) (ExitReason, bool) {
	t := ctx.trade
	oiRise := ctx.snap.OpenInterest - t.prevOpenInterest
	priceMove := math.Abs(ctx.snap.Price - t.prevPrice)
	if oiRise > m.cfg.OIRiseThreshold && priceMove < m.cfg.FlatPriceEpsilon {
		return ExitOIPriceMismatch, true
	}
	return "", false
}

// gammaTracker is a smoothed local-maximum detector over the per-tick gamma
// series of one trade. Gamma is EMA-smoothed to suppress tick noise; the
// rollover condition is a confirmed decline from the smoothed running peak
// after a minimum number of observations.
type gammaTracker struct {
	alpha      int // EMA window
	smoothed   float64
	peak       float64
	samples    int
	minSamples int
}

func newGammaTracker(window int, entryGamma float64) *gammaTracker {
	if window < 2 {
		window = 2
	}
	return &gammaTracker{
		alpha:      window,
		smoothed:   entryGamma,
		peak:       entryGamma,
		minSamples: window,
	}
}

func (g *gammaTracker) observe(gamma float64) {
	k := 2.0 / (float64(g.alpha) + 1.0)
	g.smoothed = gamma*k + g.smoothed*(1-k)
	if g.smoothed > g.peak {
		g.peak = g.smoothed
	}
	g.samples++
}

// rolledOver reports whether smoothed gamma has fallen by at least the given
// fraction from its running peak.
func (g *gammaTracker) rolledOver(dropFraction float64) bool {
	if g.samples < g.minSamples || g.peak <= 0 {
		return false
	}
	return g.smoothed <= g.peak*(1-dropFraction)
}
