package chain

import (
	"math"
	"sort"
	"sync"

	"github.com/quantvx/options-scalp-bot/internal/signal"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

type SelectorConfig struct {
	MaxSpreadPercent   float64 `json:"max_spread_percent"`
	MinVolume          float64 `json:"min_volume"`
	MinOpenInterest    float64 `json:"min_open_interest"`
	IdealDeltaCallLow  float64 `json:"ideal_delta_call_low"`
	IdealDeltaCallHigh float64 `json:"ideal_delta_call_high"`
	IdealDeltaPutLow   float64 `json:"ideal_delta_put_low"`  // most negative
	IdealDeltaPutHigh  float64 `json:"ideal_delta_put_high"` // least negative
	IdealGammaMin      float64 `json:"ideal_gamma_min"`
	IdealThetaMax      float64 `json:"ideal_theta_max"` // magnitude of acceptable decay
	IdealVegaMin       float64 `json:"ideal_vega_min"`
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		MaxSpreadPercent:   1.0,
		MinVolume:          50,
		MinOpenInterest:    100,
		IdealDeltaCallLow:  0.45,
		IdealDeltaCallHigh: 0.65,
		IdealDeltaPutLow:   -0.65,
		IdealDeltaPutHigh:  -0.45,
		IdealGammaMin:      0.002,
		IdealThetaMax:      0.05,
		IdealVegaMin:       0.01,
	}
}

// Scored pairs a chain quote with its selection score.
type Scored struct {
	Quote types.OptionQuote
	Score float64
}

// Selector picks the contract to scalp from a chain scan: health filters
// first (liquidity, spread, Greeks present), then a 0-100 composite score
// over Greeks health, liquidity depth, spread tightness and OI momentum.
type Selector struct {
	cfg SelectorConfig

	mu           sync.Mutex
	lastSelected map[types.OptionType]types.OptionQuote
}

func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{
		cfg:          cfg,
		lastSelected: make(map[types.OptionType]types.OptionQuote),
	}
}

// Select returns the best contract on the side the bias permits, along
// with its score. ok is false when the bias gives no permission or no
// strike passes the filters.
func (s *Selector) Select(quotes []types.OptionQuote, bias signal.Bias) (types.OptionQuote, float64, bool) {
	var want types.OptionType
	switch bias {
	case signal.BiasBullish:
		want = types.OptionCall
	case signal.BiasBearish:
		want = types.OptionPut
	default:
		return types.OptionQuote{}, 0, false
	}

	ranked := s.Rank(quotes, want)
	if len(ranked) == 0 {
		return types.OptionQuote{}, 0, false
	}

	best := ranked[0]
	s.mu.Lock()
	s.lastSelected[want] = best.Quote
	s.mu.Unlock()
	return best.Quote, best.Score, true
}

// Rank filters one side of the chain and returns it scored, best first.
func (s *Selector) Rank(quotes []types.OptionQuote, optType types.OptionType) []Scored {
	var ranked []Scored
	for _, q := range quotes {
		if q.OptionType != optType {
			continue
		}
		if !s.healthy(q) {
			continue
		}
		ranked = append(ranked, Scored{Quote: q, Score: s.score(q)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// Alternatives returns up to count next-best contracts, excluding the
// given strike.
func (s *Selector) Alternatives(quotes []types.OptionQuote, optType types.OptionType, excludeStrike float64, count int) []types.OptionQuote {
	ranked := s.Rank(quotes, optType)
	var out []types.OptionQuote
	for _, r := range ranked {
		if r.Quote.Strike == excludeStrike {
			continue
		}
		out = append(out, r.Quote)
		if len(out) == count {
			break
		}
	}
	return out
}

// LastSelected returns the most recent pick for the side, if any.
func (s *Selector) LastSelected(optType types.OptionType) (types.OptionQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.lastSelected[optType]
	return q, ok
}

// StillValid re-checks a previously selected contract against a fresh
// quote. Degraded delta, spread or liquidity invalidates it.
func (s *Selector) StillValid(q types.OptionQuote) bool {
	if !s.liquid(q.OptionSnapshot) {
		return false
	}
	if q.SpreadPercent() > s.cfg.MaxSpreadPercent {
		return false
	}
	return math.Abs(q.Greeks.Delta) >= 0.30
}

// ValidateSelection applies the stricter pre-order quality bar.
func (s *Selector) ValidateSelection(q types.OptionQuote) bool {
	if !s.healthy(q) {
		return false
	}
	if math.Abs(q.Greeks.Delta) < 0.40 {
		return false
	}
	if q.Greeks.Gamma < s.cfg.IdealGammaMin {
		return false
	}
	return s.greeksHealth(q) >= 50
}

func (s *Selector) healthy(q types.OptionQuote) bool {
	if q.Price <= 0 {
		return false
	}
	if !s.liquid(q.OptionSnapshot) {
		return false
	}
	if q.SpreadPercent() > s.cfg.MaxSpreadPercent {
		return false
	}
	// missing Greeks means the feed has not populated this strike yet
	if q.Greeks.Delta == 0 || q.Greeks.Gamma == 0 {
		return false
	}
	return true
}

func (s *Selector) liquid(snap types.OptionSnapshot) bool {
	return snap.Volume >= s.cfg.MinVolume &&
		snap.OpenInterest >= s.cfg.MinOpenInterest &&
		snap.Bid > 0 && snap.Ask > 0
}

// greeksHealth scores the Greeks 0-100, 25 points per Greek.
func (s *Selector) greeksHealth(q types.OptionQuote) float64 {
	var score float64

	delta := q.Greeks.Delta
	if q.OptionType == types.OptionCall {
		switch {
		case delta >= s.cfg.IdealDeltaCallLow && delta <= s.cfg.IdealDeltaCallHigh:
			score += 25
		case delta > s.cfg.IdealDeltaCallHigh:
			score += 15
		}
	} else {
		switch {
		case delta >= s.cfg.IdealDeltaPutLow && delta <= s.cfg.IdealDeltaPutHigh:
			score += 25
		case delta < s.cfg.IdealDeltaPutLow:
			score += 15
		}
	}

	switch {
	case q.Greeks.Gamma >= s.cfg.IdealGammaMin:
		score += 25
	case q.Greeks.Gamma > 0:
		score += 15
	}

	switch {
	case math.Abs(q.Greeks.Theta) <= s.cfg.IdealThetaMax:
		score += 25
	case math.Abs(q.Greeks.Theta) < s.cfg.IdealThetaMax*2:
		score += 15
	}

	switch {
	case q.Greeks.Vega >= s.cfg.IdealVegaMin:
		score += 25
	case q.Greeks.Vega > 0:
		score += 15
	}

	return score
}

// score is the 0-100 composite: Greeks 40, liquidity 30, spread 20, OI
// momentum 10. OI momentum uses open interest above the liquidity floor
// as a proxy for fresh buildup.
func (s *Selector) score(q types.OptionQuote) float64 {
	score := s.greeksHealth(q) / 100 * 40

	volumeScore := math.Min(q.Volume/200, 1) * 15
	oiScore := math.Min(q.OpenInterest/500, 1) * 15
	score += volumeScore + oiScore

	score += math.Max(0, 1-q.SpreadPercent()/s.cfg.MaxSpreadPercent) * 20

	if buildup := q.OpenInterest - s.cfg.MinOpenInterest; buildup > 0 {
		score += math.Min(buildup/100, 1) * 10
	}
	return score
}
