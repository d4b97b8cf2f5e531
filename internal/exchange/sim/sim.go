// Package sim provides an offline exchange backed by a seeded random walk.
// It produces option chains with plausible premiums, Greeks and liquidity so
// the full decision loop can run without network access.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantvx/options-scalp-bot/internal/exchange"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// Config controls the synthetic market.
type Config struct {
	Underlying     string  `json:"underlying"`
	Spot           float64 `json:"spot"`
	StrikeStep     float64 `json:"strike_step"`
	StrikesPerSide int     `json:"strikes_per_side"`
	ImpliedVol     float64 `json:"implied_vol"` // percent
	SpotVol        float64 `json:"spot_vol"`    // stddev of one spot step
	Seed           int64   `json:"seed"`
	Expiries       int     `json:"expiries"` // weekly expiries to offer
}

func DefaultConfig() Config {
	return Config{
		Underlying:     "NIFTY",
		Spot:           24800,
		StrikeStep:     50,
		StrikesPerSide: 6,
		ImpliedVol:     28,
		SpotVol:        4.0,
		Seed:           0,
		Expiries:       4,
	}
}

// Exchange is a self-contained market. Every market-data call advances the
// walk one step, so polling it drives the simulation forward.
type Exchange struct {
	cfg Config
	rng *rand.Rand

	mu       sync.Mutex
	spot     float64
	iv       float64
	expiries []time.Time
	books    map[string]*book

	now func() time.Time
}

// book is the mutable per-contract state.
type book struct {
	strike    float64
	optType   types.OptionType
	expiry    time.Time
	timeValue float64
	volume    float64
	oi        float64
}

func New(cfg Config) *Exchange {
	def := DefaultConfig()
	if cfg.Underlying == "" {
		cfg.Underlying = def.Underlying
	}
	if cfg.Spot <= 0 {
		cfg.Spot = def.Spot
	}
	if cfg.StrikeStep <= 0 {
		cfg.StrikeStep = def.StrikeStep
	}
	if cfg.StrikesPerSide <= 0 {
		cfg.StrikesPerSide = def.StrikesPerSide
	}
	if cfg.ImpliedVol <= 0 {
		cfg.ImpliedVol = def.ImpliedVol
	}
	if cfg.SpotVol <= 0 {
		cfg.SpotVol = def.SpotVol
	}
	if cfg.Expiries <= 0 {
		cfg.Expiries = def.Expiries
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Exchange{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		spot:  cfg.Spot,
		iv:    cfg.ImpliedVol,
		books: make(map[string]*book),
		now:   time.Now,
	}
	e.buildExpiries()
	e.buildChain()
	return e
}

func (e *Exchange) Name() string { return "sim" }

func (e *Exchange) Expiries(ctx context.Context, underlying string) ([]time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]time.Time, len(e.expiries))
	copy(out, e.expiries)
	return out, nil
}

func (e *Exchange) OptionChain(ctx context.Context, underlying string, expiry time.Time) ([]types.OptionQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step()

	day := expiry.Truncate(24 * time.Hour)
	var quotes []types.OptionQuote
	for symbol, b := range e.books {
		if !b.expiry.Truncate(24 * time.Hour).Equal(day) {
			continue
		}
		quotes = append(quotes, types.OptionQuote{
			OptionSnapshot: e.snapshotLocked(symbol, b),
			Strike:         b.strike,
			OptionType:     b.optType,
		})
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no contracts for expiry %s", expiry.Format("2006-01-02"))
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].Strike != quotes[j].Strike {
			return quotes[i].Strike < quotes[j].Strike
		}
		return quotes[i].OptionType < quotes[j].OptionType
	})
	return quotes, nil
}

func (e *Exchange) Snapshot(ctx context.Context, symbol string) (types.OptionSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step()

	b, ok := e.books[symbol]
	if !ok {
		return types.OptionSnapshot{}, fmt.Errorf("unknown contract %s", symbol)
	}
	return e.snapshotLocked(symbol, b), nil
}

func (e *Exchange) UnderlyingPrice(ctx context.Context, underlying string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spot, nil
}

// PlaceMarketOrder fills immediately against the synthetic book: buys at the
// ask, sells at the bid.
func (e *Exchange) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, quantity int) (types.OrderFill, error) {
	if quantity <= 0 {
		return types.OrderFill{}, fmt.Errorf("invalid order quantity %d", quantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[symbol]
	if !ok {
		return types.OrderFill{}, fmt.Errorf("unknown contract %s", symbol)
	}

	snap := e.snapshotLocked(symbol, b)
	price := snap.Ask
	if side == exchange.Sell {
		price = snap.Bid
	}
	b.volume += float64(quantity)

	return types.OrderFill{
		OrderID:        uuid.New().String(),
		Symbol:         symbol,
		FilledPrice:    price,
		FilledQuantity: quantity,
	}, nil
}

// step advances the whole market one tick. Caller holds the mutex.
func (e *Exchange) step() {
	e.spot += e.rng.NormFloat64() * e.cfg.SpotVol
	e.iv += e.rng.NormFloat64() * 0.15
	if e.iv < 10 {
		e.iv = 10
	}
	if e.iv > 60 {
		e.iv = 60
	}

	for _, b := range e.books {
		// Time value bleeds off slowly and wobbles with the IV walk.
		b.timeValue *= 1 - 0.0004
		b.timeValue += e.rng.NormFloat64() * 0.15
		if b.timeValue < 0.5 {
			b.timeValue = 0.5
		}
		b.volume += math.Abs(e.rng.NormFloat64()) * 20
		b.oi += e.rng.NormFloat64() * 25
		if b.oi < 100 {
			b.oi = 100
		}
	}
}

func (e *Exchange) snapshotLocked(symbol string, b *book) types.OptionSnapshot {
	price := e.premium(b)
	spread := math.Max(0.05, price*0.004)

	delta := e.delta(b)
	gamma := delta * (1 - math.Abs(delta)) * 0.016

	return types.OptionSnapshot{
		Symbol:       symbol,
		Timestamp:    e.now(),
		Price:        price,
		Bid:          price - spread/2,
		Ask:          price + spread/2,
		Volume:       b.volume,
		OpenInterest: b.oi,
		Greeks: types.Greeks{
			Delta:      delta,
			Gamma:      gamma,
			Theta:      -0.02 - gamma*5,
			Vega:       0.01 + gamma*3,
			ImpliedVol: e.iv,
		},
	}
}

func (e *Exchange) premium(b *book) float64 {
	intrinsic := e.spot - b.strike
	if b.optType == types.OptionPut {
		intrinsic = b.strike - e.spot
	}
	if intrinsic < 0 {
		intrinsic = 0
	}
	return intrinsic + b.timeValue
}

// delta uses a logistic curve over moneyness, which is close enough to the
// real shape for decision-logic purposes.
func (e *Exchange) delta(b *book) float64 {
	m := (e.spot - b.strike) / (e.cfg.StrikeStep * 3)
	call := 1 / (1 + math.Exp(-2.2*m))
	if b.optType == types.OptionPut {
		return call - 1
	}
	return call
}

func (e *Exchange) buildExpiries() {
	n := e.cfg.Expiries
	if n <= 0 {
		n = 1
	}
	// Next n weekly Thursdays.
	d := e.now().Truncate(24 * time.Hour)
	for len(e.expiries) < n {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Thursday {
			e.expiries = append(e.expiries, d.Add(15*time.Hour+30*time.Minute))
		}
	}
}

func (e *Exchange) buildChain() {
	atm := math.Round(e.spot/e.cfg.StrikeStep) * e.cfg.StrikeStep
	for _, expiry := range e.expiries {
		for i := -e.cfg.StrikesPerSide; i <= e.cfg.StrikesPerSide; i++ {
			strike := atm + float64(i)*e.cfg.StrikeStep
			for _, optType := range []types.OptionType{types.OptionCall, types.OptionPut} {
				b := &book{
					strike:  strike,
					optType: optType,
					expiry:  expiry,
					// ATM carries the most time value.
					timeValue: 20 + 100*math.Exp(-math.Abs(e.spot-strike)/(e.cfg.StrikeStep*2)),
					volume:    500 + e.rng.Float64()*500,
					oi:        3000 + e.rng.Float64()*4000,
				}
				e.books[e.symbol(strike, optType, expiry)] = b
			}
		}
	}
}

func (e *Exchange) symbol(strike float64, optType types.OptionType, expiry time.Time) string {
	side := "C"
	if optType == types.OptionPut {
		side = "P"
	}
	return fmt.Sprintf("%s-%s-%s-%s",
		e.cfg.Underlying,
		expiry.Format("02Jan06"),
		strconv.FormatFloat(strike, 'f', -1, 64),
		side)
}
