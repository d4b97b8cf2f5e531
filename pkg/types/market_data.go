package types

import "time"

// Greeks holds the option sensitivity measures delivered with each ticker.
type Greeks struct {
	Delta      float64
	Gamma      float64
	Theta      float64
	Vega       float64
	ImpliedVol float64
}

// OptionSnapshot is a single per-tick view of an option contract, combining
// price, liquidity and Greeks. The bot hands these to the trade manager;
// producers (exchange client or simulator) must fill every field they have
// and leave the rest zero.
type OptionSnapshot struct {
	Symbol       string
	Timestamp    time.Time
	Price        float64 // last traded premium
	Bid          float64
	Ask          float64
	Volume       float64
	OpenInterest float64
	Greeks       Greeks
}

// SpreadPercent returns the bid/ask spread as a percentage of the last price.
func (s OptionSnapshot) SpreadPercent() float64 {
	if s.Price <= 0 {
		return 0
	}
	return (s.Ask - s.Bid) / s.Price * 100
}

// Age returns how old the snapshot is relative to now.
func (s OptionSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// OrderFill is the execution confirmation the bot receives back from the
// order collaborator. Filled values are ground truth for trade accounting
// and may differ from the requested price/quantity.
type OrderFill struct {
	OrderID        string
	Symbol         string
	FilledPrice    float64
	FilledQuantity int
}

// OptionQuote is a chain entry used during strike selection. It extends the
// snapshot with contract identity (strike, call/put).
type OptionQuote struct {
	OptionSnapshot
	Strike     float64
	OptionType OptionType
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)
