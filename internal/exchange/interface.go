package exchange

import (
	"context"
	"time"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// MarketData is the read side of an exchange: chain discovery and
// per-contract ticks.
type MarketData interface {
	// Expiries lists the available expiry dates for the underlying,
	// soonest first.
	Expiries(ctx context.Context, underlying string) ([]time.Time, error)

	// OptionChain returns quotes with Greeks for every tradable strike
	// of the given expiry.
	OptionChain(ctx context.Context, underlying string, expiry time.Time) ([]types.OptionQuote, error)

	// Snapshot returns the current tick for one contract.
	Snapshot(ctx context.Context, symbol string) (types.OptionSnapshot, error)

	// UnderlyingPrice returns the spot/index level of the underlying.
	UnderlyingPrice(ctx context.Context, underlying string) (float64, error)
}

// OrderExecutor is the write side: market orders against the option
// book. Fills are ground truth for trade accounting.
type OrderExecutor interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity int) (types.OrderFill, error)
}

// Exchange bundles both sides for the bot.
type Exchange interface {
	MarketData
	OrderExecutor
	Name() string
}

// TickStreamer is an optional capability: exchanges that can push ticker
// updates implement it. Callers type-assert and fall back to polling when
// it is absent. Handlers run on the stream's read goroutine and must not
// block.
type TickStreamer interface {
	SubscribeTicks(symbol string, handler func(types.OptionSnapshot)) error
	UnsubscribeTicks(symbol string) error
}
