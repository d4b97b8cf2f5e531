package costs

// Volatility buckets for the slippage model.
type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityNormal Volatility = "normal"
	VolatilityHigh   Volatility = "high"
)

// BrokerFees is a per-broker fee schedule for index options.
type BrokerFees struct {
	FlatFeePerLot      float64
	GSTPercent         float64
	TurnoverChargeRate float64
	SecuritiesTaxRate  float64
}

var brokerFees = map[string]BrokerFees{
	"angel":   {FlatFeePerLot: 20, GSTPercent: 18, TurnoverChargeRate: 0.00015, SecuritiesTaxRate: 0.0001},
	"zerodha": {FlatFeePerLot: 20, GSTPercent: 18, TurnoverChargeRate: 0.00015, SecuritiesTaxRate: 0.0001},
	"fyers":   {FlatFeePerLot: 15, GSTPercent: 18, TurnoverChargeRate: 0.00015, SecuritiesTaxRate: 0.0001},
}

// Slippage is the modeled execution cost on one side of a round trip.
type Slippage struct {
	Amount         float64 // per contract
	Percent        float64 // of last price
	EffectivePrice float64
	MidPrice       float64
	SpreadWidth    float64
	SpreadPercent  float64
}

// Fees is the cost breakdown for a full round trip.
type Fees struct {
	EntryBrokerage  float64
	ExitBrokerage   float64
	TotalBrokerage  float64
	GST             float64
	TurnoverCharge  float64
	SecuritiesTax   float64
	TotalCost       float64
	CostPerContract float64
}

// NetPnl is gross P&L reduced by modeled slippage and fees.
type NetPnl struct {
	GrossPnl       float64
	SlippageCost   float64
	BrokerageCost  float64
	NetPnl         float64
	NetPnlPercent  float64
	BreakevenPrice float64
	Fees           Fees
}

// Model estimates slippage and round-trip fees so the sizing and journal
// layers see P&L the way the broker statement will.
type Model struct {
	broker  string
	fees    BrokerFees
	lotSize int
}

func NewModel(broker string, lotSize int) *Model {
	fees, ok := brokerFees[broker]
	if !ok {
		fees = brokerFees["angel"]
	}
	if lotSize <= 0 {
		lotSize = 75
	}
	return &Model{broker: broker, fees: fees, lotSize: lotSize}
}

// EntrySlippage models the cost of lifting the ask. Larger orders pay a
// market impact surcharge on top of the half-spread share.
func (m *Model) EntrySlippage(ltp, bid, ask float64, quantity int, vol Volatility) Slippage {
	s := m.baseSlippage(ltp, bid, ask, quantity, vol)
	s.EffectivePrice = ask + s.Amount
	return s
}

// ExitSlippage models the cost of hitting the bid.
func (m *Model) ExitSlippage(ltp, bid, ask float64, quantity int, vol Volatility) Slippage {
	s := m.baseSlippage(ltp, bid, ask, quantity, vol)
	s.EffectivePrice = bid - s.Amount
	return s
}

func (m *Model) baseSlippage(ltp, bid, ask float64, quantity int, vol Volatility) Slippage {
	spread := ask - bid
	s := Slippage{
		MidPrice:    (bid + ask) / 2,
		SpreadWidth: spread,
	}
	if ltp > 0 {
		s.SpreadPercent = spread / ltp * 100
	}

	multiplier := 0.50
	switch vol {
	case VolatilityLow:
		multiplier = 0.25
	case VolatilityHigh:
		multiplier = 1.0
	}
	s.Amount = spread / 2 * multiplier

	// beyond two lots the order starts moving the book
	impactThreshold := 2 * m.lotSize
	if quantity > impactThreshold {
		impact := (float64(quantity)/float64(impactThreshold) - 1) * 0.05
		s.Amount *= 1 + impact
	}
	if ltp > 0 {
		s.Percent = s.Amount / ltp * 100
	}
	return s
}

// RoundTripFees computes brokerage, GST and exchange charges for an
// entry-plus-exit pair.
func (m *Model) RoundTripFees(entryPrice, exitPrice float64, quantity int) Fees {
	lots := float64(quantity) / float64(m.lotSize)
	flatFee := m.fees.FlatFeePerLot * lots

	turnover := (entryPrice + exitPrice) * float64(quantity)
	turnoverCharge := turnover * m.fees.TurnoverChargeRate
	securitiesTax := turnover * m.fees.SecuritiesTaxRate

	brokerage := flatFee * 2 // both legs
	gst := brokerage * m.fees.GSTPercent / 100

	f := Fees{
		EntryBrokerage: flatFee,
		ExitBrokerage:  flatFee,
		TotalBrokerage: brokerage,
		GST:            gst,
		TurnoverCharge: turnoverCharge,
		SecuritiesTax:  securitiesTax,
		TotalCost:      brokerage + gst + turnoverCharge + securitiesTax,
	}
	if quantity > 0 {
		f.CostPerContract = f.TotalCost / float64(quantity)
	}
	return f
}

// RealisticPnl nets a round trip: gross versus what survives slippage
// and fees, plus the exit price needed to break even.
func (m *Model) RealisticPnl(entryPrice, exitPrice float64, quantity int, entrySlip, exitSlip float64) NetPnl {
	grossPnl := (exitPrice - entryPrice) * float64(quantity)
	slippageCost := (entrySlip + exitSlip) * float64(quantity)

	fees := m.RoundTripFees(entryPrice, exitPrice, quantity)

	net := NetPnl{
		GrossPnl:      grossPnl,
		SlippageCost:  slippageCost,
		BrokerageCost: fees.TotalCost,
		NetPnl:        grossPnl - slippageCost - fees.TotalCost,
		Fees:          fees,
	}
	if capital := entryPrice * float64(quantity); capital > 0 {
		net.NetPnlPercent = net.NetPnl / capital * 100
	}
	if quantity > 0 {
		net.BreakevenPrice = entryPrice + (slippageCost+fees.TotalCost)/float64(quantity)
	}
	return net
}
