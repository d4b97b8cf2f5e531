package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// optionTicker mirrors the fields of a category=option ticker entry. Bybit
// returns every numeric field as a string.
type optionTicker struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	MarkIv          string `json:"markIv"`
	UnderlyingPrice string `json:"underlyingPrice"`
	OpenInterest    string `json:"openInterest"`
	Volume24h       string `json:"volume24h"`
	Delta           string `json:"delta"`
	Gamma           string `json:"gamma"`
	Vega            string `json:"vega"`
	Theta           string `json:"theta"`
}

// Expiries lists the distinct delivery dates currently tradeable for an
// underlying, sorted nearest first.
func (c *Client) Expiries(ctx context.Context, underlying string) ([]time.Time, error) {
	params := map[string]interface{}{
		"category": "option",
		"baseCoin": underlying,
		"limit":    1000,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, WrapAPIError("get option instruments", err)
	}

	serverResp := result
	if serverResp.RetCode != 0 {
		return nil, ParseAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var instrumentResult struct {
		List []struct {
			Symbol       string `json:"symbol"`
			Status       string `json:"status"`
			DeliveryTime string `json:"deliveryTime"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &instrumentResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instrument result: %w", err)
	}

	seen := make(map[int64]struct{})
	var expiries []time.Time
	for _, inst := range instrumentResult.List {
		if inst.Status != "Trading" {
			continue
		}
		ms := parseInt64(inst.DeliveryTime)
		if ms == 0 {
			continue
		}
		if _, dup := seen[ms]; dup {
			continue
		}
		seen[ms] = struct{}{}
		expiries = append(expiries, time.UnixMilli(ms).UTC())
	}

	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })
	return expiries, nil
}

// OptionChain fetches all option tickers for one underlying and expiry. Every
// entry carries the exchange-computed Greeks and mark IV.
func (c *Client) OptionChain(ctx context.Context, underlying string, expiry time.Time) ([]types.OptionQuote, error) {
	params := map[string]interface{}{
		"category": "option",
		"baseCoin": underlying,
		"expDate":  formatExpiryToken(expiry),
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, WrapAPIError("get option chain", err)
	}

	tickers, err := parseOptionTickers(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse option chain: %w", err)
	}

	now := time.Now()
	quotes := make([]types.OptionQuote, 0, len(tickers))
	for _, tk := range tickers {
		contract, err := ParseSymbol(tk.Symbol)
		if err != nil {
			continue
		}
		quotes = append(quotes, types.OptionQuote{
			OptionSnapshot: tickerSnapshot(tk, now),
			Strike:         contract.Strike,
			OptionType:     contract.Type,
		})
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Strike < quotes[j].Strike })
	return quotes, nil
}

// Snapshot fetches the current ticker for a single option contract.
func (c *Client) Snapshot(ctx context.Context, symbol string) (types.OptionSnapshot, error) {
	params := map[string]interface{}{
		"category": "option",
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return types.OptionSnapshot{}, WrapAPIError("get option ticker", err)
	}

	tickers, err := parseOptionTickers(result)
	if err != nil {
		return types.OptionSnapshot{}, fmt.Errorf("failed to parse option ticker: %w", err)
	}
	if len(tickers) == 0 {
		return types.OptionSnapshot{}, fmt.Errorf("no ticker data for %s", symbol)
	}

	return tickerSnapshot(tickers[0], time.Now()), nil
}

// UnderlyingPrice returns the index price the options settle against, taken
// from any live option ticker on the underlying.
func (c *Client) UnderlyingPrice(ctx context.Context, underlying string) (float64, error) {
	params := map[string]interface{}{
		"category": "option",
		"baseCoin": underlying,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, WrapAPIError("get underlying price", err)
	}

	tickers, err := parseOptionTickers(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse underlying price: %w", err)
	}
	for _, tk := range tickers {
		if px := parseFloat64(tk.UnderlyingPrice); px > 0 {
			return px, nil
		}
	}
	return 0, fmt.Errorf("no underlying price found for %s", underlying)
}

func parseOptionTickers(response interface{}) ([]optionTicker, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, ParseAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		Category string         `json:"category"`
		List     []optionTicker `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}
	return tickerResult.List, nil
}

func tickerSnapshot(tk optionTicker, ts time.Time) types.OptionSnapshot {
	return types.OptionSnapshot{
		Symbol:       tk.Symbol,
		Timestamp:    ts,
		Price:        parseFloat64(tk.LastPrice),
		Bid:          parseFloat64(tk.Bid1Price),
		Ask:          parseFloat64(tk.Ask1Price),
		Volume:       parseFloat64(tk.Volume24h),
		OpenInterest: parseFloat64(tk.OpenInterest),
		Greeks: types.Greeks{
			Delta:      parseFloat64(tk.Delta),
			Gamma:      parseFloat64(tk.Gamma),
			Theta:      parseFloat64(tk.Theta),
			Vega:       parseFloat64(tk.Vega),
			ImpliedVol: parseFloat64(tk.MarkIv) * 100,
		},
	}
}

// Contract is a decomposed option symbol.
type Contract struct {
	Underlying string
	Expiry     time.Time
	Strike     float64
	Type       types.OptionType
}

// ParseSymbol splits a Bybit option symbol like "BTC-27JUN25-50000-C" into
// its contract components.
func ParseSymbol(symbol string) (Contract, error) {
	parts := strings.Split(symbol, "-")
	if len(parts) != 4 {
		return Contract{}, fmt.Errorf("malformed option symbol %q", symbol)
	}

	expiry, err := parseExpiryToken(parts[1])
	if err != nil {
		return Contract{}, fmt.Errorf("malformed expiry in %q: %w", symbol, err)
	}

	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Contract{}, fmt.Errorf("malformed strike in %q: %w", symbol, err)
	}

	var optType types.OptionType
	switch parts[3] {
	case "C":
		optType = types.OptionCall
	case "P":
		optType = types.OptionPut
	default:
		return Contract{}, fmt.Errorf("malformed option type in %q", symbol)
	}

	return Contract{
		Underlying: parts[0],
		Expiry:     expiry,
		Strike:     strike,
		Type:       optType,
	}, nil
}

// FormatSymbol builds the Bybit option symbol for a contract.
func FormatSymbol(c Contract) string {
	side := "C"
	if c.Type == types.OptionPut {
		side = "P"
	}
	return fmt.Sprintf("%s-%s-%s-%s", c.Underlying, formatExpiryToken(c.Expiry), strconv.FormatFloat(c.Strike, 'f', -1, 64), side)
}

// parseExpiryToken parses the date part of an option symbol, e.g. "27JUN25".
// Bybit omits the leading zero on single-digit days.
func parseExpiryToken(token string) (time.Time, error) {
	var b strings.Builder
	prevLetter := false
	for _, r := range token {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return time.Parse("2Jan06", b.String())
}

func formatExpiryToken(t time.Time) string {
	return strings.ToUpper(t.Format("2Jan06"))
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
