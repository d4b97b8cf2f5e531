package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/google/uuid"

	"github.com/quantvx/options-scalp-bot/internal/exchange"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// fillPollInterval is how often we re-query an order while waiting for the
// exchange to report its execution.
const (
	fillPollInterval = 200 * time.Millisecond
	fillPollAttempts = 15
)

// PlaceMarketOrder submits a market order on the options book and blocks
// until the exchange reports the fill. Options on Bybit are always one
// contract per unit of qty.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, quantity int) (types.OrderFill, error) {
	if quantity <= 0 {
		return types.OrderFill{}, fmt.Errorf("invalid order quantity %d", quantity)
	}

	orderLinkID := uuid.New().String()
	params := map[string]interface{}{
		"category":    "option",
		"symbol":      symbol,
		"side":        sideParam(side),
		"orderType":   "Market",
		"qty":         strconv.Itoa(quantity),
		"orderLinkId": orderLinkID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return types.OrderFill{}, WrapAPIError("place market order", err)
	}

	orderID, err := parseOrderID(result)
	if err != nil {
		return types.OrderFill{}, fmt.Errorf("failed to parse order response: %w", err)
	}

	fill, err := c.awaitFill(ctx, symbol, orderID)
	if err != nil {
		return types.OrderFill{}, fmt.Errorf("order %s accepted but fill not confirmed: %w", orderID, err)
	}
	return fill, nil
}

func sideParam(side exchange.OrderSide) string {
	if side == exchange.Sell {
		return "Sell"
	}
	return "Buy"
}

func parseOrderID(response interface{}) (string, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return "", fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return "", ParseAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", fmt.Errorf("failed to unmarshal order result: %w", err)
	}
	if orderResult.OrderID == "" {
		return "", fmt.Errorf("order accepted without an order ID")
	}
	return orderResult.OrderID, nil
}

// awaitFill polls order history until the order reports Filled. Market
// orders on liquid strikes fill within one poll; the loop covers matching
// engine lag.
func (c *Client) awaitFill(ctx context.Context, symbol, orderID string) (types.OrderFill, error) {
	var lastStatus string
	for attempt := 0; attempt < fillPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return types.OrderFill{}, ctx.Err()
			case <-time.After(fillPollInterval):
			}
		}

		status, fill, err := c.queryOrder(ctx, symbol, orderID)
		if err != nil {
			continue
		}
		lastStatus = status

		switch status {
		case "Filled":
			return fill, nil
		case "Rejected", "Cancelled":
			return types.OrderFill{}, fmt.Errorf("order %s %s", orderID, status)
		}
	}
	return types.OrderFill{}, fmt.Errorf("order %s not filled (last status: %s)", orderID, lastStatus)
}

func (c *Client) queryOrder(ctx context.Context, symbol, orderID string) (string, types.OrderFill, error) {
	params := map[string]interface{}{
		"category": "option",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return "", types.OrderFill{}, WrapAPIError("query order", err)
	}

	serverResp := result
	if serverResp.RetCode != 0 {
		return "", types.OrderFill{}, ParseAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", types.OrderFill{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderStatus string `json:"orderStatus"`
			AvgPrice    string `json:"avgPrice"`
			CumExecQty  string `json:"cumExecQty"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", types.OrderFill{}, fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	for _, o := range orderResult.List {
		if o.OrderID != orderID {
			continue
		}
		fill := types.OrderFill{
			OrderID:        o.OrderID,
			Symbol:         symbol,
			FilledPrice:    parseFloat64(o.AvgPrice),
			FilledQuantity: int(parseInt64(o.CumExecQty)),
		}
		if fill.FilledQuantity == 0 {
			// Options qty can be fractional on Bybit; fall back to float parse.
			fill.FilledQuantity = int(parseFloat64(o.CumExecQty))
		}
		return o.OrderStatus, fill, nil
	}
	return "", types.OrderFill{}, fmt.Errorf("order %s not found in history", orderID)
}
