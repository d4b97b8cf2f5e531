package notifications

import "time"

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error

	// NotifyTradeOpen announces a fresh entry
	NotifyTradeOpen(symbol string, quantity int, entryPrice, stopLoss, target float64) error

	// NotifyTradeClose announces a completed trade
	NotifyTradeClose(symbol string, pnl float64, reason string, held time.Duration) error

	// NotifyHalt announces a risk governor halt
	NotifyHalt(reason string) error
}

// NopNotifier discards every notification. Used when no channel is configured.
type NopNotifier struct{}

func (NopNotifier) SendAlert(level, message string) error { return nil }

func (NopNotifier) NotifyTradeOpen(symbol string, quantity int, entryPrice, stopLoss, target float64) error {
	return nil
}

func (NopNotifier) NotifyTradeClose(symbol string, pnl float64, reason string, held time.Duration) error {
	return nil
}

func (NopNotifier) NotifyHalt(reason string) error { return nil }
