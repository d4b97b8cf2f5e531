package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type TelegramNotifier struct {
	token  string
	chatID string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramNotifier) SendAlert(level, message string) error {
	emoji := "ℹ️"
	switch level {
	case "warning":
		emoji = "⚠️"
	case "error":
		emoji = "🚨"
	case "success":
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Scalp Bot*\n\n%s", emoji, message)

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := http.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

func (t *TelegramNotifier) NotifyTradeOpen(symbol string, quantity int, entryPrice, stopLoss, target float64) error {
	msg := fmt.Sprintf("ENTRY `%s` x %d\nPremium: ₹%.2f\nSL: ₹%.2f | Target: ₹%.2f",
		symbol, quantity, entryPrice, stopLoss, target)
	return t.SendAlert("info", msg)
}

func (t *TelegramNotifier) NotifyTradeClose(symbol string, pnl float64, reason string, held time.Duration) error {
	level := "success"
	if pnl < 0 {
		level = "warning"
	}
	msg := fmt.Sprintf("EXIT `%s`\nP&L: ₹%.2f\nReason: %s\nHeld: %s",
		symbol, pnl, reason, held.Round(time.Second))
	return t.SendAlert(level, msg)
}

func (t *TelegramNotifier) NotifyHalt(reason string) error {
	return t.SendAlert("error", fmt.Sprintf("TRADING HALTED\n%s", reason))
}
