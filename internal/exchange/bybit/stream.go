package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

const (
	mainnetStreamURL = "wss://stream.bybit.com/v5/public/option"
	testnetStreamURL = "wss://stream-testnet.bybit.com/v5/public/option"

	streamPingInterval = 20 * time.Second
	reconnectDelay     = 5 * time.Second
)

// TickHandler receives every ticker update for a subscribed contract.
type TickHandler func(types.OptionSnapshot)

// Stream maintains a public websocket subscription to option tickers. It
// reconnects and resubscribes on its own; handlers are invoked from the read
// goroutine and must not block.
type Stream struct {
	url  string
	conn *websocket.Conn

	mu            sync.RWMutex
	subscriptions map[string]TickHandler

	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewStream builds a stream against the public option endpoint. Demo trading
// shares the mainnet market data stream.
func NewStream(testnet bool) *Stream {
	url := mainnetStreamURL
	if testnet {
		url = testnetStreamURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		url:           url,
		subscriptions: make(map[string]TickHandler),
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
	go s.handleReconnection()
	return s
}

func (s *Stream) Connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to option stream: %w", err)
	}
	s.conn = conn

	go s.readMessages()
	go s.pingLoop()

	return s.resubscribe()
}

// Subscribe starts delivering ticker updates for one contract.
func (s *Stream) Subscribe(symbol string, handler TickHandler) error {
	s.mu.Lock()
	s.subscriptions[symbol] = handler
	s.mu.Unlock()

	return s.sendSubscribe([]string{"tickers." + symbol})
}

// Unsubscribe stops updates for one contract.
func (s *Stream) Unsubscribe(symbol string) error {
	s.mu.Lock()
	delete(s.subscriptions, symbol)
	s.mu.Unlock()

	msg := map[string]interface{}{
		"op":   "unsubscribe",
		"args": []string{"tickers." + symbol},
	}
	return s.writeJSON(msg)
}

func (s *Stream) Close() error {
	s.cancel()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) sendSubscribe(topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": topics,
	}
	return s.writeJSON(msg)
}

func (s *Stream) resubscribe() error {
	s.mu.RLock()
	topics := make([]string, 0, len(s.subscriptions))
	for symbol := range s.subscriptions {
		topics = append(topics, "tickers."+symbol)
	}
	s.mu.RUnlock()

	return s.sendSubscribe(topics)
}

func (s *Stream) writeJSON(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal stream message: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send stream message: %w", err)
	}
	return nil
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeJSON(map[string]interface{}{"op": "ping"}); err != nil {
				log.Printf("Failed to send ping: %v", err)
				return
			}
		}
	}
}

func (s *Stream) readMessages() {
	defer s.conn.Close()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				log.Printf("Option stream read error: %v", err)
				s.triggerReconnect()
				return
			}
			s.handleMessage(message)
		}
	}
}

// streamTicker is the payload of a public option ticker push. Unlike the
// REST tickers, openInterest arrives here as a plain string too.
type streamTicker struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	BidPrice        string `json:"bidPrice"`
	AskPrice        string `json:"askPrice"`
	MarkPriceIv     string `json:"markPriceIv"`
	UnderlyingPrice string `json:"underlyingPrice"`
	OpenInterest    string `json:"openInterest"`
	Volume24h       string `json:"volume24h"`
	Delta           string `json:"delta"`
	Gamma           string `json:"gamma"`
	Vega            string `json:"vega"`
	Theta           string `json:"theta"`
}

func (s *Stream) handleMessage(message []byte) {
	var envelope struct {
		Topic string          `json:"topic"`
		TS    int64           `json:"ts"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return
	}
	if !strings.HasPrefix(envelope.Topic, "tickers.") {
		return
	}

	var tk streamTicker
	if err := json.Unmarshal(envelope.Data, &tk); err != nil {
		log.Printf("Failed to decode ticker push: %v", err)
		return
	}

	symbol := strings.TrimPrefix(envelope.Topic, "tickers.")
	s.mu.RLock()
	handler, ok := s.subscriptions[symbol]
	s.mu.RUnlock()
	if !ok {
		return
	}

	ts := time.Now()
	if envelope.TS > 0 {
		ts = time.UnixMilli(envelope.TS)
	}

	handler(types.OptionSnapshot{
		Symbol:       tk.Symbol,
		Timestamp:    ts,
		Price:        parseFloat64(tk.LastPrice),
		Bid:          parseFloat64(tk.BidPrice),
		Ask:          parseFloat64(tk.AskPrice),
		Volume:       parseFloat64(tk.Volume24h),
		OpenInterest: parseFloat64(tk.OpenInterest),
		Greeks: types.Greeks{
			Delta:      parseFloat64(tk.Delta),
			Gamma:      parseFloat64(tk.Gamma),
			Theta:      parseFloat64(tk.Theta),
			Vega:       parseFloat64(tk.Vega),
			ImpliedVol: parseFloat64(tk.MarkPriceIv) * 100,
		},
	})
}

func (s *Stream) triggerReconnect() {
	select {
	case s.reconnectChan <- struct{}{}:
	default:
	}
}

func (s *Stream) handleReconnection() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reconnectChan:
			log.Println("Reconnecting option stream...")
			time.Sleep(reconnectDelay)
			if err := s.Connect(); err != nil {
				log.Printf("Option stream reconnect failed: %v", err)
				s.triggerReconnect()
			}
		}
	}
}
