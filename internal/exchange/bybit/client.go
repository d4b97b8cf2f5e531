package bybit

import (
	"sync"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// Client wraps the Bybit v5 API for options trading. The same client
// serves chain discovery, Greeks tickers and order placement.
type Client struct {
	httpClient *bybit_api.Client
	apiKey     string
	apiSecret  string
	testnet    bool
	demo       bool

	streamMu sync.Mutex
	stream   *Stream
}

// Config holds the connection settings for the Bybit client.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // demo trading environment (paper fills, live data)
}

func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		apiKey:     config.APIKey,
		apiSecret:  config.APISecret,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

func (c *Client) Name() string {
	return "bybit"
}

func (c *Client) IsTestnet() bool {
	return c.testnet
}

func (c *Client) IsDemo() bool {
	return c.demo
}

// SubscribeTicks starts the public option stream on first use and delivers
// pushed ticker updates for the symbol. Demo trading shares the mainnet
// market data stream, so only pure testnet dials the testnet endpoint.
func (c *Client) SubscribeTicks(symbol string, handler func(types.OptionSnapshot)) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.stream == nil {
		s := NewStream(c.testnet && !c.demo)
		if err := s.Connect(); err != nil {
			return err
		}
		c.stream = s
	}
	return c.stream.Subscribe(symbol, TickHandler(handler))
}

// UnsubscribeTicks stops pushed updates for the symbol.
func (c *Client) UnsubscribeTicks(symbol string) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.stream == nil {
		return nil
	}
	return c.stream.Unsubscribe(symbol)
}

// Environment describes which Bybit environment the client talks to.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
