// scalp-demo runs the full trading loop against the simulated exchange for
// a fixed duration. Useful for eyeballing the decision flow without an
// exchange account.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantvx/options-scalp-bot/internal/bot"
	"github.com/quantvx/options-scalp-bot/internal/config"
	"github.com/quantvx/options-scalp-bot/internal/exchange/sim"
)

func main() {
	var (
		duration = flag.Duration("duration", 5*time.Minute, "How long to run the demo session")
		seed     = flag.Int64("seed", 0, "Random walk seed (0 = time-based)")
		spot     = flag.Float64("spot", 24800, "Starting spot level")
	)
	flag.Parse()

	cfg := demoConfig()

	fmt.Println("🧪 Scalp Demo Session")
	fmt.Printf("⏱️  Duration: %s\n", *duration)
	fmt.Println()

	ex := sim.New(sim.Config{
		Underlying: cfg.Trading.Underlying,
		Spot:       *spot,
		Seed:       *seed,
	})

	b, err := bot.New(cfg, ex)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(*duration):
		fmt.Println("\n⏱️ Demo duration elapsed")
	case <-sigChan:
		fmt.Println("\n🛑 Shutdown signal received...")
	}

	b.Stop()
	fmt.Println("✅ Demo session finished")
}

// demoConfig is a self-contained config so the demo needs no files on disk.
func demoConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Underlying:       "NIFTY",
			LotSize:          75,
			Capital:          100000,
			PollIntervalSecs: 1,
			MaxPositions:     1,
			StaleTickSecs:    10,
		},
		Risk: config.RiskConfig{
			MaxDailyLoss:         3000,
			MaxTradesPerDay:      10,
			MaxConsecutiveLosses: 3,
			CooldownMinutes:      1,
			StatePath:            "data/demo_risk_state.json",
		},
		Exchange: config.ExchangeConfig{Name: "sim"},
		Costs:    config.CostsConfig{Broker: "angel"},
		Journal:  config.JournalConfig{Dir: "journal"},
	}
}
