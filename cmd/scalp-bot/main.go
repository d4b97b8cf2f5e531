package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quantvx/options-scalp-bot/internal/bot"
	"github.com/quantvx/options-scalp-bot/internal/config"
	"github.com/quantvx/options-scalp-bot/internal/exchange"
	"github.com/quantvx/options-scalp-bot/internal/exchange/bybit"
	"github.com/quantvx/options-scalp-bot/internal/exchange/sim"
	"github.com/quantvx/options-scalp-bot/internal/monitoring"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., nifty_scalp.json)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("Please specify a config file with -config flag")
	}

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: Could not load .env file (%v), checking environment variables...", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("🚀 Options Scalp Bot Starting...")
	fmt.Printf("📊 Underlying: %s\n", cfg.Trading.Underlying)
	fmt.Printf("🏪 Exchange: %s\n", cfg.Exchange.Name)
	fmt.Println()

	ex, err := buildExchange(cfg)
	if err != nil {
		log.Fatalf("Failed to create exchange: %v", err)
	}

	b, err := bot.New(cfg, ex)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if cfg.Monitoring.Enabled {
		go func() {
			if err := monitoring.Serve(cfg.Monitoring.Addr, b.Health()); err != nil {
				log.Printf("⚠️ Monitoring endpoint failed: %v", err)
			}
		}()
		fmt.Printf("📈 Metrics: http://localhost%s/metrics\n", cfg.Monitoring.Addr)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\n🛑 Shutdown signal received...")

	b.Stop()
	fmt.Println("✅ Bot stopped successfully")
}

func buildExchange(cfg *config.Config) (exchange.Exchange, error) {
	switch cfg.Exchange.Name {
	case "bybit":
		return bybit.NewClient(bybit.Config{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Testnet:   cfg.Exchange.Testnet,
			Demo:      cfg.Exchange.Demo,
		}), nil
	case "sim":
		return sim.New(sim.Config{Underlying: cfg.Trading.Underlying}), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange.Name)
	}
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
