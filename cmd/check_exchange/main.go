package main

import (
	"context"
	"fmt"
	"os"

	"github.com/adshao/go-binance/v2/futures"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		Testnet   bool   `yaml:"testnet"`
	} `yaml:"exchange"`
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}

	if cfg.Exchange.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	ctx := context.Background()

	fmt.Printf("Testing Binance Futures interaction (%s)...\n", cfg.Symbol)

	klines, err := client.NewKlinesService().
		Symbol(cfg.Symbol).
		Interval(cfg.Interval).
		Limit(5).
		Do(ctx)
	if err != nil {
		fmt.Printf("FAIL: klines: %v\n", err)
	} else {
		fmt.Printf("OK: fetched %d klines, last close %s\n", len(klines), klines[len(klines)-1].Close)
	}

	if cfg.Exchange.APIKey == "" {
		fmt.Println("No API key configured, skipping authenticated checks")
		return
	}

	positions, err := client.NewGetPositionRiskService().Symbol(cfg.Symbol).Do(ctx)
	if err != nil {
		fmt.Printf("FAIL: position risk: %v\n", err)
	} else {
		open := 0
		for _, p := range positions {
			if p.PositionAmt != "" && p.PositionAmt != "0" {
				open++
			}
		}
		fmt.Printf("OK: position query returned %d entries (%d open)\n", len(positions), open)
	}
}
