package main

import (
	"flag"
	"log"
	"os"

	"CoinPull/internal/di"
	"CoinPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	seed := flag.Bool("seed", false, "seed the store once with the configured assets and exit")
	live := flag.Bool("live", false, "start live polling on boot")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *seed {
		res, err := app.Seed()
		log.Printf("seed: inserted=%d fetched=%d failed_assets=%d", res.Inserted, res.Fetched, len(res.Failures))
		for _, f := range res.Failures {
			log.Printf("  %s", f.Status())
		}
		if err != nil {
			log.Printf("seed error: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := app.Run(*live); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
