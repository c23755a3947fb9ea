package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	keys, err := db.SeedTestData(database, cfg.House.Seed)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-16s %s\n", name, keys[name])
	}
	log.Info("seeding completed", "agents", len(keys))
}
