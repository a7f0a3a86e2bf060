package main

import (
	"log"

	"github.com/joho/godotenv"
	"wirelens/cmd"
	"wirelens/internal/config"
	"wirelens/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		cfg = config.Default()
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLog := logger.WithComponent("main")
	appLog.Debug().Msg("Starting WireLens")

	cmd.Execute(cfg)

	appLog.Debug().Msg("WireLens shutdown")
}
