package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// MinPasswordLength is the minimum accepted password length for new accounts.
const MinPasswordLength = 4

type Config struct {
	Port          string
	RetentionDays int
	DatabasePath  string // sqlite snapshot store; empty means file storage only
	DataFile      string // JSON fallback/primary file store
	StaticDir     string
}

// Load reads configuration from the environment, after sourcing an
// optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:          "3000",
		RetentionDays: 30,
		DatabasePath:  "",
		DataFile:      "data/chat-state.json",
		StaticDir:     "./public",
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if daysStr := os.Getenv("CHAT_RETENTION_DAYS"); daysStr != "" {
		if days, err := strconv.Atoi(daysStr); err == nil && days >= 1 {
			cfg.RetentionDays = days
		}
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	if dataFile := os.Getenv("DATA_FILE"); dataFile != "" {
		cfg.DataFile = dataFile
	}

	if staticDir := os.Getenv("STATIC_DIR"); staticDir != "" {
		cfg.StaticDir = staticDir
	}

	return cfg
}
