package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the environment defaults for the command-line flags.
type Config struct {
	RelayURLs      []string      `env:"RELAY"                 envSeparator:","`
	Port           int           `env:"BINGO_PORT"            envDefault:"8080"`
	Name           string        `env:"BINGO_NAME"            envDefault:"bingo"`
	CredKey        string        `env:"BINGO_CRED_KEY"`
	DataPath       string        `env:"BINGO_DATA_PATH"`
	DrawInterval   time.Duration `env:"BINGO_DRAW_INTERVAL"   envDefault:"6s"`
	TrustHost      bool          `env:"BINGO_TRUST_HOST"`
	ProfileTimeout time.Duration `env:"BINGO_PROFILE_TIMEOUT" envDefault:"5s"`
	LogLevel       string        `env:"BINGO_LOG_LEVEL"       envDefault:"info"`
	LogPretty      bool          `env:"BINGO_LOG_PRETTY"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// relayServers drops blank entries from the relay list.
func relayServers(raw []string) []string {
	servers := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			servers = append(servers, trimmed)
		}
	}
	return servers
}

func setupLogging(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}
