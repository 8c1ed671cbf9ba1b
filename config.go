package main

import (
	"fmt"
	"strconv"
	"time"

	"lg/nuvision-api/internal/vision"
)

// config is read from the environment (after .env is loaded). The vision
// credential is deliberately absent: it arrives with each request.
type config struct {
	Addr      string
	DBURL     string // optional; enables the saved profile store
	TokenHash string // optional bcrypt hash guarding /api
	Vision    vision.Config
}

// loadConfig reads settings through getenv so tests can supply a map.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		Addr:      getenv("ADDR"),
		DBURL:     getenv("DB_URL"),
		TokenHash: getenv("API_TOKEN_HASH"),
		Vision: vision.Config{
			BaseURL: getenv("GEMINI_BASE_URL"),
			Model:   getenv("GEMINI_MODEL"),
		},
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:3000"
	}

	if s := getenv("VISION_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("invalid VISION_TIMEOUT %q, expected a positive duration like 30s", s)
		}
		cfg.Vision.Timeout = d
	}
	if s := getenv("VISION_MAX_ATTEMPTS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return config{}, fmt.Errorf("invalid VISION_MAX_ATTEMPTS %q, expected 1 or 2", s)
		}
		cfg.Vision.MaxAttempts = n
	}

	return cfg, nil
}
