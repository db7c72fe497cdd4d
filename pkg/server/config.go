package server

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the status server configuration.
type Config struct {
	Address string
	Port    int

	// Rate limiting for the status API.
	RateLimit      rate.Limit
	RateLimitBurst int

	// Timeouts.
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults, with PORT overridable from the
// environment.
func DefaultConfig() *Config {
	cfg := &Config{
		Address:         "",
		Port:            8089,
		RateLimit:       50,
		RateLimitBurst:  100,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	return cfg
}
