// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Config holds all dynamic configuration, so no listen address or data
// root is hardcoded in the business logic.
type Config struct {
	// Port is the HTTP/WebSocket listen port.
	Port string `validate:"required,numeric"`

	// Root is the messaging runtime's data root; discover reports paths
	// relative to it.
	Root string `validate:"required"`
}

// Load parses the environment, applies default fallbacks, and validates
// the result. An unparseable port is a boot failure, not a runtime one.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT_STR", "24880"),
		Root: getEnv("A0_ROOT", "/dev/shm/alephzero"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
