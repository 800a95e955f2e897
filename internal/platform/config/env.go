package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables. Service
// configs declare their fields with PAPERSTACKS_<SERVICE>_* env tags and
// layer flag overrides on top of the parsed result.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
