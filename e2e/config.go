package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Both addresses must be set for the suite to run against a deployed relay
	RelayAddr  string `envconfig:"E2E_RELAY_ADDR"`
	AdminAddr  string `envconfig:"E2E_ADMIN_ADDR"`
	AdminToken string `envconfig:"E2E_ADMIN_TOKEN"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
