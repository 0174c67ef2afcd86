package internal

import (
	"fmt"
	"time"
)

type Config struct {
	RelayHost       string        `env:"RELAY_HOST"`
	RelayPort       int           `env:"RELAY_PORT,default=8888"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=2s"`
	MaxMessageSize  int           `env:"MAX_MESSAGE_SIZE,default=65536"`
	BlockedNames    string        `env:"BLOCKED_NAMES"`

	AdminHost          string        `env:"ADMIN_HOST,default=127.0.0.1"`
	AdminPort          int           `env:"ADMIN_PORT,default=8889"`
	AdminSecret        string        `env:"ADMIN_SECRET"`
	AdminTokenDuration time.Duration `env:"ADMIN_TOKEN_DURATION,default=24h"`

	JournalPath  string `env:"JOURNAL_PATH"`
	JournalLimit int    `env:"JOURNAL_LIMIT,default=50"`

	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	ReportInterval  time.Duration `env:"REPORT_INTERVAL,default=1m"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
}

// Validate rejects values the relay cannot start with.
func (c Config) Validate() error {
	if c.RelayPort < 0 || c.RelayPort > 65535 {
		return fmt.Errorf("RELAY_PORT must be between 0 and 65535, got %d", c.RelayPort)
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return fmt.Errorf("ADMIN_PORT must be between 0 and 65535, got %d", c.AdminPort)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}
	if c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 || c.ReportInterval <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT, SHUTDOWN_TIMEOUT and REPORT_INTERVAL must be positive")
	}
	return nil
}

// AdminAddress is the bind address of the admin gRPC service.
func (c Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.AdminHost, c.AdminPort)
}
