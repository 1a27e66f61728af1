package config

import "fmt"

// Validate checks the configuration for values the supervisor cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.Database.Command == "" {
		return fmt.Errorf("database command must not be empty")
	}
	if c.Database.InitCommand == "" {
		return fmt.Errorf("database init command must not be empty")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host must not be empty")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port %d out of range", c.Database.Port)
	}
	if c.API.Command == "" {
		return fmt.Errorf("api command must not be empty")
	}
	if c.Auth.Command == "" {
		return fmt.Errorf("auth command must not be empty")
	}
	if c.Auth.CheckTimeout <= 0 {
		return fmt.Errorf("auth check timeout must be positive")
	}
	if c.Auth.ConfirmTimeout <= 0 || c.Auth.ConfirmInterval <= 0 {
		return fmt.Errorf("auth confirm timeout and interval must be positive")
	}
	if c.Readiness.Timeout <= 0 {
		return fmt.Errorf("readiness timeout must be positive")
	}
	if c.Readiness.Interval <= 0 {
		return fmt.Errorf("readiness interval must be positive")
	}
	if c.Readiness.DialTimeout <= 0 {
		return fmt.Errorf("readiness dial timeout must be positive")
	}
	return nil
}
