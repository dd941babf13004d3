package config

import "fmt"

// ConfigError reports a missing or invalid setting. Configuration problems
// are fatal at startup; nothing retries them.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
