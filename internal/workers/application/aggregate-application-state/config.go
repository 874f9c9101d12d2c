// internal/workers/application/aggregate-application-state/config.go
package aggregateapplicationstate

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
