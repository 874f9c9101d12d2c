// internal/workers/application/build-document-checklist/config.go
package builddocumentchecklist

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
