// internal/workers/recommendation/rank-universities/config.go
package rankuniversities

import (
	"time"

	"unipal-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// CatalogLimit bounds the indexed universities read per country when a
	// job arrives without candidates.
	CatalogLimit int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:      config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
		CatalogLimit: 10,
	}
}
