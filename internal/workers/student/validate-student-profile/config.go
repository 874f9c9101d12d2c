// internal/workers/student/validate-student-profile/config.go
package validatestudentprofile

import (
	"time"

	"unipal-workers/internal/common/config"
)

type Config struct {
	Timeout         time.Duration
	ReplaceExisting bool
}

// LoadConfig reads the worker timeout and the snapshot policy from the
// application config.
func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:         config.GetDuration(wcfg.Timeout),
		ReplaceExisting: cfg.Pipeline.ReplaceExisting,
	}
}
