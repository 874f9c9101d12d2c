// internal/workers/communication/send-shortlist/config.go
package sendshortlist

import (
	"time"

	"unipal-workers/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	SenderID     string
	AWSRegion    string
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	n := cfg.Notifications
	return &Config{
		EmailEnabled: n.Email.Enabled,
		SMSEnabled:   n.SMS.Enabled,
		FromEmail:    n.Email.FromEmail,
		SenderID:     n.SMS.SenderID,
		AWSRegion:    n.AWS.Region,
		Timeout:      config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
}
