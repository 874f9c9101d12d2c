// internal/workers/communication/send-shortlist/models.go
package sendshortlist

import "unipal-workers/internal/models"

type Input struct {
	ApplicationState models.ApplicationState `json:"applicationState"`
}

type Output struct {
	Sent      bool   `json:"sent"`
	Channel   string `json:"channel"` // "email", "sms" or "none"
	MessageID string `json:"messageId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	SentAt    string `json:"sentAt,omitempty"` // ISO 8601
}

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelNone  = "none"
)

// Reasons a shortlist was not sent
const (
	ReasonDisabled  = "channel_disabled"
	ReasonNoContact = "no_contact"
	ReasonNoResults = "no_universities"
)
