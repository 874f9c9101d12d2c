// Package pipeline runs one recommendation request end to end and keeps
// its intermediate results in a Session.
package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"unipal-workers/internal/common/validation"
	"unipal-workers/internal/models"
)

var ErrSessionClosed = errors.New("SESSION_CLOSED")

// Message levels.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

type StatusMessage struct {
	Stage string    `json:"stage"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Session holds the state of a single run. Sessions are not shared between
// requests; Close discards everything they hold.
type Session struct {
	ID           string                       `json:"id"`
	CreatedAt    time.Time                    `json:"createdAt"`
	Profile      models.StudentProfile        `json:"profile"`
	Validation   *validation.ValidationResult `json:"validation,omitempty"`
	Candidates   []models.RawCandidateRecord  `json:"candidates"`
	Universities []models.University          `json:"universities"`
	Visa         *models.VisaInfo             `json:"visa"`
	Scholarships []models.ScholarshipInfo     `json:"scholarships"`
	Documents    []models.Document            `json:"documents"`
	State        *models.ApplicationState     `json:"state,omitempty"`
	Messages     []StatusMessage              `json:"messages"`

	mu     sync.Mutex
	closed bool
}

func NewSession(profile models.StudentProfile) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Profile:   profile.Clone(),
		Messages:  []StatusMessage{},
	}
}

func (s *Session) addMessage(stage, level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, StatusMessage{Stage: stage, Level: level, Text: text, At: time.Now().UTC()})
}

// MessagesSnapshot returns a copy of the status messages so far.
func (s *Session) MessagesSnapshot() []StatusMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatusMessage(nil), s.Messages...)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close drops every intermediate result. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.Profile = models.StudentProfile{}
	s.Validation = nil
	s.Candidates = nil
	s.Universities = nil
	s.Visa = nil
	s.Scholarships = nil
	s.Documents = nil
	s.State = nil
	s.Messages = nil
}
