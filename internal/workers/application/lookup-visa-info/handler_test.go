// internal/workers/application/lookup-visa-info/handler_test.go
package lookupvisainfo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
	"unipal-workers/internal/visa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{Timeout: time.Second}
}

func createTestDirectory() *visa.Directory {
	return visa.NewDirectory([]models.VisaInfo{
		{Country: "USA", Requirements: []string{"Form I-20", "DS-160"}, Fees: "185", Currency: "USD"},
		{Country: "Germany", Requirements: []string{"Blocked account"}, Fees: "75", Currency: "EUR"},
	})
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name        string
		input       *Input
		wantCountry string
		wantFound   bool
	}{
		{
			name: "top university country wins",
			input: &Input{
				StudentProfile: models.StudentProfile{PreferredCountries: []string{"USA"}},
				Universities:   []models.University{{Name: "TU Munich", Country: "Germany"}},
			},
			wantCountry: "Germany",
			wantFound:   true,
		},
		{
			name: "falls back to first preferred country",
			input: &Input{
				StudentProfile: models.StudentProfile{PreferredCountries: []string{"usa", "Germany"}},
			},
			wantCountry: "USA",
			wantFound:   true,
		},
		{
			name: "explicit country",
			input: &Input{
				StudentProfile: models.StudentProfile{PreferredCountries: []string{"USA"}},
				Country:        "germany",
			},
			wantCountry: "Germany",
			wantFound:   true,
		},
		{
			name: "unknown country",
			input: &Input{
				StudentProfile: models.StudentProfile{PreferredCountries: []string{"Atlantis"}},
			},
			wantCountry: "Atlantis",
			wantFound:   false,
		},
		{
			name:        "nothing to look up",
			input:       &Input{},
			wantCountry: "",
			wantFound:   false,
		},
	}

	h := NewHandler(createTestConfig(), createTestDirectory(), logger.NewNoOpLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, out.Found)
			assert.Equal(t, tt.wantCountry, out.VisaCountry)
			assert.Equal(t, tt.wantFound, out.VisaInfo != nil)
		})
	}
}

func TestOutput_UnknownCountrySerializesNull(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestDirectory(), logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{Country: "Atlantis"})
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"visaInfo":null,"visaCountry":"Atlantis","found":false}`, string(raw))
}
