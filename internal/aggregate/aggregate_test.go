package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
)

func createTestProfile() *models.StudentProfile {
	return &models.StudentProfile{
		Name:               "Asha",
		ContactInfo:        "asha@example.com",
		PreferredCountries: []string{"USA"},
		BtechBranch:        "CSE",
	}
}

func TestAggregate_ProfileOnly(t *testing.T) {
	state := Aggregate(createTestProfile(), []models.University{}, nil, nil, nil)

	assert.Equal(t, 20, state.ProgressPercentage)
	require.NotNil(t, state.StudentInfo)
	assert.Nil(t, state.VisaInfo)
	assert.Empty(t, state.Universities)
}

func TestAggregate_Progress(t *testing.T) {
	unis := []models.University{{Name: "MIT"}}
	visa := &models.VisaInfo{Country: "USA", Requirements: []string{"I-20"}}
	schols := []models.ScholarshipInfo{{Name: "Fulbright"}}
	docs := []models.Document{{Name: "Passport", Status: models.DocumentPending}}

	tests := []struct {
		name    string
		profile *models.StudentProfile
		unis    []models.University
		visa    *models.VisaInfo
		schols  []models.ScholarshipInfo
		docs    []models.Document
		want    int
	}{
		{"nothing", nil, nil, nil, nil, nil, 0},
		{"empty profile counts as missing", &models.StudentProfile{}, nil, nil, nil, nil, 0},
		{"two sections", createTestProfile(), unis, nil, nil, nil, 40},
		{"visa without country is missing", nil, nil, &models.VisaInfo{}, schols, nil, 20},
		{"four sections", createTestProfile(), unis, visa, schols, nil, 80},
		{"all sections", createTestProfile(), unis, visa, schols, docs, 100},
	}
	a := NewAggregator(logger.NewNoOpLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := a.Aggregate(tt.profile, tt.unis, tt.visa, tt.schols, tt.docs)
			assert.Equal(t, tt.want, state.ProgressPercentage)
		})
	}
}

func TestAggregate_CopiesInputs(t *testing.T) {
	profile := createTestProfile()
	visa := &models.VisaInfo{Country: "USA", Requirements: []string{"I-20"}}
	unis := []models.University{{Name: "MIT"}}

	state := Aggregate(profile, unis, visa, nil, nil)

	profile.Name = "changed"
	visa.Requirements[0] = "changed"
	unis[0].Name = "changed"

	assert.Equal(t, "Asha", state.StudentInfo.Name)
	assert.Equal(t, "I-20", state.VisaInfo.Requirements[0])
	assert.Equal(t, "MIT", state.Universities[0].Name)
}
