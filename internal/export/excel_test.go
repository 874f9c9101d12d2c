package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"unipal-workers/internal/documents"
	"unipal-workers/internal/models"
)

func createTestState() models.ApplicationState {
	rank := 1
	return models.ApplicationState{
		StudentInfo: &models.StudentProfile{
			Name:               "Asha",
			ContactInfo:        "asha@example.com",
			BtechCGPA:          8.5,
			PreferredCountries: []string{"USA", "Canada"},
			BtechBranch:        "CSE",
		},
		Universities: []models.University{{
			Name:        "MIT",
			URL:         "https://www.mit.edu",
			Ranking:     &rank,
			TuitionFees: "4920000.00",
			Currency:    "INR",
			Country:     "USA",
			MatchScore:  28,
		}},
		VisaInfo:           &models.VisaInfo{Country: "USA", Requirements: []string{"I-20"}, Fees: "160", Currency: "USD"},
		Scholarships:       []models.ScholarshipInfo{{Name: "Fulbright", Amount: "Full"}},
		Documents:          documents.StandardChecklist(),
		ProgressPercentage: 100,
	}
}

func TestWriteShortlist(t *testing.T) {
	out, err := WriteShortlist(filepath.Join(t.TempDir(), "shortlist"), createTestState())
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", filepath.Ext(out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, UniversitiesSheet, DocumentsSheet}, f.GetSheetList())

	name, err := f.GetCellValue(UniversitiesSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "MIT", name)

	fee, err := f.GetCellValue(UniversitiesSheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, "4920000.00", fee)

	docs, err := f.GetRows(DocumentsSheet)
	require.NoError(t, err)
	assert.Len(t, docs, 7)
	assert.Equal(t, "Pending", docs[1][1])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	var labels []string
	for _, r := range summary {
		labels = append(labels, r[0])
	}
	assert.Contains(t, labels, "Student")
	assert.Contains(t, labels, "Visa Requirements")

	panes, err := f.GetPanes(UniversitiesSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
}

func TestWriteShortlist_EmptyState(t *testing.T) {
	out, err := WriteShortlist(filepath.Join(t.TempDir(), "empty.xlsx"), models.ApplicationState{})
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(UniversitiesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
