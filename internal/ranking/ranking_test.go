package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
)

func ptr(v float64) *float64 { return &v }

func createTestProfile() models.StudentProfile {
	return models.StudentProfile{
		Name:                      "Asha",
		ContactInfo:               "asha@example.com",
		BtechCGPA:                 8.5,
		IELTSScore:                ptr(7.0),
		PreferredCountries:        []string{"USA"},
		BtechBranch:               "Computer Science",
		InterestedFieldForMasters: "Data Science",
	}
}

func candidate(name, country, eligibility string) models.RawCandidateRecord {
	return models.RawCandidateRecord{
		Name:                name,
		URL:                 "https://" + name + ".edu",
		Country:             country,
		TuitionFees:         "USD 10,000",
		EligibilityCriteria: eligibility,
	}
}

// ==========================
// Threshold Parsing
// ==========================

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		criterion string
		want      float64
		wantErr   bool
	}{
		{"cgpa plain", "CGPA 8.0, IELTS 6.5", CriterionCGPA, 8.0, false},
		{"gpa with words", "Minimum GPA of at least 3.2 on 4", CriterionCGPA, 3.2, false},
		{"ielts band", "IELTS overall band: 6.5", CriterionIELTS, 6.5, false},
		{"toefl ibt", "TOEFL iBT 100 or equivalent", CriterionTOEFL, 100, false},
		{"lowercase", "ielts 7", CriterionIELTS, 7, false},
		{"missing", "Bachelor's degree required", CriterionCGPA, 0, true},
		{"too far", "IELTS is required for all applicants whose first language is not English, 6.5", CriterionIELTS, 0, true},
		{"n/a", models.NotAvailable, CriterionTOEFL, 0, true},
		{"keyword without number before next criterion", "CGPA: N/A, IELTS 6.5", CriterionCGPA, 0, true},
		{"next criterion after comma", "CGPA: N/A, IELTS 6.5", CriterionIELTS, 6.5, false},
		{"gap names another test", "CGPA requirement IELTS 6.5", CriterionCGPA, 0, true},
		{"slash joined keywords", "IELTS/TOEFL: 6.5/90", CriterionTOEFL, 0, true},
		{"slash joined keywords first", "IELTS/TOEFL: 6.5/90", CriterionIELTS, 0, true},
		{"later mention wins when first has no number", "GPA varies; minimum GPA 3.0", CriterionCGPA, 3.0, false},
		{"separate toefl clause", "IELTS 6.5; TOEFL 90", CriterionTOEFL, 90, false},
		{"unknown criterion", "GRE 320", "gre", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseThreshold(tt.text, tt.criterion)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeThresholdParseFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ==========================
// Scoring
// ==========================

func TestScore_Criteria(t *testing.T) {
	e := NewEngine(Config{}, logger.NewNoOpLogger())

	tests := []struct {
		name    string
		modify  func(p *models.StudentProfile)
		cand    models.RawCandidateRecord
		want    ScoreBreakdown
		wantSum int
	}{
		{
			name:    "all criteria met",
			cand:    candidate("a", "usa ", "CGPA 8.0, IELTS 6.5"),
			want:    ScoreBreakdown{Country: 10, CGPA: 10, IELTS: 5, FieldBonus: 3},
			wantSum: 28,
		},
		{
			name:    "thresholds above profile",
			cand:    candidate("b", "USA", "CGPA 9.0, IELTS 7.5"),
			want:    ScoreBreakdown{Country: 10, FieldBonus: 3},
			wantSum: 13,
		},
		{
			name:    "toefl counts when profile has it",
			modify:  func(p *models.StudentProfile) { p.TOEFLScore = ptr(105) },
			cand:    candidate("c", "UK", "TOEFL 100"),
			want:    ScoreBreakdown{TOEFL: 5, FieldBonus: 3},
			wantSum: 8,
		},
		{
			name:    "ielts ignored without profile score",
			modify:  func(p *models.StudentProfile) { p.IELTSScore = nil },
			cand:    candidate("d", "UK", "IELTS 5.0"),
			want:    ScoreBreakdown{FieldBonus: 3},
			wantSum: 3,
		},
		{
			name:    "no field bonus without masters field",
			modify:  func(p *models.StudentProfile) { p.InterestedFieldForMasters = "" },
			cand:    candidate("e", "Germany", "N/A"),
			want:    ScoreBreakdown{},
			wantSum: 0,
		},
		{
			name:    "cgpa not taken from the next criterion",
			modify:  func(p *models.StudentProfile) { p.BtechCGPA = 7.0 },
			cand:    candidate("f", "USA", "CGPA: N/A, IELTS 6.5"),
			want:    ScoreBreakdown{Country: 10, IELTS: 5, FieldBonus: 3},
			wantSum: 18,
		},
		{
			name: "ambiguous ielts/toefl pair scores nothing",
			modify: func(p *models.StudentProfile) {
				p.IELTSScore = nil
				p.TOEFLScore = ptr(80)
			},
			cand:    candidate("g", "UK", "IELTS/TOEFL: 6.5/90"),
			want:    ScoreBreakdown{FieldBonus: 3},
			wantSum: 3,
		},
		{
			name:    "toefl below separate requirement",
			modify:  func(p *models.StudentProfile) { p.TOEFLScore = ptr(80) },
			cand:    candidate("h", "UK", "IELTS 6.5; TOEFL 90"),
			want:    ScoreBreakdown{IELTS: 5, FieldBonus: 3},
			wantSum: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := createTestProfile()
			if tt.modify != nil {
				tt.modify(&p)
			}
			got := e.Score(p, tt.cand)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSum, got.Total())
		})
	}
}

func TestRank_EndToEndScenario(t *testing.T) {
	e := NewEngine(Config{}, logger.NewTestLogger(t))

	other := candidate("other", "Germany", "Strong academic record")
	usa := candidate("usa", "USA", "CGPA 8.0, IELTS 6.5")

	ranked := e.Rank(createTestProfile(), []models.RawCandidateRecord{other, usa})
	require.Len(t, ranked, 2)

	assert.Equal(t, "usa", ranked[0].Name)
	assert.Equal(t, 28.0, ranked[0].MatchScore)
	assert.Equal(t, "other", ranked[1].Name)
	assert.Equal(t, 3.0, ranked[1].MatchScore)
	require.NotNil(t, ranked[0].Ranking)
	assert.Equal(t, 1, *ranked[0].Ranking)
}

// ==========================
// Ranking Properties
// ==========================

func TestRank_Bound(t *testing.T) {
	e := NewEngine(Config{}, nil)
	for _, n := range []int{0, 1, 4, 5, 6, 12} {
		t.Run(fmt.Sprintf("%d candidates", n), func(t *testing.T) {
			var cands []models.RawCandidateRecord
			for i := 0; i < n; i++ {
				cands = append(cands, candidate(fmt.Sprintf("u%d", i), "USA", "N/A"))
			}
			ranked := e.Rank(createTestProfile(), cands)
			want := n
			if want > 5 {
				want = 5
			}
			assert.Len(t, ranked, want)
		})
	}
}

func TestRank_BoundWithRepeatedURLs(t *testing.T) {
	e := NewEngine(Config{}, logger.NewTestLogger(t))
	for _, n := range []int{1, 5, 6} {
		t.Run(fmt.Sprintf("%d copies", n), func(t *testing.T) {
			cands := make([]models.RawCandidateRecord, n)
			for i := range cands {
				cands[i] = candidate("same", "USA", "CGPA 8.0")
			}
			ranked := e.Rank(createTestProfile(), cands)
			want := n
			if want > 5 {
				want = 5
			}
			require.Len(t, ranked, want)
			for i, u := range ranked {
				require.NotNil(t, u.Ranking)
				assert.Equal(t, i+1, *u.Ranking)
			}
		})
	}
}

func TestRank_PreferredCountryNeverLower(t *testing.T) {
	e := NewEngine(Config{}, nil)
	p := createTestProfile()
	for _, elig := range []string{"N/A", "CGPA 8.0", "CGPA 9.9, IELTS 9", "IELTS 6.0"} {
		pref := candidate("x", "USA", elig)
		non := candidate("x", "France", elig)
		assert.GreaterOrEqual(t, e.Score(p, pref).Total(), e.Score(p, non).Total(), elig)
	}
}

func TestRank_StableOnEqualScores(t *testing.T) {
	e := NewEngine(Config{}, nil)
	cands := []models.RawCandidateRecord{
		candidate("first", "Japan", "N/A"),
		candidate("second", "Japan", "N/A"),
		candidate("top", "USA", "N/A"),
		candidate("third", "Japan", "N/A"),
	}
	ranked := e.Rank(createTestProfile(), cands)

	names := make([]string, len(ranked))
	for i, u := range ranked {
		names[i] = u.Name
	}
	assert.Equal(t, []string{"top", "first", "second", "third"}, names)
}

func TestRank_NormalizesFees(t *testing.T) {
	e := NewEngine(Config{TopN: 3}, nil)
	usd := candidate("usd", "USA", "N/A")
	usd.TuitionFees = "USD 1,000 per year"
	unknown := candidate("unknown", "USA", "N/A")
	unknown.TuitionFees = "Contact admissions"

	ranked := e.Rank(createTestProfile(), []models.RawCandidateRecord{usd, unknown})
	require.Len(t, ranked, 2)
	assert.Equal(t, "82000.00", ranked[0].TuitionFees)
	assert.Equal(t, "INR", ranked[0].Currency)
	assert.Equal(t, models.NotAvailable, ranked[1].TuitionFees)
	assert.Empty(t, ranked[1].Currency)
}
