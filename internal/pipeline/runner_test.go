package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
	"unipal-workers/internal/ranking"
	"unipal-workers/internal/visa"
)

// ==========================
// Fakes
// ==========================

type fakeStore struct {
	saved []models.StudentProfile
	err   error
}

func (f *fakeStore) Upsert(_ context.Context, p models.StudentProfile) error {
	f.saved = append(f.saved, p)
	return f.err
}

type staticBuilder []models.RawCandidateRecord

func (b staticBuilder) Build(context.Context, models.StudentProfile) []models.RawCandidateRecord {
	return append([]models.RawCandidateRecord(nil), b...)
}

type staticFinder []models.ScholarshipInfo

func (f staticFinder) Find(context.Context, models.StudentProfile, []models.University) []models.ScholarshipInfo {
	return f
}

type stageLog struct {
	mu     sync.Mutex
	stages []string
}

func (s *stageLog) RecordStage(_ context.Context, stage, status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stage+":"+status)
}

func createTestProfile() models.StudentProfile {
	ielts := 7.0
	return models.StudentProfile{
		Name:                      "Asha Rao",
		ContactInfo:               "asha@example.com",
		Marks10th:                 90,
		Marks12th:                 88,
		BtechCGPA:                 8.5,
		IELTSScore:                &ielts,
		PreferredCountries:        []string{"USA"},
		BtechBranch:               "Computer Science",
		InterestedFieldForMasters: "Data Science",
	}
}

func createTestDeps(cands staticBuilder) (Deps, *fakeStore, *stageLog) {
	store := &fakeStore{}
	stages := &stageLog{}
	return Deps{
		Store:        store,
		Builder:      cands,
		Ranker:       ranking.NewEngine(ranking.Config{}, nil),
		Visa:         visa.NewDirectory([]models.VisaInfo{{Country: "USA", Requirements: []string{"I-20"}}}),
		Scholarships: staticFinder{{Name: "Fulbright"}},
		Metrics:      stages,
	}, store, stages
}

// ==========================
// Run
// ==========================

func TestRun_FullPipeline(t *testing.T) {
	cands := staticBuilder{
		{Name: "Elsewhere", URL: "https://a.example.de", Country: "Germany", TuitionFees: "EUR 1,000", EligibilityCriteria: "N/A"},
		{Name: "MIT", URL: "https://mit.edu", Country: "USA", TuitionFees: "USD 60,000", EligibilityCriteria: "CGPA 8.0, IELTS 6.5"},
	}
	deps, store, stages := createTestDeps(cands)
	r := NewRunner(Config{}, deps, logger.NewTestLogger(t))

	s := NewSession(createTestProfile())
	state, err := r.Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, state.Universities, 2)
	assert.Equal(t, "MIT", state.Universities[0].Name)
	assert.Equal(t, 28.0, state.Universities[0].MatchScore)
	assert.Equal(t, "4920000.00", state.Universities[0].TuitionFees)
	require.NotNil(t, state.VisaInfo)
	assert.Equal(t, "USA", state.VisaInfo.Country)
	assert.Len(t, state.Documents, 6)
	assert.Equal(t, 100, state.ProgressPercentage)

	assert.Len(t, store.saved, 1)
	assert.Equal(t, state, *s.State)

	for _, m := range s.MessagesSnapshot() {
		assert.Equal(t, LevelSuccess, m.Level, m.Stage)
	}
	assert.Equal(t, []string{
		"validate:success", "save:success", "candidates:success", "rank:success",
		"visa:success", "scholarships:success", "documents:success", "aggregate:success",
	}, stages.stages)
}

func TestRun_InvalidProfile(t *testing.T) {
	deps, store, _ := createTestDeps(nil)
	r := NewRunner(Config{}, deps, nil)

	p := createTestProfile()
	p.ContactInfo = "not a contact"
	p.PreferredCountries = nil
	s := NewSession(p)

	_, err := r.Run(context.Background(), s)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProfileValidationFailed))
	require.NotNil(t, s.Validation)
	assert.True(t, s.Validation.HasErrors("contactInfo"))
	assert.Empty(t, store.saved, "an invalid profile must not be saved")

	msgs := s.MessagesSnapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, LevelError, msgs[0].Level)
}

func TestRun_NoCandidatesWarns(t *testing.T) {
	deps, _, _ := createTestDeps(nil)
	deps.Scholarships = staticFinder{}
	r := NewRunner(Config{}, deps, nil)

	s := NewSession(createTestProfile())
	state, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, state.Universities)

	var warnings []string
	for _, m := range s.MessagesSnapshot() {
		if m.Level == LevelWarning {
			warnings = append(warnings, m.Text)
		}
	}
	assert.Contains(t, warnings, "no matching universities found")
	assert.Contains(t, warnings, "no scholarships found")
	// Profile, visa by preferred country, documents.
	assert.Equal(t, 60, state.ProgressPercentage)
}

func TestRun_SaveFailureIsWarning(t *testing.T) {
	deps, store, _ := createTestDeps(nil)
	store.err = errors.New("DATABASE_WRITE_FAILED")
	r := NewRunner(Config{}, deps, nil)

	s := NewSession(createTestProfile())
	_, err := r.Run(context.Background(), s)
	require.NoError(t, err)

	msgs := s.MessagesSnapshot()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, StageSave, msgs[1].Stage)
	assert.Equal(t, LevelWarning, msgs[1].Level)
}

func TestRun_CancelledContext(t *testing.T) {
	deps, _, _ := createTestDeps(nil)
	r := NewRunner(Config{}, deps, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, NewSession(createTestProfile()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ClosedSession(t *testing.T) {
	deps, _, _ := createTestDeps(nil)
	s := NewSession(createTestProfile())
	s.Close()
	s.Close()

	_, err := NewRunner(Config{}, deps, nil).Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, s.Profile.ContactInfo)
}

func TestVisaCountry(t *testing.T) {
	p := createTestProfile()
	assert.Equal(t, "Canada", VisaCountry(p, []models.University{{Country: models.NotAvailable}, {Country: "Canada"}}))
	assert.Equal(t, "USA", VisaCountry(p, nil))
	assert.Equal(t, "", VisaCountry(models.StudentProfile{}, nil))
}

func TestNewSession_ClonesProfile(t *testing.T) {
	p := createTestProfile()
	s := NewSession(p)
	p.PreferredCountries[0] = "changed"

	assert.Equal(t, "USA", s.Profile.PreferredCountries[0])
	assert.NotEmpty(t, s.ID)
}
