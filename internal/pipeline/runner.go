package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"unipal-workers/internal/aggregate"
	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/validation"
	"unipal-workers/internal/documents"
	"unipal-workers/internal/models"
)

// Stage names used in messages and metrics.
const (
	StageValidate     = "validate"
	StageSave         = "save"
	StageCandidates   = "candidates"
	StageRank         = "rank"
	StageVisa         = "visa"
	StageScholarships = "scholarships"
	StageDocuments    = "documents"
	StageAggregate    = "aggregate"
)

type ProfileStore interface {
	Upsert(ctx context.Context, p models.StudentProfile) error
}

type Snapshotter interface {
	Put(p models.StudentProfile, replaceExisting bool) error
}

type CandidateBuilder interface {
	Build(ctx context.Context, p models.StudentProfile) []models.RawCandidateRecord
}

type Ranker interface {
	Rank(p models.StudentProfile, candidates []models.RawCandidateRecord) []models.University
}

type VisaLookup interface {
	Lookup(country string) (*models.VisaInfo, bool)
}

type ScholarshipFinder interface {
	Find(ctx context.Context, p models.StudentProfile, universities []models.University) []models.ScholarshipInfo
}

type StageRecorder interface {
	RecordStage(ctx context.Context, stage, status string, duration time.Duration)
}

// Deps wires the stages. Store, Snapshot, Visa, Scholarships and Metrics
// are optional; their stages are skipped when nil.
type Deps struct {
	Store        ProfileStore
	Snapshot     Snapshotter
	Builder      CandidateBuilder
	Ranker       Ranker
	Visa         VisaLookup
	Scholarships ScholarshipFinder
	Metrics      StageRecorder
}

type Config struct {
	// ReplaceExisting keeps only the latest student in the snapshot file.
	ReplaceExisting bool
}

type Runner struct {
	config     Config
	deps       Deps
	aggregator *aggregate.Aggregator
	logger     logger.Logger
}

func NewRunner(config Config, deps Deps, log logger.Logger) *Runner {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"component": "pipeline"})
	return &Runner{
		config:     config,
		deps:       deps,
		aggregator: aggregate.NewAggregator(log),
		logger:     log,
	}
}

// Run executes every stage in order. Only an invalid profile or a cancelled
// context produce an error; any other failure becomes a warning message and
// the run continues with what it has.
func (r *Runner) Run(ctx context.Context, s *Session) (models.ApplicationState, error) {
	if s.Closed() {
		return models.ApplicationState{}, ErrSessionClosed
	}
	log := r.logger.WithFields(map[string]interface{}{"sessionId": s.ID, "contactInfo": s.Profile.ContactInfo})
	profile := s.Profile

	start := time.Now()
	result := validation.ValidateProfile(profile)
	if !result.Valid {
		s.Validation = result
		details := strings.Join(result.GetErrorMessages(), "; ")
		r.finish(ctx, s, StageValidate, LevelError, "profile rejected: "+details, start)
		log.Warn("profile rejected", map[string]interface{}{"errors": details})
		return models.ApplicationState{}, apperrors.NewProfileValidationError(details)
	}
	r.finish(ctx, s, StageValidate, LevelSuccess, "profile valid", start)

	if err := ctx.Err(); err != nil {
		return models.ApplicationState{}, err
	}
	r.save(ctx, s, profile)

	start = time.Now()
	s.Candidates = r.deps.Builder.Build(ctx, profile)
	if err := ctx.Err(); err != nil {
		r.finish(ctx, s, StageCandidates, LevelError, "cancelled", start)
		return models.ApplicationState{}, err
	}
	if len(s.Candidates) == 0 {
		r.finish(ctx, s, StageCandidates, LevelWarning, "no candidate universities found", start)
	} else {
		r.finish(ctx, s, StageCandidates, LevelSuccess, fmt.Sprintf("%d candidate universities found", len(s.Candidates)), start)
	}

	start = time.Now()
	s.Universities = r.deps.Ranker.Rank(profile, s.Candidates)
	if len(s.Universities) == 0 {
		r.finish(ctx, s, StageRank, LevelWarning, "no matching universities found", start)
	} else {
		r.finish(ctx, s, StageRank, LevelSuccess, fmt.Sprintf("%d universities ranked", len(s.Universities)), start)
	}

	r.lookupVisa(ctx, s, profile)

	if r.deps.Scholarships != nil {
		start = time.Now()
		s.Scholarships = r.deps.Scholarships.Find(ctx, profile, s.Universities)
		if err := ctx.Err(); err != nil {
			return models.ApplicationState{}, err
		}
		if len(s.Scholarships) == 0 {
			r.finish(ctx, s, StageScholarships, LevelWarning, "no scholarships found", start)
		} else {
			r.finish(ctx, s, StageScholarships, LevelSuccess, fmt.Sprintf("%d scholarships found", len(s.Scholarships)), start)
		}
	}

	start = time.Now()
	s.Documents = documents.StandardChecklist()
	r.finish(ctx, s, StageDocuments, LevelSuccess, fmt.Sprintf("%d documents to prepare", len(s.Documents)), start)

	start = time.Now()
	state := r.aggregator.Aggregate(&profile, s.Universities, s.Visa, s.Scholarships, s.Documents)
	s.State = &state
	r.finish(ctx, s, StageAggregate, LevelSuccess, fmt.Sprintf("application %d%% complete", state.ProgressPercentage), start)

	log.Info("pipeline finished", map[string]interface{}{
		"universities": len(state.Universities),
		"progress":     state.ProgressPercentage,
		"durationMs":   time.Since(s.CreatedAt).Milliseconds(),
	})
	return state, nil
}

func (r *Runner) save(ctx context.Context, s *Session, profile models.StudentProfile) {
	if r.deps.Store == nil && r.deps.Snapshot == nil {
		return
	}
	start := time.Now()
	var problems []string
	if r.deps.Store != nil {
		if err := r.deps.Store.Upsert(ctx, profile); err != nil {
			problems = append(problems, "database: "+err.Error())
		}
	}
	if r.deps.Snapshot != nil {
		if err := r.deps.Snapshot.Put(profile, r.config.ReplaceExisting); err != nil {
			problems = append(problems, "snapshot: "+err.Error())
		}
	}
	if len(problems) > 0 {
		r.finish(ctx, s, StageSave, LevelWarning, "profile not saved: "+strings.Join(problems, "; "), start)
		return
	}
	r.finish(ctx, s, StageSave, LevelSuccess, "profile saved", start)
}

// lookupVisa uses the country of the best ranked university, falling back
// to the first preferred country.
func (r *Runner) lookupVisa(ctx context.Context, s *Session, profile models.StudentProfile) {
	if r.deps.Visa == nil {
		return
	}
	start := time.Now()
	country := VisaCountry(profile, s.Universities)
	if country == "" {
		r.finish(ctx, s, StageVisa, LevelWarning, "no country to look up visa information for", start)
		return
	}
	info, ok := r.deps.Visa.Lookup(country)
	if !ok {
		r.finish(ctx, s, StageVisa, LevelWarning, "visa information not found for "+country, start)
		return
	}
	s.Visa = info
	r.finish(ctx, s, StageVisa, LevelSuccess, "visa information found for "+info.Country, start)
}

// VisaCountry picks the country whose visa rules apply to the shortlist.
func VisaCountry(profile models.StudentProfile, universities []models.University) string {
	for _, u := range universities {
		if c := strings.TrimSpace(u.Country); c != "" && c != models.NotAvailable {
			return c
		}
	}
	for _, c := range profile.PreferredCountries {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func (r *Runner) finish(ctx context.Context, s *Session, stage, level, text string, start time.Time) {
	s.addMessage(stage, level, text)
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordStage(ctx, stage, level, time.Since(start))
	}
}
