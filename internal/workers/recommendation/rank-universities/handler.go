// internal/workers/recommendation/rank-universities/handler.go
package rankuniversities

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
	"unipal-workers/internal/models"
	"unipal-workers/internal/ranking"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rank-universities"
)

type Ranker interface {
	Score(profile models.StudentProfile, c models.RawCandidateRecord) ranking.ScoreBreakdown
	Rank(profile models.StudentProfile, candidates []models.RawCandidateRecord) []models.University
}

// Catalog supplies previously extracted universities.
type Catalog interface {
	SearchByCountry(ctx context.Context, country string, limit int) ([]models.RawCandidateRecord, error)
}

type Handler struct {
	config  *Config
	ranker  Ranker
	catalog Catalog
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler builds the handler. catalog may be nil.
func NewHandler(config *Config, ranker Ranker, catalog Catalog, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		ranker:  ranker,
		catalog: catalog,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidJobInputError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	profile := input.StudentProfile
	candidates := input.Candidates
	source := SourceCandidates

	if len(candidates) == 0 && h.catalog != nil {
		candidates = h.fromCatalog(ctx, profile)
		source = SourceCatalog
	}

	universities := h.ranker.Rank(profile, candidates)
	if universities == nil {
		universities = []models.University{}
	}

	scores := make([]ScoreEntry, 0, len(universities))
	for _, u := range universities {
		c, ok := findByURL(candidates, u.URL)
		if !ok {
			continue
		}
		b := h.ranker.Score(profile, c)
		scores = append(scores, ScoreEntry{URL: u.URL, Breakdown: b, Total: b.Total()})
	}

	if len(universities) == 0 {
		h.logger.Warn("no matching universities found", map[string]interface{}{
			"contactInfo": profile.ContactInfo,
			"source":      source,
		})
	} else {
		h.logger.Info("universities ranked", map[string]interface{}{
			"contactInfo": profile.ContactInfo,
			"candidates":  len(candidates),
			"ranked":      len(universities),
			"topScore":    universities[0].MatchScore,
			"source":      source,
		})
	}

	return &Output{
		Universities: universities,
		RankedCount:  len(universities),
		Scores:       scores,
		Source:       source,
	}, nil
}

// fromCatalog reads indexed universities for each preferred country. An
// unavailable index yields whatever was read before the failure.
func (h *Handler) fromCatalog(ctx context.Context, profile models.StudentProfile) []models.RawCandidateRecord {
	var out []models.RawCandidateRecord
	for _, country := range profile.PreferredCountries {
		recs, err := h.catalog.SearchByCountry(ctx, country, h.config.CatalogLimit)
		if err != nil {
			h.logger.Warn("catalog search failed", map[string]interface{}{
				"country": country,
				"error":   err,
			})
			continue
		}
		for _, r := range recs {
			r.DiscoveryIndex = len(out)
			out = append(out, r)
		}
	}
	return out
}

func findByURL(candidates []models.RawCandidateRecord, url string) (models.RawCandidateRecord, bool) {
	key := strings.ToLower(strings.TrimSpace(url))
	for _, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c.URL)) == key {
			return c, true
		}
	}
	return models.RawCandidateRecord{}, false
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.AsStandard(err).Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
