// Package candidates turns a student profile into raw university records:
// one web search per preferred country, then fetch and extract per hit.
package candidates

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
	"unipal-workers/internal/models"
	"unipal-workers/internal/search"
)

// Drop reasons reported on unipal_candidates_dropped_total.
const (
	DropSearchFailed     = "search_failed"
	DropNoHits           = "no_hits"
	DropNotAllowed       = "not_allowed"
	DropFetchFailed      = "fetch_failed"
	DropExtractionFailed = "extraction_failed"
	DropDuplicate        = "duplicate"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, pageText, instruction string) models.ExtractionResult
}

// Catalog remembers records extracted in earlier runs.
type Catalog interface {
	GetByURL(ctx context.Context, url string) (models.RawCandidateRecord, bool, error)
	Index(ctx context.Context, rec models.RawCandidateRecord) error
}

type Config struct {
	// Workers above 1 fetches and extracts hits concurrently. Output order
	// is the same either way.
	Workers     int
	Instruction string
}

type Builder struct {
	config    Config
	searcher  Searcher
	fetcher   PageFetcher
	extractor Extractor
	allow     *search.AllowList
	catalog   Catalog
	logger    logger.Logger
}

func NewBuilder(config Config, searcher Searcher, fetcher PageFetcher, extractor Extractor, allow *search.AllowList, log logger.Logger) *Builder {
	return &Builder{
		config:    config,
		searcher:  searcher,
		fetcher:   fetcher,
		extractor: extractor,
		allow:     allow,
		logger:    logger.OrNop(log).WithFields(map[string]interface{}{"component": "candidate-builder"}),
	}
}

// WithCatalog enables lookups before extraction and indexing after it.
func (b *Builder) WithCatalog(c Catalog) *Builder {
	b.catalog = c
	return b
}

// Query is the search phrase for one country.
func Query(country, field string) string {
	return fmt.Sprintf("top universities in %s for %s", country, field)
}

type hit struct {
	result  search.Result
	country string
	index   int
}

// Build never fails. A URL found by more than one query is kept once, at
// its first position. Every dropped hit is logged and counted, and a
// cancelled context ends the run with whatever was collected so far.
func (b *Builder) Build(ctx context.Context, profile models.StudentProfile) []models.RawCandidateRecord {
	field := profile.FieldOfInterest()

	var hits []hit
	seen := make(map[string]bool)
	for _, country := range profile.PreferredCountries {
		country = strings.TrimSpace(country)
		if country == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		query := Query(country, field)
		results, err := b.searcher.Search(ctx, query)
		if err != nil {
			b.drop(DropSearchFailed, map[string]interface{}{"query": query, "error": err.Error()})
			continue
		}
		if len(results) == 0 {
			b.drop(DropNoHits, map[string]interface{}{"query": query})
			continue
		}

		for _, r := range results {
			if b.allow != nil && !b.allow.Allowed(r.URL) {
				b.drop(DropNotAllowed, map[string]interface{}{"url": r.URL})
				continue
			}
			// The same page often answers several country queries.
			key := strings.ToLower(strings.TrimSpace(r.URL))
			if seen[key] {
				b.drop(DropDuplicate, map[string]interface{}{"url": r.URL, "query": query})
				continue
			}
			seen[key] = true
			hits = append(hits, hit{result: r, country: country, index: len(hits)})
		}
	}

	slots := make([]*models.RawCandidateRecord, len(hits))
	if b.config.Workers <= 1 {
		for i, h := range hits {
			if ctx.Err() != nil {
				break
			}
			slots[i] = b.process(ctx, h)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.config.Workers)
		for i, h := range hits {
			i, h := i, h
			g.Go(func() error {
				slots[i] = b.process(gctx, h)
				return nil
			})
		}
		_ = g.Wait()
	}

	records := make([]models.RawCandidateRecord, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}

	b.logger.Info("candidates built", map[string]interface{}{
		"contactInfo": profile.ContactInfo,
		"hits":        len(hits),
		"candidates":  len(records),
	})
	return records
}

func (b *Builder) process(ctx context.Context, h hit) *models.RawCandidateRecord {
	url := h.result.URL

	if b.catalog != nil {
		rec, found, err := b.catalog.GetByURL(ctx, url)
		if err != nil {
			b.logger.Warn("catalog lookup failed", map[string]interface{}{"url": url, "error": err.Error()})
		}
		if found {
			rec.URL = url
			rec.DiscoveryIndex = h.index
			if rec.Country == "" || rec.Country == models.NotAvailable {
				rec.Country = h.country
			}
			b.logger.Debug("catalog hit", map[string]interface{}{"url": url})
			return &rec
		}
	}

	text, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		b.drop(DropFetchFailed, map[string]interface{}{"url": url, "error": err.Error()})
		return nil
	}

	result := b.extractor.Extract(ctx, text, b.config.Instruction)
	if result.Failed() {
		b.drop(DropExtractionFailed, map[string]interface{}{"url": url, "error": result.Error})
		return nil
	}

	rec := result.ToCandidate(url, h.country)
	if rec.Name == models.NotAvailable {
		if title := strings.TrimSpace(h.result.Title); title != "" {
			rec.Name = title
		}
	}
	rec.DiscoveryIndex = h.index

	if b.catalog != nil {
		if err := b.catalog.Index(ctx, rec); err != nil {
			b.logger.Warn("catalog index failed", map[string]interface{}{"url": url, "error": err.Error()})
		}
	}
	return &rec
}

func (b *Builder) drop(reason string, fields map[string]interface{}) {
	metrics.CandidatesDropped.WithLabelValues(reason).Inc()
	fields["reason"] = reason
	b.logger.Info("candidate dropped", fields)
}
