// Package search finds candidate university pages through a web search API
// and keeps only hits on allow-listed domains.
package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"unipal-workers/internal/common/config"
	commonhttp "unipal-workers/internal/common/http"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
)

var (
	ErrWebSearchTimeout = errors.New("WEB_SEARCH_TIMEOUT")
	ErrWebSearchFailed  = errors.New("WEB_SEARCH_FAILED")
	ErrMissingAPIKey    = errors.New("CONFIG_MISSING_API_KEY")
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider runs one query and returns at most limit hits.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Cache stores provider responses between runs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.WebSearchConfig, allow *AllowList) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: apis.web_search.api_key is required for %s", ErrMissingAPIKey, cfg.Provider)
	}
	client := commonhttp.NewClient(config.GetDuration(cfg.Timeout))

	switch cfg.Provider {
	case "serpapi", "":
		return &SerpAPI{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: client}, nil
	case "google":
		if cfg.EngineID == "" {
			return nil, fmt.Errorf("%w: apis.web_search.engine_id is required for google", ErrMissingAPIKey)
		}
		return &GoogleCSE{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, engineID: cfg.EngineID, client: client}, nil
	case "tavily":
		t := &Tavily{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, depth: cfg.SearchDepth, client: client}
		if allow != nil {
			t.includeDomains = allow.Domains()
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

// Searcher wraps a Provider with the allow-list, de-duplication, the result
// bound and an optional cache.
type Searcher struct {
	provider   Provider
	name       string
	allow      *AllowList
	maxResults int
	cache      Cache
	cacheTTL   time.Duration
	logger     logger.Logger
}

func NewSearcher(provider Provider, name string, allow *AllowList, maxResults int, log logger.Logger) *Searcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Searcher{
		provider:   provider,
		name:       name,
		allow:      allow,
		maxResults: maxResults,
		logger:     logger.OrNop(log).WithFields(map[string]interface{}{"component": "search", "provider": name}),
	}
}

// WithCache enables caching of filtered results.
func (s *Searcher) WithCache(c Cache, ttl time.Duration) *Searcher {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func cacheKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return "unipal:search:" + hex.EncodeToString(sum[:])
}

// Search returns allow-listed, de-duplicated hits for query, at most
// maxResults of them.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	key := cacheKey(query)
	if s.cache != nil {
		var cached []Result
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("search cache read failed", map[string]interface{}{"error": err})
		} else if found {
			metrics.SearchRequests.WithLabelValues(s.name, "cached").Inc()
			return cached, nil
		}
	}

	raw, err := s.provider.Search(ctx, query, s.maxResults)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrWebSearchTimeout) {
			status = "timeout"
		}
		metrics.SearchRequests.WithLabelValues(s.name, status).Inc()
		return nil, err
	}
	metrics.SearchRequests.WithLabelValues(s.name, "ok").Inc()

	results := s.filter(raw)
	s.logger.Info("web search completed", map[string]interface{}{
		"query":       query,
		"rawCount":    len(raw),
		"resultCount": len(results),
	})

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, results, s.cacheTTL); err != nil {
			s.logger.Warn("search cache write failed", map[string]interface{}{"error": err})
		}
	}
	return results, nil
}

func (s *Searcher) filter(raw []Result) []Result {
	seen := make(map[string]bool, len(raw))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		u := strings.TrimSpace(r.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		if s.allow != nil && !s.allow.Allowed(u) {
			s.logger.Debug("skipping hit outside allow-list", map[string]interface{}{"url": u})
			continue
		}
		r.URL = u
		out = append(out, r)
		if len(out) == s.maxResults {
			break
		}
	}
	return out
}

// doJSON sends req and decodes a 200 JSON body into dst.
func doJSON(ctx context.Context, client *commonhttp.Client, req *http.Request, dst interface{}) error {
	resp, err := client.DoWithContext(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) ||
			strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("%w: %v", ErrWebSearchTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: search API returned %d", ErrWebSearchFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode error: %v", ErrWebSearchFailed, err)
	}
	return nil
}
