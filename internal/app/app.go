// Package app assembles the recommendation pipeline from configuration. The
// worker manager, the API server and the CLI all start from Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unipal-workers/internal/candidates"
	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/database"
	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/observability"
	"unipal-workers/internal/currency"
	"unipal-workers/internal/extract"
	"unipal-workers/internal/fetch"
	"unipal-workers/internal/llm"
	"unipal-workers/internal/pipeline"
	"unipal-workers/internal/ranking"
	"unipal-workers/internal/scholarships"
	"unipal-workers/internal/search"
	"unipal-workers/internal/store"
	"unipal-workers/internal/visa"
)

// Options controls how hard Build tries to reach the backing services.
type Options struct {
	// ConnectRetries applies to SQL, Redis and Elasticsearch. Zero means a
	// single attempt.
	ConnectRetries int
	RetryDelay     time.Duration
	ServiceName    string
}

// Components is everything a process needs to run or serve the pipeline.
// Optional parts are nil when their backend is not configured; Unavailable
// says why Runner is nil.
type Components struct {
	Config *config.Config

	SQL      *database.SQLClient
	Students *store.StudentStore
	Snapshot *store.SnapshotStore
	Redis    *database.RedisClient
	Cache    *store.Cache
	Catalog  *store.CatalogIndex

	Allow        *search.AllowList
	Visa         *visa.Directory
	LLM          llm.Client
	Searcher     *search.Searcher
	Fetcher      *fetch.Fetcher
	Extractor    *extract.Extractor
	Builder      *candidates.Builder
	Ranker       *ranking.Engine
	Scholarships *scholarships.Finder
	Metrics      *observability.Observability

	Runner      *pipeline.Runner
	Unavailable error

	logger  logger.Logger
	closers []func() error
}

// Build connects the stores and constructs every stage the configuration
// allows. Only a student store that cannot be opened is fatal; a missing
// search or model backend leaves Runner nil and sets Unavailable.
func Build(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*Components, error) {
	log = logger.OrNop(log)
	if opts.ServiceName == "" {
		opts.ServiceName = cfg.App.Name
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	currency.SetLogger(log)

	c := &Components{Config: cfg, logger: log}

	if err := c.connectSQL(ctx, opts); err != nil {
		c.Close()
		return nil, err
	}
	c.Snapshot = store.NewSnapshotStore(cfg.Pipeline.SnapshotPath)
	c.connectRedis(ctx, opts)
	c.connectCatalog(ctx, opts)

	obs, err := observability.New(opts.ServiceName)
	if err != nil {
		log.Warn("pipeline metrics disabled", map[string]interface{}{"error": err})
	}
	c.Metrics = obs
	c.closers = append(c.closers, func() error { return obs.Shutdown(context.Background()) })

	c.Ranker = ranking.NewEngine(ranking.Config{TopN: cfg.Pipeline.TopN}, log)

	if d, err := visa.LoadDirectory(cfg.Pipeline.VisaInfoPath); err != nil {
		log.Warn("visa directory not loaded", map[string]interface{}{"path": cfg.Pipeline.VisaInfoPath, "error": err})
		c.Visa = visa.NewDirectory(nil)
	} else {
		c.Visa = d
	}

	if err := c.buildStages(ctx); err != nil {
		c.Unavailable = err
		log.Warn("recommendation pipeline unavailable", map[string]interface{}{"error": err})
		return c, nil
	}

	deps := pipeline.Deps{
		Store:        c.Students,
		Snapshot:     c.Snapshot,
		Builder:      c.Builder,
		Ranker:       c.Ranker,
		Visa:         c.Visa,
		Scholarships: c.Scholarships,
		Metrics:      c.Metrics,
	}
	c.Runner = pipeline.NewRunner(pipeline.Config{ReplaceExisting: cfg.Pipeline.ReplaceExisting}, deps, log)
	return c, nil
}

func (c *Components) connectSQL(ctx context.Context, opts Options) error {
	err := retryWithBackoff(func() error {
		client, err := database.NewSQL(c.Config.Database)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		c.SQL = client
		return nil
	}, opts.ConnectRetries+1, opts.RetryDelay, c.logger, "SQL connection")
	if err != nil {
		return apperrors.NewDatabaseConnectionError(err)
	}
	c.closers = append(c.closers, c.SQL.Close)

	c.Students = store.NewStudentStore(c.SQL.DB, c.SQL.Dialect, c.logger)
	if err := c.Students.EnsureSchema(ctx); err != nil {
		return err
	}
	c.logger.Info("student store ready", map[string]interface{}{"driver": string(c.SQL.Dialect)})
	return nil
}

func (c *Components) connectRedis(ctx context.Context, opts Options) {
	if !c.Config.Database.Redis.Enabled() {
		return
	}
	client := database.NewRedis(c.Config.Database.Redis)
	err := retryWithBackoff(func() error {
		return client.Ping(ctx)
	}, opts.ConnectRetries+1, opts.RetryDelay, c.logger, "Redis connection")
	if err != nil {
		_ = client.Close()
		c.logger.Warn("cache disabled", map[string]interface{}{"error": err})
		return
	}
	c.Redis = client
	c.Cache = store.NewCache(client.Client)
	c.closers = append(c.closers, client.Close)
}

func (c *Components) connectCatalog(ctx context.Context, opts Options) {
	if !c.Config.Database.Elasticsearch.Enabled() {
		return
	}
	var es *database.ElasticsearchClient
	err := retryWithBackoff(func() error {
		client, err := database.NewElasticsearch(c.Config.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			return err
		}
		es = client
		return nil
	}, opts.ConnectRetries+1, opts.RetryDelay, c.logger, "Elasticsearch connection")
	if err != nil {
		c.logger.Warn("catalog disabled", map[string]interface{}{"error": err})
		return
	}
	c.Catalog = store.NewCatalogIndex(es.Client, es.Index)
}

// buildStages constructs the stages that call external APIs.
func (c *Components) buildStages(ctx context.Context) error {
	cfg := c.Config
	p := cfg.Pipeline

	allow, err := search.LoadAllowList(p.AllowedDomainsPath)
	if err != nil {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("allowed domains: %v", err))
	}
	c.Allow = allow

	client, err := llm.New(ctx, cfg.APIs.GenAI)
	if err != nil {
		return configError("language model", err)
	}
	c.LLM = client
	if closer, ok := client.(llm.Closer); ok {
		c.closers = append(c.closers, closer.Close)
	}

	provider, err := search.NewProvider(cfg.APIs.WebSearch, allow)
	if err != nil {
		return configError("web search", err)
	}
	c.Searcher = search.NewSearcher(provider, cfg.APIs.WebSearch.Provider, allow, cfg.APIs.WebSearch.MaxResults, c.logger)

	cacheTTL := time.Duration(p.CacheTTL) * time.Second
	c.Fetcher = fetch.NewFetcher(fetch.Config{
		Timeout:  config.GetDuration(p.FetchTimeout),
		CacheTTL: cacheTTL,
	}, c.logger)
	if c.Cache != nil {
		c.Searcher.WithCache(c.Cache, cacheTTL)
		c.Fetcher.WithCache(c.Cache)
	}

	c.Extractor = extract.NewExtractor(extract.Config{
		MaxChars:       p.MaxChars,
		MaxAttempts:    p.ExtractionAttempts,
		InitialBackoff: config.GetDuration(p.BackoffInitial),
		MaxBackoff:     config.GetDuration(p.BackoffMax),
		RateDelay:      config.GetDuration(p.RateDelay),
	}, client, c.logger)

	c.Builder = candidates.NewBuilder(candidates.Config{Workers: p.BuilderWorkers},
		c.Searcher, c.Fetcher, c.Extractor, allow, c.logger)
	if c.Catalog != nil {
		c.Builder.WithCatalog(c.Catalog)
	}

	c.Scholarships = scholarships.NewFinder(client, c.logger)
	return nil
}

func configError(feature string, err error) error {
	if errors.Is(err, search.ErrMissingAPIKey) || errors.Is(err, llm.ErrMissingAPIKey) {
		return apperrors.NewMissingAPIKeyError(feature).WithMetadata("reason", err.Error())
	}
	return apperrors.NewConfigInvalidError(fmt.Sprintf("%s: %v", feature, err))
}

// Close releases connections in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// retryWithBackoff attempts to execute a function with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
