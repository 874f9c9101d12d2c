package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and applies env fallbacks and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found next to the binary, in a parent
// directory or at the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env vars when the YAML
// left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY", "GEMINI_API_KEY")
	setIfEmpty(&cfg.APIs.GenAI.ProjectID, "GOOGLE_CLOUD_PROJECT")
	setIfEmpty(&cfg.APIs.GenAI.Location, "GOOGLE_CLOUD_LOCATION")

	if cfg.APIs.WebSearch.Provider == "tavily" {
		setIfEmpty(&cfg.APIs.WebSearch.APIKey, "TAVILY_API_KEY", "WEB_SEARCH_API_KEY")
	} else {
		setIfEmpty(&cfg.APIs.WebSearch.APIKey, "WEB_SEARCH_API_KEY", "SERP_API_KEY")
	}
	setIfEmpty(&cfg.APIs.WebSearch.EngineID, "WEB_SEARCH_ENGINE_ID")

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

func setIfEmpty(dst *string, envKeys ...string) {
	if *dst != "" {
		return
	}
	for _, k := range envKeys {
		if val := os.Getenv(k); val != "" {
			*dst = val
			return
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "unipal-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "unipal.db"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "universities"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	genai := &cfg.APIs.GenAI
	if genai.Provider == "" {
		genai.Provider = "http"
	}
	if genai.Timeout == 0 {
		genai.Timeout = 60000
	}
	if genai.MaxTokens == 0 {
		genai.MaxTokens = 1024
	}
	if genai.Temperature == 0 {
		genai.Temperature = 0.2
	}
	if genai.Model == "" {
		genai.Model = "gemini-2.5-flash"
	}
	if genai.Location == "" {
		genai.Location = "us-central1"
	}

	search := &cfg.APIs.WebSearch
	if search.Provider == "" {
		search.Provider = "serpapi"
	}
	if search.BaseURL == "" {
		switch search.Provider {
		case "serpapi":
			search.BaseURL = "https://serpapi.com/search"
		case "google":
			search.BaseURL = "https://www.googleapis.com/customsearch/v1"
		case "tavily":
			search.BaseURL = "https://api.tavily.com/search"
		}
	}
	if search.SearchDepth == "" {
		search.SearchDepth = "basic"
	}
	if search.Timeout == 0 {
		search.Timeout = 10000
	}
	if search.MaxResults == 0 {
		search.MaxResults = 5
	}

	p := &cfg.Pipeline
	if p.AllowedDomainsPath == "" {
		p.AllowedDomainsPath = "data/allowed_websites.json"
	}
	if p.VisaInfoPath == "" {
		p.VisaInfoPath = "data/visa_info.json"
	}
	if p.SnapshotPath == "" {
		p.SnapshotPath = "data/students.json"
	}
	if p.MaxChars == 0 {
		p.MaxChars = 12000
	}
	if p.RateDelay == 0 {
		p.RateDelay = 1000
	}
	if p.ExtractionAttempts == 0 {
		p.ExtractionAttempts = 3
	}
	if p.BackoffInitial == 0 {
		p.BackoffInitial = 4000
	}
	if p.BackoffMax == 0 {
		p.BackoffMax = 10000
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = 30000
	}
	if p.BuilderWorkers == 0 {
		p.BuilderWorkers = 1
	}
	if p.TopN == 0 {
		p.TopN = 5
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = 86400
	}
	if p.ExportDir == "" {
		p.ExportDir = "exports"
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates settings every entry point depends on. Missing API
// keys are not checked here: they only disable the feature that needs them.
func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}

	switch cfg.APIs.GenAI.Provider {
	case "http", "gemini", "vertex":
	default:
		return fmt.Errorf("apis.genai.provider must be http, gemini or vertex, got %q", cfg.APIs.GenAI.Provider)
	}

	switch cfg.APIs.WebSearch.Provider {
	case "serpapi", "google", "tavily":
	default:
		return fmt.Errorf("apis.web_search.provider must be serpapi, google or tavily, got %q", cfg.APIs.WebSearch.Provider)
	}

	if cfg.Pipeline.TopN < 1 {
		return fmt.Errorf("pipeline.top_n must be positive")
	}
	return nil
}

// RequireBroker is checked by the worker manager only.
func RequireBroker(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled reports whether a worker is enabled; unlisted workers are.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
