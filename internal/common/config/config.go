package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// DatabaseConfig selects the student store driver and the optional cache and
// catalog backends. An empty Redis address or Elasticsearch address list
// disables that backend.
type DatabaseConfig struct {
	Driver        string              `mapstructure:"driver"` // "postgres" or "sqlite"
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GetDSN returns the modernc sqlite DSN with foreign keys and a busy timeout.
func (s SQLiteConfig) GetDSN() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", s.Path)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// Enabled reports whether a catalog index is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a cache is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- External APIs ---

type GenAIConfig struct {
	Provider    string  `mapstructure:"provider"` // "http", "gemini" or "vertex"
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	ProjectID   string  `mapstructure:"project_id"`
	Location    string  `mapstructure:"location"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type WebSearchConfig struct {
	Provider    string `mapstructure:"provider"` // "serpapi", "google" or "tavily"
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	EngineID    string `mapstructure:"engine_id"`
	SearchDepth string `mapstructure:"search_depth"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
	MaxResults  int    `mapstructure:"max_results"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI     GenAIConfig     `mapstructure:"genai"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

// PipelineConfig tunes the recommendation pipeline.
type PipelineConfig struct {
	AllowedDomainsPath string `mapstructure:"allowed_domains_path"`
	VisaInfoPath       string `mapstructure:"visa_info_path"`
	SnapshotPath       string `mapstructure:"snapshot_path"`
	MaxChars           int    `mapstructure:"max_chars"`
	RateDelay          int    `mapstructure:"rate_delay"` // milliseconds
	ExtractionAttempts int    `mapstructure:"extraction_attempts"`
	BackoffInitial     int    `mapstructure:"backoff_initial"` // milliseconds
	BackoffMax         int    `mapstructure:"backoff_max"`     // milliseconds
	FetchTimeout       int    `mapstructure:"fetch_timeout"`   // milliseconds
	BuilderWorkers     int    `mapstructure:"builder_workers"`
	TopN               int    `mapstructure:"top_n"`
	CacheTTL           int    `mapstructure:"cache_ttl"` // seconds
	ReplaceExisting    bool   `mapstructure:"replace_existing"`
	ExportDir          string `mapstructure:"export_dir"`
}

// NotificationConfig holds settings for the send-shortlist worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
