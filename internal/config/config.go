package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Curator  CuratorConfig  `mapstructure:"curator"`
	Outreach OutreachConfig `mapstructure:"outreach"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DataConfig anchors every artifact the pipeline reads or writes under one
// directory, mirroring the sandbox layout the worker drains.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

func (d DataConfig) SandboxDir() string      { return filepath.Join(d.Dir, "sandbox") }
func (d DataConfig) PendingDir() string      { return filepath.Join(d.SandboxDir(), "outbox") }
func (d DataConfig) SentDir() string         { return filepath.Join(d.SandboxDir(), "sent") }
func (d DataConfig) FailedDir() string       { return filepath.Join(d.SandboxDir(), "failed") }
func (d DataConfig) LogsDir() string         { return filepath.Join(d.SandboxDir(), "logs") }
func (d DataConfig) SearchResults() string   { return filepath.Join(d.Dir, "search_results.json") }
func (d DataConfig) RawContactsCSV() string  { return filepath.Join(d.Dir, "contacts_raw.csv") }
func (d DataConfig) CuratedCSV() string      { return filepath.Join(d.Dir, "shortlist.csv") }
func (d DataConfig) DraftsJSON() string      { return filepath.Join(d.Dir, "outreach_drafts.json") }
func (d DataConfig) FlyerDir() string        { return filepath.Join(d.Dir, "flyers") }
func (d DataConfig) DefaultDatabase() string { return filepath.Join(d.Dir, "packages.db") }

type DatabaseConfig struct {
	// Driver is "sqlite3" (default, local file) or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SearchConfig struct {
	Queries         []string `mapstructure:"queries"`
	Location        string   `mapstructure:"location"`
	ResultsPerQuery int      `mapstructure:"results_per_query"`
	PauseSeconds    float64  `mapstructure:"pause_seconds"`
	APIKey          string   `mapstructure:"-"`
}

type ScraperConfig struct {
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	MaxBodyBytes      int64  `mapstructure:"max_body_bytes"`
	UserAgent         string `mapstructure:"user_agent"`
}

func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type CuratorConfig struct {
	TopN int `mapstructure:"top_n"`
}

// OutreachConfig is the sender's profile, substituted into drafts and flyers.
type OutreachConfig struct {
	SenderName  string `mapstructure:"sender_name"`
	SenderEmail string `mapstructure:"sender_email"`
	SenderPhone string `mapstructure:"sender_phone"`
	City        string `mapstructure:"city"`
	Offer       string `mapstructure:"offer"`
}

type PipelineConfig struct {
	// ApprovalLimit is the largest approved batch the pipeline hands to the
	// broker without an explicit confirmation flag.
	ApprovalLimit int `mapstructure:"approval_limit"`
}

type WorkerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// SMTPConfig carries gateway credentials. Values come from the environment
// only (envconfig), never from the config file.
type SMTPConfig struct {
	Host     string `envconfig:"HOST" mapstructure:"-"`
	Port     int    `envconfig:"PORT" default:"587" mapstructure:"-"`
	Username string `envconfig:"USERNAME" mapstructure:"-"`
	Password string `envconfig:"PASSWORD" mapstructure:"-"`
	From     string `envconfig:"FROM" mapstructure:"-"`
}

// Domain returns the host part of the From address, used for Message-IDs.
func (s SMTPConfig) Domain() string {
	if i := strings.LastIndex(s.From, "@"); i >= 0 && i+1 < len(s.From) {
		return s.From[i+1:]
	}
	return "localhost"
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type serpapiSecrets struct {
	Key string `envconfig:"KEY"`
}

// Load reads the optional YAML config file, applies defaults, then overlays
// environment-provided secrets. The returned Config is passed by reference
// into every component; there is no package-level instance.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("smtp", &cfg.SMTP); err != nil {
		return nil, fmt.Errorf("failed to read smtp environment: %w", err)
	}
	var serp serpapiSecrets
	if err := envconfig.Process("serpapi", &serp); err != nil {
		return nil, fmt.Errorf("failed to read serpapi environment: %w", err)
	}
	cfg.Search.APIKey = serp.Key

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Data.DefaultDatabase()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("search.location", "Winter Haven, Florida, United States")
	v.SetDefault("search.results_per_query", 10)
	v.SetDefault("search.pause_seconds", 1.2)
	v.SetDefault("scraper.timeout_seconds", 12)
	v.SetDefault("scraper.requests_per_minute", 20)
	v.SetDefault("scraper.max_body_bytes", 2<<20)
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36")
	v.SetDefault("curator.top_n", 10)
	v.SetDefault("outreach.sender_name", "Robert")
	v.SetDefault("outreach.city", "Winter Haven")
	v.SetDefault("outreach.offer", "6-10 hrs/week of gardening or light caretaking for a rent credit")
	v.SetDefault("pipeline.approval_limit", 3)
	v.SetDefault("worker.poll_interval_seconds", 30)
	v.SetDefault("logging.level", "info")
}

func (c *Config) validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Curator.TopN <= 0 {
		return fmt.Errorf("curator.top_n must be > 0")
	}
	if c.Scraper.RequestsPerMinute <= 0 {
		return fmt.Errorf("scraper.requests_per_minute must be > 0")
	}
	if c.Pipeline.ApprovalLimit <= 0 {
		return fmt.Errorf("pipeline.approval_limit must be > 0")
	}
	return nil
}
