// Package config loads the service configuration: an optional YAML file,
// then environment variables (after an optional .env file), then defaults
// for every field left empty. API keys may also come from a credentials
// file shaped like
//
//	API_Keys:
//	  OpenAI: sk-...
//	  Tavily: tvly-...
//	  Polygon: ...
//	  Anthropic: sk-ant-...
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Generation backends.
const (
	LLMOpenAI    = "openai"
	LLMAnthropic = "anthropic"
)

// Search providers.
const (
	SearchTavily    = "tavily"
	SearchWebSearch = "websearch"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Engine      EngineConfig      `yaml:"engine"`
	Store       StoreConfig       `yaml:"store"`
	Search      SearchConfig      `yaml:"search"`
	LLM         LLMConfig         `yaml:"llm"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// CredentialsFile points at the API_Keys YAML file.
	CredentialsFile string `yaml:"credentials_file"`

	Credentials APIKeys `yaml:"-"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DefinitionsConfig struct {
	Directory string `yaml:"directory"`
	Watch     bool   `yaml:"watch"`
}

type EngineConfig struct {
	MaxConcurrency   int           `yaml:"max_concurrency"`
	LimiterMode      string        `yaml:"limiter_mode"`
	NodeTimeout      time.Duration `yaml:"node_timeout"`
	MoldTimeout      time.Duration `yaml:"mold_timeout"`
	TaskTTL          time.Duration `yaml:"task_ttl"`
	EvictionInterval time.Duration `yaml:"eviction_interval"`
	MockLatency      time.Duration `yaml:"mock_latency"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Table       string `yaml:"table"`
	BadgerPath  string `yaml:"badger_path"`
}

type SearchConfig struct {
	Provider     string        `yaml:"provider"`
	Endpoints    []string      `yaml:"endpoints"`
	MaxResults   int           `yaml:"max_results"`
	EnrichPages  int           `yaml:"enrich_pages"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
	MaxRetries   int           `yaml:"max_retries"`
	FinancialTTL time.Duration `yaml:"financial_ttl"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

type TelemetryConfig struct {
	Prometheus   bool `yaml:"prometheus"`
	StdoutTraces bool `yaml:"stdout_traces"`
}

// APIKeys are the external service credentials.
type APIKeys struct {
	OpenAI    string `yaml:"OpenAI"`
	Anthropic string `yaml:"Anthropic"`
	Tavily    string `yaml:"Tavily"`
	Polygon   string `yaml:"Polygon"`
}

type credentialsFile struct {
	APIKeys APIKeys `yaml:"API_Keys"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var config Config
	config.applyDefaults()
	return config
}

// Load reads path (skipped when empty), overlays the environment and fills
// defaults. A missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	var config Config
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if config.CredentialsFile != "" {
		keys, err := LoadCredentials(config.CredentialsFile)
		if err != nil {
			return Config{}, err
		}
		config.Credentials = keys.merge(config.Credentials)
	}

	config.applyDefaults()
	return config, config.Validate()
}

// LoadCredentials reads an API_Keys credentials file.
func LoadCredentials(path string) (APIKeys, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied credentials path
	if err != nil {
		return APIKeys{}, fmt.Errorf("error reading credentials file: %w", err)
	}
	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return APIKeys{}, fmt.Errorf("error parsing credentials file %s: %w", path, err)
	}
	return file.APIKeys, nil
}

// merge returns keys with every non-empty field of override applied.
func (keys APIKeys) merge(override APIKeys) APIKeys {
	if override.OpenAI != "" {
		keys.OpenAI = override.OpenAI
	}
	if override.Anthropic != "" {
		keys.Anthropic = override.Anthropic
	}
	if override.Tavily != "" {
		keys.Tavily = override.Tavily
	}
	if override.Polygon != "" {
		keys.Polygon = override.Polygon
	}
	return keys
}

func (config *Config) applyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, target *string) {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}
	var errs []error
	setInt := func(key string, target *int) {
		if value, ok := lookup(key); ok && value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}
	setDuration := func(key string, target *time.Duration) {
		if value, ok := lookup(key); ok && value != "" {
			parsed, err := time.ParseDuration(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}
	setBool := func(key string, target *bool) {
		if value, ok := lookup(key); ok && value != "" {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}

	setString("STRATVITHOR_ADDR", &config.Server.Address)
	setString("STRATVITHOR_DEFINITIONS_DIR", &config.Definitions.Directory)
	setBool("STRATVITHOR_DEFINITIONS_WATCH", &config.Definitions.Watch)
	setInt("STRATVITHOR_MAX_CONCURRENCY", &config.Engine.MaxConcurrency)
	setString("STRATVITHOR_LIMITER_MODE", &config.Engine.LimiterMode)
	setDuration("STRATVITHOR_NODE_TIMEOUT", &config.Engine.NodeTimeout)
	setDuration("STRATVITHOR_TASK_TTL", &config.Engine.TaskTTL)
	setDuration("STRATVITHOR_MOCK_LATENCY", &config.Engine.MockLatency)
	setString("STRATVITHOR_STORE", &config.Store.Driver)
	setString("DATABASE_URL", &config.Store.PostgresDSN)
	setString("STRATVITHOR_POSTGRES_DSN", &config.Store.PostgresDSN)
	setString("STRATVITHOR_BADGER_PATH", &config.Store.BadgerPath)
	setString("STRATVITHOR_SEARCH_PROVIDER", &config.Search.Provider)
	setInt("STRATVITHOR_SEARCH_MAX_RESULTS", &config.Search.MaxResults)
	setString("STRATVITHOR_LLM_PROVIDER", &config.LLM.Provider)
	setString("STRATVITHOR_LLM_MODEL", &config.LLM.Model)
	setString("STRATVITHOR_LLM_BASE_URL", &config.LLM.BaseURL)
	setBool("STRATVITHOR_PROMETHEUS", &config.Telemetry.Prometheus)
	setBool("STRATVITHOR_STDOUT_TRACES", &config.Telemetry.StdoutTraces)
	setString("STRATVITHOR_CREDENTIALS_FILE", &config.CredentialsFile)
	setString("OPENAI_API_KEY", &config.Credentials.OpenAI)
	setString("ANTHROPIC_API_KEY", &config.Credentials.Anthropic)
	setString("TAVILY_API_KEY", &config.Credentials.Tavily)
	setString("POLYGON_API_KEY", &config.Credentials.Polygon)

	if value, ok := lookup("STRATVITHOR_SEARCH_ENDPOINTS"); ok && value != "" {
		config.Search.Endpoints = splitList(value)
	}
	if value, ok := lookup("STRATVITHOR_ALLOWED_ORIGINS"); ok && value != "" {
		config.Server.AllowedOrigins = splitList(value)
	}

	switch config.LLM.Provider {
	case LLMOpenAI, LLMAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", config.LLM.Provider))
	}
	return errors.Join(errs...)
}

func splitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (config *Config) applyDefaults() {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}
	if config.Definitions.Directory == "" {
		config.Definitions.Directory = "definitions"
	}
	if config.Engine.MaxConcurrency == 0 {
		config.Engine.MaxConcurrency = 4
	}
	if config.Engine.LimiterMode == "" {
		config.Engine.LimiterMode = "global"
	}
	if config.Engine.MoldTimeout == 0 {
		config.Engine.MoldTimeout = 2 * time.Minute
	}
	if config.Engine.TaskTTL == 0 {
		config.Engine.TaskTTL = time.Hour
	}
	if config.Engine.EvictionInterval == 0 {
		config.Engine.EvictionInterval = time.Minute
	}
	if config.Store.Driver == "" {
		config.Store.Driver = StoreMemory
	}
	if config.Store.Table == "" {
		config.Store.Table = "stratvithor_saved_tasks"
	}
	if config.Store.BadgerPath == "" {
		config.Store.BadgerPath = "data/badger"
	}
	if config.Search.Provider == "" {
		config.Search.Provider = SearchTavily
	}
	if config.Search.MaxResults == 0 {
		config.Search.MaxResults = 5
	}
	if config.Search.FetchTimeout == 0 {
		config.Search.FetchTimeout = 30 * time.Second
	}
	if config.Search.RateLimit == 0 {
		config.Search.RateLimit = 5
	}
	if config.Search.RateBurst == 0 {
		config.Search.RateBurst = 1
	}
	if config.Search.MaxRetries == 0 {
		config.Search.MaxRetries = 3
	}
	if config.Search.FinancialTTL == 0 {
		config.Search.FinancialTTL = 15 * time.Minute
	}
	if config.LLM.Provider == "" {
		config.LLM.Provider = LLMOpenAI
	}
}

// Validate rejects settings no component can run with.
func (config *Config) Validate() error {
	var errs []error
	if config.Engine.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("engine.max_concurrency must be at least 1, got %d", config.Engine.MaxConcurrency))
	}
	switch config.Engine.LimiterMode {
	case "global", "per_task":
	default:
		errs = append(errs, fmt.Errorf("engine.limiter_mode must be global or per_task, got %q", config.Engine.LimiterMode))
	}
	switch config.Store.Driver {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if config.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", config.Store.Driver))
	}
	switch config.Search.Provider {
	case SearchTavily:
	case SearchWebSearch:
		if len(config.Search.Endpoints) == 0 {
			errs = append(errs, errors.New("search.endpoints is required for the websearch provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q", config.Search.Provider))
	}
	switch config.LLM.Provider {
	case LLMOpenAI, LLMAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", config.LLM.Provider))
	}
	return errors.Join(errs...)
}
