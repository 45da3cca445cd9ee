package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the retrieval engine configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Execution ExecutionConfig `yaml:"execution"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Features  FeaturesConfig  `yaml:"features"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Schemas   []SchemaConfig  `yaml:"schemas"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// CacheConfig holds content cache settings.
type CacheConfig struct {
	Path            string `yaml:"path"`
	SweepIntervalMS int    `yaml:"sweep_interval_ms"`
	Compress        bool   `yaml:"compress"`
}

// ExecutionConfig holds extraction job settings.
type ExecutionConfig struct {
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
	JobHistory int `yaml:"job_history"`
	JobTTLSec  int `yaml:"job_ttl_sec"`
}

// EmbeddingConfig holds text embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
}

// VectorizerConfig binds a provider model. Fields reference vectorizers by name.
type VectorizerConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
	// MaxInputRunes truncates input text before embedding; 0 keeps it whole.
	MaxInputRunes int `yaml:"max_input_runes"`
	CacheTTLSec   int `yaml:"cache_ttl_sec"` // 0 disables the embedding cache
	// CacheEntries bounds the in-process tier in front of the database cache.
	CacheEntries int `yaml:"cache_entries"`
}

// FeaturesConfig holds the external feature server settings.
type FeaturesConfig struct {
	Host              string  `yaml:"host"`
	Port              int     `yaml:"port"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
}

// SchemaConfig declares one schema.
type SchemaConfig struct {
	Name      string           `yaml:"name"`
	Fields    []FieldConfig    `yaml:"fields"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// FieldConfig binds a field name to an analyser.
type FieldConfig struct {
	Name       string            `yaml:"name"`
	Analyser   string            `yaml:"analyser"`
	Parameters map[string]string `yaml:"parameters"`
}

// PipelineConfig declares an ingestion pipeline.
type PipelineConfig struct {
	Name        string            `yaml:"name"`
	Source      SourceConfig      `yaml:"source"`
	Decoder     DecoderConfig     `yaml:"decoder"`
	Segmenters  []SegmenterConfig `yaml:"segmenters"`
	Extractors  []ExtractorConfig `yaml:"extractors"`
	Parallelism int               `yaml:"parallelism"`
	BatchSize   int               `yaml:"batch_size"`
}

// Source kinds.
const (
	SourceFilesystem = "filesystem"
	SourceMinio      = "minio"
)

// SourceConfig selects where media is enumerated from.
type SourceConfig struct {
	Type      string `yaml:"type"` // filesystem, minio
	Path      string `yaml:"path"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DecoderConfig lists the media kinds decoded into content.
type DecoderConfig struct {
	Types []string `yaml:"types"` // IMAGE, TEXT (default: both)
}

// SegmenterConfig declares one segmenter stage.
type SegmenterConfig struct {
	Type       string            `yaml:"type"`
	Parameters map[string]string `yaml:"parameters"`
}

// ExtractorConfig runs one field's extractor.
type ExtractorConfig struct {
	Field     string `yaml:"field"`
	Transient bool   `yaml:"transient"` // derive without persisting
}

// defaultEmbeddingDimensions matches text-embedding-3-small.
const (
	defaultEmbeddingDimensions = 1536
	defaultCacheEntries        = 1024
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "archipanion:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "./cache"
	}
	if c.Cache.SweepIntervalMS <= 0 {
		c.Cache.SweepIntervalMS = 100
	}
	if c.Execution.Workers <= 0 {
		c.Execution.Workers = 2
	}
	if c.Execution.QueueSize <= 0 {
		c.Execution.QueueSize = 16
	}
	if c.Execution.JobHistory <= 0 {
		c.Execution.JobHistory = 128
	}
	if c.Execution.JobTTLSec <= 0 {
		c.Execution.JobTTLSec = 3600
	}
	if c.Features.Host == "" {
		c.Features.Host = "localhost"
	}
	if c.Features.Port <= 0 {
		c.Features.Port = 8888
	}
	if c.Features.TimeoutSec <= 0 {
		c.Features.TimeoutSec = 30
	}
	for name, v := range c.Embedding.Vectorizers {
		if v.Dimensions <= 0 {
			v.Dimensions = defaultEmbeddingDimensions
		}
		if v.CacheEntries <= 0 {
			v.CacheEntries = defaultCacheEntries
		}
		c.Embedding.Vectorizers[name] = v
	}
	for i := range c.Schemas {
		for j := range c.Schemas[i].Pipelines {
			p := &c.Schemas[i].Pipelines[j]
			if p.Source.Type == "" {
				p.Source.Type = SourceFilesystem
			}
			if len(p.Decoder.Types) == 0 {
				p.Decoder.Types = []string{"IMAGE", "TEXT"}
			}
			if p.Parallelism <= 0 {
				p.Parallelism = 1
			}
			if p.BatchSize <= 0 {
				p.BatchSize = 100
			}
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverMemory, c.Database.Driver)
	}
	for name, v := range c.Embedding.Vectorizers {
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s: unknown provider %q", name, v.Provider)
		}
		if v.Model == "" {
			return fmt.Errorf("embedding.vectorizers.%s.model is required", name)
		}
		if v.MaxInputRunes < 0 {
			return fmt.Errorf("embedding.vectorizers.%s.max_input_runes must not be negative", name)
		}
	}
	for name, p := range c.Embedding.Providers {
		if p.RequestsPerSecond < 0 {
			return fmt.Errorf("embedding.providers.%s.requests_per_second must not be negative", name)
		}
	}

	schemas := make(map[string]bool, len(c.Schemas))
	for i := range c.Schemas {
		s := &c.Schemas[i]
		if s.Name == "" {
			return fmt.Errorf("schemas[%d].name is required", i)
		}
		if schemas[s.Name] {
			return fmt.Errorf("duplicate schema %q", s.Name)
		}
		schemas[s.Name] = true
		if err := s.validate(); err != nil {
			return fmt.Errorf("schema %s: %w", s.Name, err)
		}
	}
	return nil
}

func (s *SchemaConfig) validate() error {
	fields := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" || f.Analyser == "" {
			return fmt.Errorf("fields[%d] needs a name and an analyser", i)
		}
		if fields[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		fields[f.Name] = true
	}

	pipelines := make(map[string]bool, len(s.Pipelines))
	for i := range s.Pipelines {
		p := &s.Pipelines[i]
		if p.Name == "" {
			return fmt.Errorf("pipelines[%d].name is required", i)
		}
		if pipelines[p.Name] {
			return fmt.Errorf("duplicate pipeline %q", p.Name)
		}
		pipelines[p.Name] = true
		switch p.Source.Type {
		case SourceFilesystem:
			if p.Source.Path == "" {
				return fmt.Errorf("pipeline %s: source.path is required", p.Name)
			}
		case SourceMinio:
			if p.Source.Endpoint == "" || p.Source.Bucket == "" {
				return fmt.Errorf("pipeline %s: source.endpoint and source.bucket are required", p.Name)
			}
		default:
			return fmt.Errorf("pipeline %s: unknown source type %q", p.Name, p.Source.Type)
		}
		for _, e := range p.Extractors {
			if !fields[e.Field] {
				return fmt.Errorf("pipeline %s: extractor references unknown field %q", p.Name, e.Field)
			}
		}
	}
	return nil
}

// Schema returns the named schema declaration.
func (c *Config) Schema(name string) (*SchemaConfig, bool) {
	for i := range c.Schemas {
		if c.Schemas[i].Name == name {
			return &c.Schemas[i], true
		}
	}
	return nil, false
}

// Pipeline returns the named pipeline declaration.
func (s *SchemaConfig) Pipeline(name string) (*PipelineConfig, bool) {
	for i := range s.Pipelines {
		if s.Pipelines[i].Name == name {
			return &s.Pipelines[i], true
		}
	}
	return nil, false
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
