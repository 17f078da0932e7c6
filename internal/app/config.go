package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/db"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/orchestrator"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/envutil"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/gcp"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/neo4jdb"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/openai"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
	"github.com/F-O-T/contentagen-nx-sub000/internal/temporalx"
)

type QueueBackend string

const (
	BackendPostgres QueueBackend = "postgres"
	BackendMemory   QueueBackend = "memory"
	BackendTemporal QueueBackend = "temporal"
)

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type QueueConfig struct {
	Backend QueueBackend `yaml:"backend"`
	// Concurrency is the pool size of every stage queue without an entry in
	// StageConcurrency.
	Concurrency      int            `yaml:"concurrency"`
	StageConcurrency map[string]int `yaml:"stage_concurrency"`
	PollInterval     time.Duration  `yaml:"poll_interval"`
	StageTimeout     time.Duration  `yaml:"stage_timeout"`
}

type PipelineConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	MinBackoff       time.Duration `yaml:"min_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	IdeaCount        int           `yaml:"idea_count"`
	// PromptsFile replaces the built-in prompt set when set.
	PromptsFile string `yaml:"prompts_file"`
}

type HTTPConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecretKey   string   `yaml:"jwt_secret_key"`
}

type Config struct {
	LogMode    string                      `yaml:"log_mode"`
	HTTP       HTTPConfig                  `yaml:"http"`
	Postgres   db.Config                   `yaml:"postgres"`
	Redis      RedisConfig                 `yaml:"redis"`
	Neo4j      neo4jdb.Config              `yaml:"neo4j"`
	Storage    gcp.Config                  `yaml:"storage"`
	OpenAI     openai.Config               `yaml:"openai"`
	Queue      QueueConfig                 `yaml:"queue"`
	Pipeline   PipelineConfig              `yaml:"pipeline"`
	Similarity similarity.Thresholds       `yaml:"similarity"`
	Temporal   temporalx.Config            `yaml:"temporal"`
	Otel       observability.OtelConfig    `yaml:"otel"`
	Metrics    observability.MetricsConfig `yaml:"metrics"`
}

func defaultConfig() Config {
	return Config{
		LogMode: "development",
		HTTP: HTTPConfig{
			Port: "8080",
		},
		Postgres: db.Config{
			Host: "localhost",
			Port: "5432",
			User: "postgres",
			Name: "contentagen",
		},
		Redis: RedisConfig{Channel: "pipeline_status"},
		OpenAI: openai.Config{
			Model:       "gpt-4o-mini",
			EmbedModel:  "text-embedding-3-small",
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
			MaxRetries:  2,
		},
		Queue: QueueConfig{
			Backend:     BackendPostgres,
			Concurrency: 4,
			StageConcurrency: map[string]int{
				pipeline.StageKnowledgeExtraction:  10,
				pipeline.StageKnowledgeStructuring: 10,
			},
			PollInterval: 2 * time.Second,
			StageTimeout: 10 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:      orchestrator.DefaultRetryPolicy().MaxAttempts,
			MinBackoff:       orchestrator.DefaultRetryPolicy().MinBackoff,
			MaxBackoff:       orchestrator.DefaultRetryPolicy().MaxBackoff,
			EmbedConcurrency: 4,
			IdeaCount:        5,
		},
		Similarity: similarity.DefaultThresholds(),
		Otel: observability.OtelConfig{
			ServiceName: "contentagen",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// LoadConfig reads the optional YAML file named by CONFIG_FILE over the
// defaults, then applies environment overrides.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)

	c.HTTP.Port = envutil.String("PORT", c.HTTP.Port)
	c.HTTP.AllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", c.HTTP.AllowedOrigins)
	c.HTTP.JWTSecretKey = envutil.String("JWT_SECRET_KEY", c.HTTP.JWTSecretKey)

	c.Postgres.Host = envutil.String("POSTGRES_HOST", c.Postgres.Host)
	c.Postgres.Port = envutil.String("POSTGRES_PORT", c.Postgres.Port)
	c.Postgres.User = envutil.String("POSTGRES_USER", c.Postgres.User)
	c.Postgres.Password = envutil.String("POSTGRES_PASSWORD", c.Postgres.Password)
	c.Postgres.Name = envutil.String("POSTGRES_NAME", c.Postgres.Name)
	c.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", c.Postgres.SSLMode)
	c.Postgres.SQLitePath = envutil.String("SQLITE_PATH", c.Postgres.SQLitePath)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Channel = envutil.String("REDIS_CHANNEL", c.Redis.Channel)

	c.Neo4j.URI = envutil.String("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.User = envutil.String("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Password = envutil.String("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = envutil.String("NEO4J_DATABASE", c.Neo4j.Database)

	c.Storage.Credentials = envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", c.Storage.Credentials)
	c.Storage.Mode = gcp.ObjectStorageMode(envutil.String("OBJECT_STORAGE_MODE", string(c.Storage.Mode)))
	c.Storage.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", c.Storage.EmulatorHost)

	c.OpenAI.APIKey = envutil.String("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = envutil.String("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.EmbedModel = envutil.String("OPENAI_EMBED_MODEL", c.OpenAI.EmbedModel)
	c.OpenAI.Temperature = envutil.Float("OPENAI_TEMPERATURE", c.OpenAI.Temperature)
	c.OpenAI.DisableTemperature = envutil.Bool("OPENAI_DISABLE_TEMPERATURE", c.OpenAI.DisableTemperature)
	c.OpenAI.Timeout = envutil.Millis("OPENAI_TIMEOUT_MS", c.OpenAI.Timeout)
	c.OpenAI.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", c.OpenAI.MaxRetries)

	c.Queue.Backend = QueueBackend(strings.ToLower(envutil.String("QUEUE_BACKEND", string(c.Queue.Backend))))
	c.Queue.Concurrency = envutil.Int("QUEUE_CONCURRENCY", c.Queue.Concurrency)
	c.Queue.PollInterval = envutil.Millis("QUEUE_POLL_INTERVAL_MS", c.Queue.PollInterval)
	if secs := envutil.Int("STAGE_TIMEOUT_SECONDS", 0); secs > 0 {
		c.Queue.StageTimeout = time.Duration(secs) * time.Second
	}
	if c.Queue.StageConcurrency == nil {
		c.Queue.StageConcurrency = map[string]int{}
	}
	for _, stage := range stageNames() {
		if n := envutil.Int("QUEUE_CONCURRENCY_"+strings.ToUpper(stage), 0); n > 0 {
			c.Queue.StageConcurrency[stage] = n
		}
	}

	c.Pipeline.MaxAttempts = envutil.Int("PIPELINE_MAX_ATTEMPTS", c.Pipeline.MaxAttempts)
	c.Pipeline.MinBackoff = envutil.Millis("PIPELINE_MIN_BACKOFF_MS", c.Pipeline.MinBackoff)
	c.Pipeline.MaxBackoff = envutil.Millis("PIPELINE_MAX_BACKOFF_MS", c.Pipeline.MaxBackoff)
	c.Pipeline.EmbedConcurrency = envutil.Int("PIPELINE_EMBED_CONCURRENCY", c.Pipeline.EmbedConcurrency)
	c.Pipeline.IdeaCount = envutil.Int("PIPELINE_IDEA_COUNT", c.Pipeline.IdeaCount)
	c.Pipeline.PromptsFile = envutil.String("PROMPTS_FILE", c.Pipeline.PromptsFile)

	c.Similarity.Duplicate = envutil.Float("SIMILARITY_DUPLICATE", c.Similarity.Duplicate)
	c.Similarity.Similar = envutil.Float("SIMILARITY_SIMILAR", c.Similarity.Similar)
	c.Similarity.Related = envutil.Float("SIMILARITY_RELATED", c.Similarity.Related)

	c.Temporal.Address = envutil.String("TEMPORAL_ADDRESS", c.Temporal.Address)
	c.Temporal.Namespace = envutil.String("TEMPORAL_NAMESPACE", c.Temporal.Namespace)
	c.Temporal.TaskQueue = envutil.String("TEMPORAL_TASK_QUEUE", c.Temporal.TaskQueue)
	c.Temporal.ClientCertPath = envutil.String("TEMPORAL_CLIENT_CERT_PATH", c.Temporal.ClientCertPath)
	c.Temporal.ClientKeyPath = envutil.String("TEMPORAL_CLIENT_KEY_PATH", c.Temporal.ClientKeyPath)
	c.Temporal.ClientCAPath = envutil.String("TEMPORAL_CLIENT_CA_PATH", c.Temporal.ClientCAPath)
	c.Temporal.AutoRegisterNamespace = envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", c.Temporal.AutoRegisterNamespace)
	c.Temporal.RetentionDays = envutil.Int("TEMPORAL_RETENTION_DAYS", c.Temporal.RetentionDays)
	c.Temporal.WorkerConcurrency = envutil.Int("TEMPORAL_WORKER_CONCURRENCY", c.Temporal.WorkerConcurrency)
	c.Temporal = c.Temporal.WithDefaults()

	c.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", c.Otel.ServiceName)
	c.Otel.Environment = envutil.String("APP_ENV", c.Otel.Environment)
	c.Otel.Version = envutil.String("APP_VERSION", c.Otel.Version)
	c.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Otel.Endpoint)
	if raw := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); raw != "" {
		c.Otel.Headers = observability.ParseHeaders(raw)
	}
	c.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Otel.Insecure)
	c.Otel.Stdout = envutil.Bool("OTEL_STDOUT", c.Otel.Stdout)
	c.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", c.Otel.SampleRatio)

	c.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", c.Metrics.Enabled)
	if secs := envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", 0); secs > 0 {
		c.Metrics.ScrapeInterval = time.Duration(secs) * time.Second
	}
}

func (c Config) Validate() error {
	switch c.Queue.Backend {
	case BackendPostgres, BackendMemory:
	case BackendTemporal:
		if strings.TrimSpace(c.Temporal.Address) == "" {
			return fmt.Errorf("config: QUEUE_BACKEND=temporal requires TEMPORAL_ADDRESS")
		}
	default:
		return fmt.Errorf("config: unknown queue backend %q", c.Queue.Backend)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("config: pipeline max attempts must be at least 1")
	}
	if c.Pipeline.MinBackoff > c.Pipeline.MaxBackoff {
		return fmt.Errorf("config: min backoff %s exceeds max backoff %s", c.Pipeline.MinBackoff, c.Pipeline.MaxBackoff)
	}
	s := c.Similarity
	if !(s.Duplicate > s.Similar && s.Similar > s.Related && s.Related > 0 && s.Duplicate <= 1) {
		return fmt.Errorf("config: similarity thresholds must satisfy 1 >= duplicate > similar > related > 0")
	}
	return nil
}

// RetryPolicy is the policy both queue backends apply.
func (c Config) RetryPolicy() orchestrator.RetryPolicy {
	p := orchestrator.DefaultRetryPolicy()
	p.MaxAttempts = c.Pipeline.MaxAttempts
	p.MinBackoff = c.Pipeline.MinBackoff
	p.MaxBackoff = c.Pipeline.MaxBackoff
	return p
}

// Concurrency sizes one pool per stage queue.
func (c Config) Concurrency() map[string]int {
	out := map[string]int{}
	for _, stage := range stageNames() {
		n := c.Queue.Concurrency
		if v, ok := c.Queue.StageConcurrency[stage]; ok && v > 0 {
			n = v
		}
		if n < 1 {
			n = 1
		}
		out[stage] = n
	}
	return out
}

func stageNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, def := range pipeline.Definitions() {
		for _, name := range def.StageNames() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
