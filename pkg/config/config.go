// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Model, Triage, Knowledge, Postgres, Kafka, Redis,
// Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RPC       RPCConfig       `yaml:"rpc"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Model     ModelConfig     `yaml:"model"`
	Triage    TriageConfig    `yaml:"triage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// RPCConfig controls the internal JSON-over-TCP endpoint.
type RPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// CorpusConfig locates the training and held-out corpora and bounds their
// size. Rows above a threshold are subsampled to the given fraction.
type CorpusConfig struct {
	TrainPath            string   `yaml:"trainPath"`
	TestPath             string   `yaml:"testPath"`
	LabelColumn          string   `yaml:"labelColumn"`
	MissingMarkers       []string `yaml:"missingMarkers"`
	Seed                 uint64   `yaml:"seed"`
	TrainSampleThreshold int      `yaml:"trainSampleThreshold"`
	TrainSampleFraction  float64  `yaml:"trainSampleFraction"`
	TestSampleThreshold  int      `yaml:"testSampleThreshold"`
	TestSampleFraction   float64  `yaml:"testSampleFraction"`
}

// ModelConfig holds the hyperparameters of the three classifiers.
type ModelConfig struct {
	Seed              uint64  `yaml:"seed"`
	TreeMaxDepth      int     `yaml:"treeMaxDepth"`
	ForestTrees       int     `yaml:"forestTrees"`
	ForestMaxDepth    int     `yaml:"forestMaxDepth"`
	ForestMaxFeatures int     `yaml:"forestMaxFeatures"`
	MinSamplesSplit   int     `yaml:"minSamplesSplit"`
	BayesAlpha        float64 `yaml:"bayesAlpha"`
	TrainWorkers      int     `yaml:"trainWorkers"`
}

// TriageConfig controls how model outputs become candidates.
type TriageConfig struct {
	DedupeCandidates bool   `yaml:"dedupeCandidates"`
	UrgencyPolicy    string `yaml:"urgencyPolicy"`
	DefaultUrgency   string `yaml:"defaultUrgency"`
	Disclaimer       string `yaml:"disclaimer"`
}

// KnowledgeConfig selects where disease descriptions come from.
type KnowledgeConfig struct {
	Source      string        `yaml:"source"`
	Path        string        `yaml:"path"`
	Table       string        `yaml:"table"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PredictionEvents string `yaml:"predictionEvents"`
}

// RedisConfig holds Redis connection and caching parameters. OpTimeout
// bounds each cache read or write on the request path.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// AnalyticsConfig controls prediction event collection and snapshotting.
type AnalyticsConfig struct {
	BufferSize       int    `yaml:"bufferSize"`
	SnapshotSchedule string `yaml:"snapshotSchedule"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
	AllowMethods []string `yaml:"allowMethods"`
	AllowHeaders []string `yaml:"allowHeaders"`
	MaxAge       int      `yaml:"maxAge"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for the prediction pipeline.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		RPC: RPCConfig{
			Enabled: false,
			Port:    9100,
		},
		Corpus: CorpusConfig{
			TrainPath:            "data/Training.csv",
			TestPath:             "data/Testing.csv",
			LabelColumn:          "prognosis",
			MissingMarkers:       []string{"nan"},
			Seed:                 42,
			TrainSampleThreshold: 2000,
			TrainSampleFraction:  0.7,
			TestSampleThreshold:  500,
			TestSampleFraction:   0.7,
		},
		Model: ModelConfig{
			Seed:            42,
			TreeMaxDepth:    5,
			ForestTrees:     50,
			ForestMaxDepth:  5,
			MinSamplesSplit: 2,
			BayesAlpha:      1.0,
		},
		Triage: TriageConfig{
			UrgencyPolicy:  "constant",
			DefaultUrgency: "medium",
			Disclaimer:     "This is an AI-assisted diagnosis and should not replace professional medical advice.",
		},
		Knowledge: KnowledgeConfig{
			Source:      "embedded",
			Table:       "disease_knowledge",
			LoadTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "triage",
			User:            "triage",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "triage-analytics",
			Topics: KafkaTopics{
				PredictionEvents: "triage.predictions",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			CacheTTL:  10 * time.Minute,
			OpTimeout: 200 * time.Millisecond,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotSchedule: "@every 5m",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "X-Request-ID"},
			MaxAge:       86400,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	check := func(bad bool, format string, args ...any) {
		if bad {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Corpus.LabelColumn == "", "corpus.labelColumn is required")
	check(c.Corpus.TrainSampleThreshold < 0, "corpus.trainSampleThreshold must be >= 0")
	check(c.Corpus.TestSampleThreshold < 0, "corpus.testSampleThreshold must be >= 0")
	check(c.Corpus.TrainSampleFraction <= 0 || c.Corpus.TrainSampleFraction > 1,
		"corpus.trainSampleFraction must be in (0, 1], got %v", c.Corpus.TrainSampleFraction)
	check(c.Corpus.TestSampleFraction <= 0 || c.Corpus.TestSampleFraction > 1,
		"corpus.testSampleFraction must be in (0, 1], got %v", c.Corpus.TestSampleFraction)

	check(c.Model.TreeMaxDepth < 1, "model.treeMaxDepth must be >= 1")
	check(c.Model.ForestTrees < 1, "model.forestTrees must be >= 1")
	check(c.Model.ForestMaxDepth < 1, "model.forestMaxDepth must be >= 1")
	check(c.Model.ForestMaxFeatures < 0, "model.forestMaxFeatures must be >= 0")
	check(c.Model.MinSamplesSplit < 2, "model.minSamplesSplit must be >= 2")
	check(c.Model.BayesAlpha <= 0, "model.bayesAlpha must be > 0")
	check(c.Model.TrainWorkers < 0, "model.trainWorkers must be >= 0")

	switch c.Triage.UrgencyPolicy {
	case "constant", "table":
	default:
		check(true, "triage.urgencyPolicy must be constant or table, got %q", c.Triage.UrgencyPolicy)
	}
	check(c.Triage.DefaultUrgency == "", "triage.defaultUrgency is required")

	switch c.Knowledge.Source {
	case "embedded":
	case "file":
		check(c.Knowledge.Path == "", "knowledge.path is required for source=file")
	case "postgres":
		check(!c.Postgres.Enabled, "knowledge.source=postgres requires postgres.enabled")
		check(c.Knowledge.Table == "", "knowledge.table is required for source=postgres")
	default:
		check(true, "knowledge.source must be embedded, file or postgres, got %q", c.Knowledge.Source)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads TRIAGE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIAGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRIAGE_RPC_ENABLED"); v != "" {
		cfg.RPC.Enabled = parseBool(v, cfg.RPC.Enabled)
	}
	if v := os.Getenv("TRIAGE_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RPC.Port = port
		}
	}
	if v := os.Getenv("TRIAGE_CORPUS_TRAIN_PATH"); v != "" {
		cfg.Corpus.TrainPath = v
	}
	if v := os.Getenv("TRIAGE_CORPUS_TEST_PATH"); v != "" {
		cfg.Corpus.TestPath = v
	}
	if v := os.Getenv("TRIAGE_MODEL_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Model.Seed = seed
		}
	}
	if v := os.Getenv("TRIAGE_URGENCY_POLICY"); v != "" {
		cfg.Triage.UrgencyPolicy = v
	}
	if v := os.Getenv("TRIAGE_DEDUPE_CANDIDATES"); v != "" {
		cfg.Triage.DedupeCandidates = parseBool(v, cfg.Triage.DedupeCandidates)
	}
	if v := os.Getenv("TRIAGE_KNOWLEDGE_SOURCE"); v != "" {
		cfg.Knowledge.Source = v
	}
	if v := os.Getenv("TRIAGE_KNOWLEDGE_PATH"); v != "" {
		cfg.Knowledge.Path = v
	}
	if v := os.Getenv("TRIAGE_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("TRIAGE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TRIAGE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TRIAGE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TRIAGE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TRIAGE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TRIAGE_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TRIAGE_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("TRIAGE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TRIAGE_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("TRIAGE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TRIAGE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TRIAGE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRIAGE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
