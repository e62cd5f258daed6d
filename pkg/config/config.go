// Package config loads karir settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Ollama   OllamaConfig  `yaml:"ollama"`
	Qdrant   QdrantConfig  `yaml:"qdrant"`
	Onet     OnetConfig    `yaml:"onet"`
	Minio    MinioConfig   `yaml:"minio"`
	Jurusan  JurusanConfig `yaml:"jurusan"`
	Neo4j    Neo4jConfig   `yaml:"neo4j"`
	Ingest   IngestConfig  `yaml:"ingest"`
	Query    QueryConfig   `yaml:"query"`
	Server   ServerConfig  `yaml:"server"`
	NATSURL  string        `yaml:"nats_url"`
	CacheDir string        `yaml:"cache_dir"`
	LogLevel string        `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// OllamaConfig points at the model server.
type OllamaConfig struct {
	URL        string `yaml:"url" validate:"required,url"`
	EmbedModel string `yaml:"embed_model" validate:"required"`
	EmbedDim   int    `yaml:"embed_dim" validate:"gt=0"`
	ChatModel  string `yaml:"chat_model" validate:"required"`
}

// QdrantConfig is the gRPC endpoint of the vector store.
type QdrantConfig struct {
	Addr   string `yaml:"addr" validate:"required"`
	APIKey string `yaml:"api_key"`
}

// OnetConfig selects where the O*NET text files are read from: a local
// directory or a bucket prefix.
type OnetConfig struct {
	Dir    string `yaml:"dir" validate:"required_without=Bucket"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// MinioConfig is used when Onet.Bucket is set.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// JurusanConfig configures the study-program feed.
type JurusanConfig struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	Token    string `yaml:"token"`
	Schedule string `yaml:"schedule"`
}

// Neo4jConfig enables the occupation graph when URL is set.
type Neo4jConfig struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// IngestConfig tunes the ingestion run.
type IngestConfig struct {
	EmbedInterval time.Duration `yaml:"embed_interval" validate:"gte=0"`
	Workers       int           `yaml:"workers" validate:"gte=1"`
	ProgressEvery int           `yaml:"progress_every" validate:"gte=1"`
}

// QueryConfig tunes the question-answer path.
type QueryConfig struct {
	SearchTimeout time.Duration `yaml:"search_timeout" validate:"gt=0"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port        int    `yaml:"port" validate:"gt=0,lt=65536"`
	CORSOrigin  string `yaml:"cors_origin"`
	MetricsPort int    `yaml:"metrics_port" validate:"gte=0,lt=65536"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:        "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			EmbedDim:   768,
			ChatModel:  "llama3.2:latest",
		},
		Qdrant: QdrantConfig{Addr: "localhost:6334"},
		Onet:   OnetConfig{Dir: "data/onet"},
		Jurusan: JurusanConfig{
			Schedule: "0 3 * * *",
		},
		Ingest: IngestConfig{
			EmbedInterval: 50 * time.Millisecond,
			Workers:       1,
			ProgressEvery: 100,
		},
		Query:    QueryConfig{SearchTimeout: 5 * time.Second},
		Server:   ServerConfig{Port: 8080, CORSOrigin: "*"},
		CacheDir: "data/embedcache",
		LogLevel: "info",
	}
}

var validate = validator.New()

// Load builds the configuration. path names an optional YAML file; an
// explicit path that does not exist is an error. A missing .env is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}
	e.str("OLLAMA_URL", &c.Ollama.URL)
	e.str("EMBED_MODEL", &c.Ollama.EmbedModel)
	e.integer("EMBED_DIM", &c.Ollama.EmbedDim)
	e.str("CHAT_MODEL", &c.Ollama.ChatModel)
	e.str("QDRANT_ADDR", &c.Qdrant.Addr)
	e.str("QDRANT_API_KEY", &c.Qdrant.APIKey)
	e.str("ONET_DIR", &c.Onet.Dir)
	e.str("ONET_BUCKET", &c.Onet.Bucket)
	e.str("ONET_PREFIX", &c.Onet.Prefix)
	e.str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	e.str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	e.str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	e.boolean("MINIO_USE_SSL", &c.Minio.UseSSL)
	e.str("JURUSAN_URL", &c.Jurusan.URL)
	e.str("JURUSAN_TOKEN", &c.Jurusan.Token)
	e.str("JURUSAN_SCHEDULE", &c.Jurusan.Schedule)
	e.str("NEO4J_URL", &c.Neo4j.URL)
	e.str("NEO4J_USER", &c.Neo4j.User)
	e.str("NEO4J_PASS", &c.Neo4j.Pass)
	e.str("NATS_URL", &c.NATSURL)
	e.str("CACHE_DIR", &c.CacheDir)
	e.duration("EMBED_INTERVAL", &c.Ingest.EmbedInterval)
	e.integer("INGEST_WORKERS", &c.Ingest.Workers)
	e.integer("PROGRESS_EVERY", &c.Ingest.ProgressEvery)
	e.duration("SEARCH_TIMEOUT", &c.Query.SearchTimeout)
	e.integer("PORT", &c.Server.Port)
	e.str("CORS_ORIGIN", &c.Server.CORSOrigin)
	e.integer("METRICS_PORT", &c.Server.MetricsPort)
	e.str("LOG_LEVEL", &c.LogLevel)
	c.LogLevel = strings.ToLower(c.LogLevel)
	if len(e.errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(e.errs...))
	}
	return nil
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.lookup(key); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.lookup(key); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UsesBucket reports whether O*NET files come from object storage.
func (c *Config) UsesBucket() bool { return c.Onet.Bucket != "" }
