package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingEndpoint = errors.New("LLM_ENDPOINT is required")
	ErrInvalidAPIType  = errors.New("LLM_API_TYPE must be 'ollama' or 'openai'")
)

// APIType selects the wire protocol spoken to the model service.
type APIType string

const (
	APITypeOllama           APIType = "ollama"
	APITypeOpenAICompatible APIType = "openai"
)

// ParseAPIType maps a configured string onto an APIType. The empty string
// is returned as-is and means "detect from the endpoint".
func ParseAPIType(v string) (APIType, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return "", nil
	case "ollama":
		return APITypeOllama, nil
	case "openai", "openai_compatible", "openai-compatible":
		return APITypeOpenAICompatible, nil
	default:
		return "", ErrInvalidAPIType
	}
}

// DetectAPIType guesses the protocol from the endpoint shape. Endpoints
// carrying a /v1 path segment are OpenAI-compatible servers; everything
// else is assumed to be Ollama.
func DetectAPIType(endpoint string) APIType {
	if strings.Contains(endpoint, "/v1") {
		return APITypeOpenAICompatible
	}
	return APITypeOllama
}

type Config struct {
	LLM    LLMConfig
	DB     DBConfig
	Redis  RedisConfig
	Worker WorkerConfig
	Server ServerConfig
	Log    LogConfig

	// ProfilesFile optionally points at a YAML file of custom profiles
	// loaded at startup.
	ProfilesFile string
}

type LLMConfig struct {
	Enabled         bool
	ActiveProfileID string
	Endpoint        string
	Model           string
	APIType         APIType
	APIKey          string
	TimeoutSeconds  int
	ProbeTimeout    time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	QueueStream string
	QueueGroup  string
	QueueBlock  time.Duration
}

type WorkerConfig struct {
	Concurrency  int
	ConsumerName string
	MaxRetries   int
}

type ServerConfig struct {
	ListenAddr  string
	HealthPath  string
	MetricsPath string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	apiType, err := ParseAPIType(mustEnv("LLM_API_TYPE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LLM: LLMConfig{
			Enabled:         mustBool("SUMMARIZATION_ENABLED", true),
			ActiveProfileID: mustEnv("ACTIVE_PROFILE_ID", "raw"),
			Endpoint:        mustEnv("LLM_ENDPOINT", "http://localhost:11434"),
			Model:           mustEnv("LLM_MODEL", "llama3.2"),
			APIType:         apiType,
			APIKey:          mustEnv("LLM_API_KEY", ""),
			TimeoutSeconds:  mustInt("LLM_TIMEOUT_SECONDS", 10),
			ProbeTimeout:    mustDuration("LLM_PROBE_TIMEOUT", 3*time.Second),
		},
		DB: DBConfig{
			Driver:      mustEnv("DB_DRIVER", "sqlite"),
			DSN:         mustEnv("DB_DSN", "voxpost.db"),
			AutoMigrate: mustBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:        mustEnv("REDIS_ADDR", ""),
			Password:    mustEnv("REDIS_PASSWORD", ""),
			DB:          mustInt("REDIS_DB", 0),
			QueueStream: mustEnv("QUEUE_STREAM", "voxpost:transcriptions"),
			QueueGroup:  mustEnv("QUEUE_GROUP", "voxpost-workers"),
			QueueBlock:  mustDuration("QUEUE_BLOCK", 5*time.Second),
		},
		Worker: WorkerConfig{
			Concurrency:  mustInt("WORKER_CONCURRENCY", 2),
			ConsumerName: mustEnv("WORKER_CONSUMER", defaultConsumerName()),
			MaxRetries:   mustInt("WORKER_MAX_RETRIES", 1),
		},
		Server: ServerConfig{
			ListenAddr:  mustEnv("HTTP_LISTEN_ADDR", ":8090"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level: mustEnv("LOG_LEVEL", "info"),
		},
		ProfilesFile: mustEnv("PROFILES_FILE", ""),
	}

	if strings.TrimSpace(cfg.LLM.Endpoint) == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.LLM.TimeoutSeconds < 1 {
		cfg.LLM.TimeoutSeconds = 10
	}
	return cfg, nil
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("voxpost-%d", os.Getpid())
	}
	return host
}

func mustEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func mustBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func mustInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func mustDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}
