// Package config builds the process-wide immutable configuration. It
// is constructed once in main and passed by reference into adapter and
// service constructors; nothing else reads the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every setting the benchmark service needs. Empty
// credential fields disable the corresponding provider rather than
// failing startup.
type Config struct {
	// Server
	Addr    string
	DataDir string

	// Hosted API credentials
	OpenAIAPIKey    string
	GeminiAPIKey    string
	ArkAPIKey       string
	GoogleCredsFile string

	// Local / remote runtimes
	OllamaHost       string
	WhisperRemoteURL string
	WhisperBinary    string
	WhisperModelDir  string

	// Benchmark policy
	JudgeModel      string
	PrimaryGenModel string
	NetworkPoolSize int64
	MaxRetries      int
	LocalTimeout    time.Duration
	NetworkTimeout  time.Duration
	JudgeTimeout    time.Duration
	ProbeTimeout    time.Duration
	ProbeTTL        time.Duration
}

// FromEnv reads configuration from the environment, applying defaults
// for everything optional. Call godotenv.Load first in main if a .env
// file should participate.
func FromEnv() *Config {
	return &Config{
		Addr:    envOr("BENCH_ADDR", "127.0.0.1:8080"),
		DataDir: envOr("BENCH_DATA_DIR", "data/benchmarks"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		ArkAPIKey:       os.Getenv("ARK_API_KEY"),
		GoogleCredsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		OllamaHost:       envOr("OLLAMA_HOST", "http://localhost:11434"),
		WhisperRemoteURL: os.Getenv("WHISPER_REMOTE_URL"),
		WhisperBinary:    os.Getenv("WHISPER_BINARY"),
		WhisperModelDir:  os.Getenv("WHISPER_MODEL_DIR"),

		// Empty means main derives the judge model from whichever
		// generation provider ends up backing the judge.
		JudgeModel:      os.Getenv("JUDGE_MODEL"),
		PrimaryGenModel: envOr("PRIMARY_GEN_MODEL", "gemini-pro"),
		NetworkPoolSize: envInt64("NETWORK_POOL_SIZE", 3),
		MaxRetries:      int(envInt64("DISPATCH_MAX_RETRIES", 2)),
		LocalTimeout:    envDuration("LOCAL_TIMEOUT", 10*time.Minute),
		NetworkTimeout:  envDuration("NETWORK_TIMEOUT", 2*time.Minute),
		JudgeTimeout:    envDuration("JUDGE_TIMEOUT", 90*time.Second),
		ProbeTimeout:    envDuration("PROBE_TIMEOUT", 3*time.Second),
		ProbeTTL:        envDuration("PROBE_TTL", 30*time.Second),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
