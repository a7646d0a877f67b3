package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"BENCH_ADDR", "BENCH_DATA_DIR", "JUDGE_MODEL", "PRIMARY_GEN_MODEL",
		"NETWORK_POOL_SIZE", "DISPATCH_MAX_RETRIES", "NETWORK_TIMEOUT", "PROBE_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.JudgeModel != "" {
		t.Errorf("JudgeModel default = %q, want empty so main derives it from the judge provider", cfg.JudgeModel)
	}
	if cfg.PrimaryGenModel != "gemini-pro" {
		t.Errorf("PrimaryGenModel default = %q", cfg.PrimaryGenModel)
	}
	if cfg.NetworkPoolSize != 3 || cfg.MaxRetries != 2 {
		t.Errorf("dispatch defaults: pool=%d retries=%d", cfg.NetworkPoolSize, cfg.MaxRetries)
	}
	if cfg.NetworkTimeout != 2*time.Minute || cfg.LocalTimeout != 10*time.Minute {
		t.Errorf("timeout defaults: %v/%v", cfg.NetworkTimeout, cfg.LocalTimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BENCH_ADDR", "0.0.0.0:9000")
	t.Setenv("NETWORK_POOL_SIZE", "8")
	t.Setenv("DISPATCH_MAX_RETRIES", "1")
	t.Setenv("NETWORK_TIMEOUT", "30s")
	t.Setenv("JUDGE_MODEL", "gpt-4")

	cfg := FromEnv()
	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.NetworkPoolSize != 8 || cfg.MaxRetries != 1 {
		t.Errorf("pool=%d retries=%d", cfg.NetworkPoolSize, cfg.MaxRetries)
	}
	if cfg.NetworkTimeout != 30*time.Second {
		t.Errorf("NetworkTimeout = %v", cfg.NetworkTimeout)
	}
	if cfg.JudgeModel != "gpt-4" {
		t.Errorf("JudgeModel = %q", cfg.JudgeModel)
	}
}

func TestFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("NETWORK_POOL_SIZE", "many")
	t.Setenv("NETWORK_TIMEOUT", "soon")

	cfg := FromEnv()
	if cfg.NetworkPoolSize != 3 {
		t.Errorf("garbage pool size accepted: %d", cfg.NetworkPoolSize)
	}
	if cfg.NetworkTimeout != 2*time.Minute {
		t.Errorf("garbage timeout accepted: %v", cfg.NetworkTimeout)
	}
}
