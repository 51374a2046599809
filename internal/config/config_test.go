package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8001}}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.OpenAI.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("embedding model default = %q", cfg.OpenAI.EmbeddingModel)
	}
	if cfg.OpenAI.ChatModel != "gpt-5-nano" {
		t.Errorf("chat model default = %q", cfg.OpenAI.ChatModel)
	}
	if cfg.OpenAI.TimeoutSec != 60 {
		t.Errorf("timeout default = %d", cfg.OpenAI.TimeoutSec)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("topk default = %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.Threshold() != 0.30 {
		t.Errorf("threshold default = %g", cfg.Retrieval.Threshold())
	}
	if cfg.Retrieval.RerankK != 2 {
		t.Errorf("rerank_k default = %d", cfg.Retrieval.RerankK)
	}
	if cfg.Turns.DBPath != "data/logs.db" {
		t.Errorf("turns db path default = %q", cfg.Turns.DBPath)
	}
}

func TestApplyDefaults_ExplicitZeroThreshold(t *testing.T) {
	zero := 0.0
	cfg := Config{HTTP: HTTPConfig{Port: 8001}}
	cfg.Retrieval.ScoreThreshold = &zero
	cfg.ApplyDefaults()

	if cfg.Retrieval.Threshold() != 0 {
		t.Errorf("explicit zero threshold overwritten to %g", cfg.Retrieval.Threshold())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero threshold should validate: %v", err)
	}
}

func TestValidate_PortRange(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := validConfig()
	high := 1.5
	cfg.Retrieval.ScoreThreshold = &high
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for threshold outside [-1, 1]")
	}
	if !strings.Contains(err.Error(), "score_threshold") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidate_RerankKExceedsTopK(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.RerankK = 10
	cfg.Retrieval.TopK = 4
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when rerank_k > topk")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FAQBOT_TEST_KEY", "sk-secret")

	in := []byte("api_key: ${FAQBOT_TEST_KEY}\nbase_url: ${FAQBOT_TEST_URL:-https://api.openai.com/v1}\n")
	out := string(expandEnvVars(in))

	if !strings.Contains(out, "api_key: sk-secret") {
		t.Errorf("env var not expanded: %s", out)
	}
	if !strings.Contains(out, "base_url: https://api.openai.com/v1") {
		t.Errorf("default not applied: %s", out)
	}
}

func TestCacheConfig_Enabled(t *testing.T) {
	if (CacheConfig{}).Enabled() {
		t.Error("empty cache config should be disabled")
	}
	if !(CacheConfig{Addrs: []string{"localhost:6379"}}).Enabled() {
		t.Error("cache config with addrs should be enabled")
	}
}
