package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func loadForTest(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadForTest(t)

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level, got %q", cfg.LogLevel)
	}
	if cfg.Provider != "openai" {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
	if cfg.Providers["google"].Model != "gemini-2.0-flash" {
		t.Errorf("expected default google model, got %q", cfg.Providers["google"].Model)
	}
}

func TestLoad_SingleKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-1")

	cfg := loadForTest(t)

	if !reflect.DeepEqual(cfg.Providers["anthropic"].APIKeys, []string{"sk-ant-1"}) {
		t.Errorf("expected single-key pool, got %v", cfg.Providers["anthropic"].APIKeys)
	}
}

func TestLoad_KeyPoolAndOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "k1, k2 ,k3,")
	t.Setenv("OPENAI_BASE_URL", "http://proxy.internal/v1")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("PROVIDER", "openai")

	cfg := loadForTest(t)
	pc := cfg.Providers["openai"]

	if !reflect.DeepEqual(pc.APIKeys, []string{"k1", "k2", "k3"}) {
		t.Errorf("expected trimmed key pool, got %v", pc.APIKeys)
	}
	if pc.BaseURL != "http://proxy.internal/v1" {
		t.Errorf("expected base URL override, got %q", pc.BaseURL)
	}
	if pc.Model != "gpt-4o" {
		t.Errorf("expected model override, got %q", pc.Model)
	}
}

func TestLoad_PoolTakesPrecedenceOverSingleKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEYS", "p1,p2")
	t.Setenv("GOOGLE_API_KEY", "single")

	cfg := loadForTest(t)

	if !reflect.DeepEqual(cfg.Providers["google"].APIKeys, []string{"p1", "p2"}) {
		t.Errorf("expected pool to win, got %v", cfg.Providers["google"].APIKeys)
	}
}

func TestConfig_Dispatch(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEYS", "a1,a2")
	t.Setenv("PROVIDER", "anthropic")

	cfg := loadForTest(t)

	dcfg := cfg.Dispatch("")
	if dcfg.Provider != "anthropic" {
		t.Errorf("expected default provider used, got %q", dcfg.Provider)
	}
	if !reflect.DeepEqual(dcfg.APIKeys, []string{"a1", "a2"}) {
		t.Errorf("expected anthropic pool, got %v", dcfg.APIKeys)
	}

	dcfg = cfg.Dispatch("google")
	if dcfg.Provider != "google" || len(dcfg.APIKeys) != 0 {
		t.Errorf("expected empty google pool, got %+v", dcfg)
	}
}
