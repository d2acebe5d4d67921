package config

import (
	"testing"
	"time"
)

func TestFromEnvRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := FromEnv(); err == nil {
		t.Error("expected error without OPENAI_API_KEY")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("CHAT_MODEL", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("TOP_K", "")
	t.Setenv("MEMORY_WINDOW", "")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("KB_BACKEND", "")
	t.Setenv("OPENAI_TIMEOUT_SECS", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.EmbeddingModel != "text-embedding-3-large" {
		t.Errorf("unexpected embedding model default: %q", cfg.EmbeddingModel)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("unexpected chat model default: %q", cfg.ChatModel)
	}
	if cfg.ChunkSize != 800 || cfg.TopK != 4 || cfg.MemoryWindow != 6 {
		t.Errorf("unexpected numeric defaults: %+v", cfg)
	}
	if cfg.ServerAddr != ":8000" {
		t.Errorf("unexpected server addr default: %q", cfg.ServerAddr)
	}
	if cfg.KBBackend != "file" {
		t.Errorf("unexpected backend default: %q", cfg.KBBackend)
	}
	if cfg.OpenAITimeout != 60*time.Second {
		t.Errorf("unexpected timeout default: %v", cfg.OpenAITimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHAT_MODEL", "gpt-4o")
	t.Setenv("TOP_K", "8")
	t.Setenv("KB_BACKEND", "postgres")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ChatModel != "gpt-4o" || cfg.TopK != 8 || cfg.KBBackend != "postgres" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestFromEnvBadIntFallsBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TOP_K", "many")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.TopK != 4 {
		t.Errorf("expected default on unparsable int, got %d", cfg.TopK)
	}
}
