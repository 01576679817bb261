package main

import (
	"strings"
	"testing"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/config"
)

func TestNewEmbedder_UnknownProviderRejected(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Embedding.Provider = "bogus"

	_, err := newEmbedder(cfg)
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the rejected provider, got %q", err.Error())
	}
}

func TestNewEmbedder_OllamaProvider(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Ollama.Model = "nomic-embed-text"

	embedder, err := newEmbedder(cfg)
	if err != nil {
		t.Fatalf("newEmbedder: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected embedder instance")
	}
}
