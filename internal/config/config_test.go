package config

import (
	"testing"
	"time"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_OVERFETCH_FACTOR", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("INDEX_STRICT_VERIFY", "")
	t.Setenv("EMBED_DIMENSION", "")

	cfg := Load()
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.RAGOverfetchFactor != 5 {
		t.Fatalf("expected default overfetch 5, got %d", cfg.RAGOverfetchFactor)
	}
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Fatalf("expected chunking 500/50, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if !cfg.IndexStrictVerify {
		t.Fatalf("expected strict verify enabled by default")
	}
	if cfg.EmbedDimension != 384 {
		t.Fatalf("expected embed dimension 384, got %d", cfg.EmbedDimension)
	}
}

func TestLoadIncludesGenerationDefaults(t *testing.T) {
	t.Setenv("GEN_MAX_TOKENS", "")
	t.Setenv("GEN_TEMPERATURE", "")
	t.Setenv("GEN_TOP_K", "")
	t.Setenv("GEN_TOP_P", "")

	cfg := Load()
	if cfg.GenMaxTokens != 256 {
		t.Fatalf("expected max tokens 256, got %d", cfg.GenMaxTokens)
	}
	if cfg.GenTemperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", cfg.GenTemperature)
	}
	if cfg.GenTopK != 50 || cfg.GenTopP != 0.95 {
		t.Fatalf("expected top_k 50 top_p 0.95, got %d %v", cfg.GenTopK, cfg.GenTopP)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("INDEX_STRICT_VERIFY", "false")
	t.Setenv("API_BACKPRESSURE_WAIT", "1s")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("SAMPLE_SEED", "7")

	cfg := Load()
	if cfg.RAGTopK != 8 {
		t.Fatalf("expected top k override, got %d", cfg.RAGTopK)
	}
	if cfg.IndexStrictVerify {
		t.Fatalf("expected strict verify disabled")
	}
	if cfg.APIBackpressureWait != time.Second {
		t.Fatalf("expected backpressure wait 1s, got %s", cfg.APIBackpressureWait)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.SampleSeed != 7 {
		t.Fatalf("expected seed 7, got %d", cfg.SampleSeed)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RAG_TOP_K", "many")
	t.Setenv("GEN_TEMPERATURE", "hot")
	t.Setenv("API_BACKPRESSURE_WAIT", "soon")

	cfg := Load()
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected fallback top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.GenTemperature != 0.7 {
		t.Fatalf("expected fallback temperature, got %v", cfg.GenTemperature)
	}
	if cfg.APIBackpressureWait != 250*time.Millisecond {
		t.Fatalf("expected fallback wait, got %s", cfg.APIBackpressureWait)
	}
}
