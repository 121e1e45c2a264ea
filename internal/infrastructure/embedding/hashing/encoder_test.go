package hashing

import (
	"context"
	"math"
	"testing"
)

func TestEmbedQueryDeterministic(t *testing.T) {
	enc := New(64)
	v1, err := enc.EmbedQuery(context.Background(), "Unauthorized charges on my credit card")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	v2, _ := enc.EmbedQuery(context.Background(), "unauthorized CHARGES on my credit card!")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, v1[i], v2[i])
		}
	}
}

func TestEmbedQueryIsUnitLength(t *testing.T) {
	enc := New(128)
	v, _ := enc.EmbedQuery(context.Background(), "mortgage escrow payment was misapplied")
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
	if len(v) != 128 {
		t.Fatalf("expected dimension 128, got %d", len(v))
	}
}

func TestEmbedQueryEmptyInputIsZeroVector(t *testing.T) {
	enc := New(16)
	v, err := enc.EmbedQuery(context.Background(), "___---!!!")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %f at %d", x, i)
		}
	}
}

func TestEmbedBatchMatchesQuery(t *testing.T) {
	enc := New(32)
	batch, err := enc.Embed(context.Background(), []string{"student loan servicer", "vehicle repossession"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	single, _ := enc.EmbedQuery(context.Background(), "vehicle repossession")
	for i := range single {
		if batch[1][i] != single[i] {
			t.Fatalf("batch and query encodings differ at %d", i)
		}
	}
	if id := enc.Identity(); id.Provider != Provider || id.Dimension != 32 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestTokenizeAlphaNumUnicode(t *testing.T) {
	got := tokenizeAlphaNum("Fee: $35, Überweisung-ID 42")
	want := []string{"fee", "35", "überweisung", "id", "42"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
