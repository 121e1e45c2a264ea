package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

func setTestEnv(t *testing.T, indexDir string) {
	t.Helper()
	t.Setenv("INDEX_DIR", indexDir)
	t.Setenv("EMBED_PROVIDER", "hashing")
	t.Setenv("EMBED_DIMENSION", "32")
	t.Setenv("SYNTH_PROVIDER", "template")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("INDEX_BACKEND", "flat")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const complaintsCSV = "Complaint ID,Product,Consumer complaint narrative\n" +
	"11,Credit card,\"My card was charged an annual fee twice this year and the bank refused to refund the duplicate charge.\"\n" +
	"12,Mortgage,\"The servicer miscalculated my escrow account and raised the monthly payment without any explanation.\"\n" +
	"13,Debt collection,\"A collector keeps calling about a debt that is not mine and will not send validation letters.\"\n"

func TestPrepareBuildVerifySearchAsk(t *testing.T) {
	dir := t.TempDir()
	setTestEnv(t, filepath.Join(dir, "vector_store"))

	input := filepath.Join(dir, "complaints.csv")
	if err := os.WriteFile(input, []byte(complaintsCSV), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	chunks := filepath.Join(dir, "out", "chunks.jsonl")

	out, err := run(t, "prepare", "--json", "--input", input, "--chunks", chunks, "--cleaned", filepath.Join(dir, "out", "clean.csv"))
	if err != nil {
		t.Fatalf("prepare error = %v\n%s", err, out)
	}
	var prepared struct {
		Rows      int `json:"rows"`
		OffTarget int `json:"off_target"`
		Kept      int `json:"kept"`
		Chunks    int `json:"chunks"`
	}
	if err := json.Unmarshal([]byte(out), &prepared); err != nil {
		t.Fatalf("json.Unmarshal() error = %v\n%s", err, out)
	}
	if prepared.Rows != 3 || prepared.OffTarget != 1 || prepared.Kept != 2 || prepared.Chunks < 2 {
		t.Fatalf("unexpected prepare stats: %+v", prepared)
	}
	cleaned, err := os.ReadFile(filepath.Join(dir, "out", "clean.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(cleaned), "collector") {
		t.Fatalf("off-target complaint leaked into cleaned output:\n%s", cleaned)
	}

	if out, err := run(t, "build-index", "--chunks", chunks); err != nil {
		t.Fatalf("build-index error = %v\n%s", err, out)
	}

	out, err = run(t, "verify", "--probe", "annual fee")
	if err != nil {
		t.Fatalf("verify error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "OK") || !strings.Contains(out, "probe") {
		t.Fatalf("unexpected verify output:\n%s", out)
	}

	out, err = run(t, "search", "--json", "--product", "Credit card", "annual", "fee")
	if err != nil {
		t.Fatalf("search error = %v\n%s", err, out)
	}
	var searched struct {
		Results []domain.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &searched); err != nil {
		t.Fatalf("json.Unmarshal() error = %v\n%s", err, out)
	}
	if searched.Count == 0 {
		t.Fatalf("expected credit card results")
	}
	for _, r := range searched.Results {
		if r.Product != "Credit card" {
			t.Fatalf("filter leaked product %q", r.Product)
		}
	}

	out, err = run(t, "ask", "--json", "why are escrow payments rising?")
	if err != nil {
		t.Fatalf("ask error = %v\n%s", err, out)
	}
	var answer domain.Answer
	if err := json.Unmarshal([]byte(out), &answer); err != nil {
		t.Fatalf("json.Unmarshal() error = %v\n%s", err, out)
	}
	if answer.Answer == "" || len(answer.SourceDocuments) == 0 {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestSampleCommand(t *testing.T) {
	dir := t.TempDir()
	setTestEnv(t, dir)
	input := filepath.Join(dir, "complaints.csv")
	if err := os.WriteFile(input, []byte(complaintsCSV), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	output := filepath.Join(dir, "sample.csv")

	out, err := run(t, "sample", "--json", "--input", input, "--output", output, "--size", "2")
	if err != nil {
		t.Fatalf("sample error = %v\n%s", err, out)
	}
	if !strings.Contains(out, `"seen": 3`) || !strings.Contains(out, `"kept": 2`) {
		t.Fatalf("unexpected sample output:\n%s", out)
	}
	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(raw), "Complaint ID,Product,Consumer complaint narrative\n") {
		t.Fatalf("expected header first:\n%s", raw)
	}
}

func TestVerifyWithoutIndexFails(t *testing.T) {
	setTestEnv(t, t.TempDir())
	if _, err := run(t, "verify"); !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}

func TestAskWithoutIndexReportsNotReady(t *testing.T) {
	setTestEnv(t, t.TempDir())
	_, err := run(t, "ask", "anything")
	if err == nil || !strings.Contains(err.Error(), "system not ready") {
		t.Fatalf("expected not ready error, got %v", err)
	}
}

func TestParseGeneration(t *testing.T) {
	if gen, err := parseGeneration("full"); err != nil || gen != domain.GenerationFull {
		t.Fatalf("parseGeneration() = %q, %v", gen, err)
	}
	if _, err := parseGeneration("small"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExcerptCollapsesWhitespace(t *testing.T) {
	if got := excerpt("a  b\n c", 10); got != "a b c" {
		t.Fatalf("excerpt() = %q", got)
	}
	if got := excerpt("abcdef", 3); got != "abc..." {
		t.Fatalf("excerpt() = %q", got)
	}
}
