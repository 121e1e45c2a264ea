package template

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

var evidence = []domain.SearchResult{
	{Text: strings.Repeat("a", 150), Product: "Mortgage", ChunkID: "1_0", Score: 0.9},
	{Text: "late fee charged", Product: "Credit card", ChunkID: "2_0", Score: 0.8},
	{Text: "escrow shortage", Product: "Mortgage", ChunkID: "3_0", Score: 0.7},
	{Text: "fourth excerpt", Product: "Student loan", ChunkID: "4_0", Score: 0.6},
}

func TestRenderEmptyContext(t *testing.T) {
	answer, err := New().GenerateAnswer(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != domain.NoEvidenceMessage {
		t.Fatalf("expected no-evidence message, got %q", answer)
	}
}

func TestRenderDigest(t *testing.T) {
	answer := Render("billing disputes", evidence)

	if !strings.HasPrefix(answer, "**Analysis based on 4 complaints:**\n\n") {
		t.Fatalf("unexpected header: %q", answer)
	}
	if !strings.Contains(answer, "Relevant to products: Mortgage, Credit card, Student loan\n\n") {
		t.Fatalf("expected first-seen product order: %q", answer)
	}
	if !strings.Contains(answer, "Users are reporting issues related to 'billing disputes'. \n") {
		t.Fatalf("expected query echo: %q", answer)
	}
	if !strings.Contains(answer, "- \""+strings.Repeat("a", 100)+"...\"\n") {
		t.Fatalf("expected excerpt truncated to 100 chars: %q", answer)
	}
	if strings.Contains(answer, "fourth excerpt") {
		t.Fatalf("expected at most three excerpts: %q", answer)
	}
	if !strings.HasSuffix(answer, "Connect an LLM to generate full synthesis.*") {
		t.Fatalf("expected placeholder note: %q", answer)
	}
}

func TestStreamAnswerConcatenatesToRender(t *testing.T) {
	var b strings.Builder
	fragments := 0
	for fragment, err := range New().StreamAnswer(context.Background(), "billing", evidence[:2]) {
		if err != nil {
			t.Fatalf("StreamAnswer() error = %v", err)
		}
		fragments++
		b.WriteString(fragment)
	}
	if fragments < 2 {
		t.Fatalf("expected several fragments, got %d", fragments)
	}
	if b.String() != Render("billing", evidence[:2]) {
		t.Fatalf("stream does not reproduce the rendered answer")
	}
}

func TestStreamAnswerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, err := range New().StreamAnswer(ctx, "billing", evidence) {
		if err == nil {
			t.Fatalf("expected cancellation error before any fragment")
		}
		return
	}
	t.Fatalf("expected one error fragment")
}
