package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

type queryServiceFake struct {
	gotQuestion string
	gotProduct  string
	answer      *domain.Answer
	err         error
}

func (f *queryServiceFake) Query(_ context.Context, question, product string) (*domain.Answer, error) {
	f.gotQuestion = question
	f.gotProduct = product
	return f.answer, f.err
}

func (f *queryServiceFake) QueryStream(context.Context, string, string) (*domain.AnswerStream, error) {
	return nil, errors.New("not used")
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func TestEnterRunsQueryWithSelectedProduct(t *testing.T) {
	fake := &queryServiceFake{answer: &domain.Answer{
		Answer:          "Borrowers cite escrow errors.",
		SourceDocuments: []domain.SearchResult{{Text: "escrow shortage", Product: "Mortgage", ChunkID: "9_0", Score: 0.7}},
		SynthesisStatus: domain.SynthesisOK,
	}}
	m := sized(t, New(fake, Options{}))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.Product() != "Mortgage" {
		t.Fatalf("expected Mortgage selected, got %q", m.Product())
	}

	m.input.SetValue("escrow problems?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.busy || cmd == nil {
		t.Fatalf("expected busy model with pending command")
	}

	msg := m.ask("escrow problems?", m.Product())()
	next, _ = m.Update(msg)
	m = next.(Model)

	if fake.gotProduct != "Mortgage" || fake.gotQuestion != "escrow problems?" {
		t.Fatalf("unexpected query args: %q %q", fake.gotQuestion, fake.gotProduct)
	}
	view := m.View()
	if !strings.Contains(view, "Borrowers cite escrow errors.") || !strings.Contains(view, "escrow shortage") {
		t.Fatalf("expected answer and source in view:\n%s", view)
	}
	if m.busy {
		t.Fatalf("expected model idle after answer")
	}
}

func TestShiftTabWrapsToLastProduct(t *testing.T) {
	m := sized(t, New(&queryServiceFake{}, Options{}))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := next.(Model).Product(); got != domain.ProductOptions[len(domain.ProductOptions)-1] {
		t.Fatalf("expected wrap to last product, got %q", got)
	}
}

func TestNotReadyBannerAndNoQuery(t *testing.T) {
	m := sized(t, New(nil, Options{LoadErr: errors.New("no index generation found")}))
	m.input.SetValue("anything")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected no query command when not ready")
	}
	if view := next.(Model).View(); !strings.Contains(view, "System not ready") {
		t.Fatalf("expected not-ready banner:\n%s", view)
	}
}

func TestQueryErrorShownInStatus(t *testing.T) {
	m := sized(t, New(&queryServiceFake{}, Options{}))
	next, _ := m.Update(answerMsg{question: "q", err: domain.WrapError(domain.ErrTemporary, "embed", errors.New("ollama down"))})
	if view := next.(Model).View(); !strings.Contains(view, "ollama down") {
		t.Fatalf("expected error in status:\n%s", view)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Fatalf("truncate() = %q", got)
	}
}
