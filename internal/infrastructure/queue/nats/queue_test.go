package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
)

func TestEventCodecRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := domain.QueryEvent{
		ID:              "evt-1",
		Question:        "why are late fees charged?",
		ProductFilter:   "Credit card",
		ResultCount:     5,
		TopScore:        0.8,
		SynthesisStatus: domain.SynthesisOK,
		DurationMS:      12.5,
		CreatedAt:       created,
	}
	payload, err := encodeEvent(in)
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	out, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at mismatch: %s != %s", out.CreatedAt, in.CreatedAt)
	}
	out.CreatedAt = in.CreatedAt
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := decodeEvent([]byte("doc-123")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for non-json payload, got %v", err)
	}
	if _, err := decodeEvent([]byte(`{"question":"q"}`)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing id, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "timeout", err: fmt.Errorf("nats publish: %w", nats.ErrTimeout), retryable: true, record: true},
		{name: "no servers", err: nats.ErrNoServers, retryable: true, record: true},
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "bad subject", err: nats.ErrBadSubject, retryable: false, record: true},
	}
	for _, tc := range cases {
		got := classifyNATSError(tc.err)
		if got != (resilience.ErrorClassification{Retryable: tc.retryable, RecordFailure: tc.record}) {
			t.Fatalf("%s: unexpected classification %+v", tc.name, got)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrConnectionClosed); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrBadSubject); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be temporary: %v", err)
	}
}
