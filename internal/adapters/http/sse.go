package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

// sseWriter emits named server-sent events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) event(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

type streamSources struct {
	SourceDocuments []domain.SearchResult  `json:"source_documents"`
	SynthesisStatus domain.SynthesisStatus `json:"synthesis_status"`
}

type streamToken struct {
	Text string `json:"text"`
}

type streamDone struct {
	Answer string `json:"answer"`
}

type streamError struct {
	Error string `json:"error"`
}

// writeAnswerStream sends the evidence first, then one token event per fragment,
// then done. A failure after the headers are out becomes an error event.
// It returns the accumulated answer text.
func writeAnswerStream(w http.ResponseWriter, stream *domain.AnswerStream) (string, error) {
	sse, err := newSSEWriter(w)
	if err != nil {
		return "", err
	}

	sources := stream.SourceDocuments
	if sources == nil {
		sources = []domain.SearchResult{}
	}
	if err := sse.event("sources", streamSources{SourceDocuments: sources, SynthesisStatus: stream.SynthesisStatus}); err != nil {
		return "", err
	}

	var answer strings.Builder
	for fragment, err := range stream.Fragments {
		if err != nil {
			_ = sse.event("error", streamError{Error: err.Error()})
			return answer.String(), err
		}
		answer.WriteString(fragment)
		if err := sse.event("token", streamToken{Text: fragment}); err != nil {
			return answer.String(), err
		}
	}
	return answer.String(), sse.event("done", streamDone{Answer: answer.String()})
}
