package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const maxLineBytes = 16 << 20

// ChunkWriter appends chunk records as JSON lines.
type ChunkWriter struct {
	bw  *bufio.Writer
	enc *json.Encoder
	n   int
}

func NewChunkWriter(w io.Writer) *ChunkWriter {
	bw := bufio.NewWriterSize(w, 1<<20)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &ChunkWriter{bw: bw, enc: enc}
}

func (w *ChunkWriter) WriteChunk(rec domain.ChunkRecord) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode chunk %s: %w", rec.ChunkID, err)
	}
	w.n++
	return nil
}

func (w *ChunkWriter) Count() int { return w.n }

func (w *ChunkWriter) Flush() error {
	return w.bw.Flush()
}

// ReadChunks streams chunk records from JSON lines. Blank lines are skipped.
func ReadChunks(r io.Reader) iter.Seq2[domain.ChunkRecord, error] {
	return func(yield func(domain.ChunkRecord, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		line := 0
		for sc.Scan() {
			line++
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}
			var rec domain.ChunkRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				yield(domain.ChunkRecord{}, domain.WrapError(domain.ErrInvalidInput, "decode chunk line", fmt.Errorf("line %d: %w", line, err)))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(domain.ChunkRecord{}, fmt.Errorf("scan chunk lines: %w", err))
		}
	}
}

// LoadChunks reads a whole JSONL chunk file into memory.
func LoadChunks(path string) ([]domain.ChunkRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks file: %w", err)
	}
	defer f.Close()

	var out []domain.ChunkRecord
	for rec, err := range ReadChunks(f) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
