package indexstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

type flatRow struct {
	ChunkID    string          `json:"chunk_id"`
	Text       string          `json:"text"`
	Product    *string         `json:"product,omitempty"`
	OriginalID json.RawMessage `json:"original_id,omitempty"`
}

type nestedRow struct {
	ID   json.RawMessage `json:"id"`
	Text string          `json:"text"`
	Meta map[string]any  `json:"meta"`
}

// Entry is one metadata row as written by the builders.
type Entry struct {
	ChunkID    string
	Text       string
	Product    string
	OriginalID string
	// Meta carries extra nested-layout fields such as company or issue.
	Meta map[string]string
}

// readMetadata streams a JSON array of rows in the given layout into normalized entries.
func readMetadata(r io.Reader, layout domain.MetadataLayout) ([]domain.ChunkMeta, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(r, 1<<20))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read metadata start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("metadata must be a json array")
	}

	out := make([]domain.ChunkMeta, 0, 1024)
	for dec.More() {
		var meta domain.ChunkMeta
		switch layout {
		case domain.LayoutNested:
			var row nestedRow
			if err := dec.Decode(&row); err != nil {
				return nil, fmt.Errorf("decode metadata row %d: %w", len(out), err)
			}
			meta = domain.ChunkMeta{
				ChunkID: rawID(row.ID),
				Text:    row.Text,
				Product: productFromMeta(row.Meta),
			}
		default:
			var row flatRow
			if err := dec.Decode(&row); err != nil {
				return nil, fmt.Errorf("decode metadata row %d: %w", len(out), err)
			}
			product := domain.MissingProduct
			if row.Product != nil {
				product = *row.Product
			}
			meta = domain.ChunkMeta{
				ChunkID: row.ChunkID,
				Text:    row.Text,
				Product: product,
			}
		}
		out = append(out, meta)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read metadata end: %w", err)
	}
	return out, nil
}

// writeMetadata writes entries in the given layout, one array element at a time.
func writeMetadata(w io.Writer, layout domain.MetadataLayout, entries []Entry) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	if _, err := bw.WriteString("["); err != nil {
		return err
	}
	for i, e := range entries {
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		var row any
		switch layout {
		case domain.LayoutNested:
			meta := make(map[string]any, len(e.Meta)+1)
			for k, v := range e.Meta {
				meta[k] = v
			}
			meta["product"] = e.Product
			id, _ := json.Marshal(e.ChunkID)
			row = nestedRow{ID: id, Text: e.Text, Meta: meta}
		default:
			product := e.Product
			fr := flatRow{ChunkID: e.ChunkID, Text: e.Text, Product: &product}
			if e.OriginalID != "" {
				fr.OriginalID, _ = json.Marshal(e.OriginalID)
			}
			row = fr
		}
		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode metadata row %d: %w", i, err)
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("]"); err != nil {
		return err
	}
	return bw.Flush()
}

// rawID renders a string or numeric id without JSON quoting.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func productFromMeta(meta map[string]any) string {
	v, ok := meta["product"]
	if !ok || v == nil {
		return domain.MissingProduct
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
