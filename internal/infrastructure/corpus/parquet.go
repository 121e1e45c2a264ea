package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/indexstore"
)

const parquetReadBatch = 10000

// embeddingRow is one precomputed embedding. metadata holds a JSON object with
// product, company, issue and similar complaint fields.
type embeddingRow struct {
	ID        string    `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Document  string    `parquet:"name=document, type=BYTE_ARRAY, convertedtype=UTF8"`
	Embedding []float32 `parquet:"name=embedding, type=LIST, valuetype=FLOAT"`
	Metadata  string    `parquet:"name=metadata, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type ImportStats struct {
	Rows           int `json:"rows"`
	Dimension      int `json:"dimension"`
	MissingProduct int `json:"missing_product"`
}

// ImportParquet turns a parquet file of precomputed embeddings into the full
// generation (nested metadata layout) under dir.
func ImportParquet(ctx context.Context, path, dir string, encoder domain.EncoderIdentity) (ImportStats, error) {
	var stats ImportStats

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return stats, domain.WrapError(domain.ErrIndexNotFound, "open parquet", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(embeddingRow), 4)
	if err != nil {
		return stats, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	total := int(pr.GetNumRows())
	var (
		vectors []float32
		entries = make([]indexstore.Entry, 0, total)
	)
	for offset := 0; offset < total; offset += parquetReadBatch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rows := make([]embeddingRow, min(parquetReadBatch, total-offset))
		if err := pr.Read(&rows); err != nil {
			return stats, fmt.Errorf("read parquet rows %d-%d: %w", offset, offset+len(rows), err)
		}
		for i, row := range rows {
			if stats.Dimension == 0 {
				stats.Dimension = len(row.Embedding)
				vectors = make([]float32, 0, total*stats.Dimension)
			}
			if len(row.Embedding) == 0 || len(row.Embedding) != stats.Dimension {
				return stats, domain.WrapError(domain.ErrIndexCorrupt, "import parquet",
					fmt.Errorf("row %d has dimension %d, want %d", offset+i, len(row.Embedding), stats.Dimension))
			}
			vectors = append(vectors, row.Embedding...)

			entry, err := entryFromRow(row)
			if err != nil {
				return stats, fmt.Errorf("row %d: %w", offset+i, err)
			}
			if entry.Product == domain.MissingProduct {
				stats.MissingProduct++
			}
			entries = append(entries, entry)
		}
		slog.Debug("parquet_batch_read", "from", offset, "rows", len(rows))
	}
	stats.Rows = len(entries)
	if stats.Rows == 0 {
		return stats, domain.WrapError(domain.ErrInvalidInput, "import parquet", fmt.Errorf("%s has no rows", path))
	}

	switch {
	case encoder.Dimension == 0:
		encoder.Dimension = stats.Dimension
	case encoder.Dimension != stats.Dimension:
		return stats, domain.WrapError(domain.ErrEncoderMismatch, "import parquet",
			fmt.Errorf("embeddings have dimension %d, query encoder %s/%s has %d",
				stats.Dimension, encoder.Provider, encoder.Model, encoder.Dimension))
	}

	paths, err := indexstore.Write(dir, indexstore.Build{
		Generation: domain.GenerationFull,
		Encoder:    encoder,
		Dimension:  stats.Dimension,
		Vectors:    vectors,
		Entries:    entries,
	})
	if err != nil {
		return stats, err
	}
	slog.Info("parquet_imported",
		"rows", stats.Rows,
		"dimension", stats.Dimension,
		"missing_product", stats.MissingProduct,
		"path", paths.Vectors,
	)
	return stats, nil
}

func entryFromRow(row embeddingRow) (indexstore.Entry, error) {
	entry := indexstore.Entry{
		ChunkID: row.ID,
		Text:    row.Document,
		Product: domain.MissingProduct,
	}
	if strings.TrimSpace(row.Metadata) == "" {
		return entry, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
		return entry, domain.WrapError(domain.ErrInvalidInput, "decode parquet metadata", err)
	}
	entry.Meta = make(map[string]string, len(meta))
	for k, v := range meta {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if k == "product" {
			if s = strings.TrimSpace(s); s != "" {
				entry.Product = s
			}
			continue
		}
		entry.Meta[k] = s
	}
	return entry, nil
}
