package indexstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

// Build describes one generation to be written.
type Build struct {
	Generation domain.IndexGeneration
	Encoder    domain.EncoderIdentity
	Dimension  int
	Vectors    []float32
	Entries    []Entry
}

// Write persists a generation into dir. Each file is written to a temporary
// name and renamed, so readers never observe a partial file.
func Write(dir string, b Build) (Paths, error) {
	if b.Dimension <= 0 {
		return Paths{}, domain.WrapError(domain.ErrInvalidInput, "write index", fmt.Errorf("dimension must be positive"))
	}
	if len(b.Vectors)%b.Dimension != 0 {
		return Paths{}, domain.WrapError(domain.ErrInvalidInput, "write index", fmt.Errorf("vectors are not a multiple of dimension %d", b.Dimension))
	}
	count := len(b.Vectors) / b.Dimension
	if count != len(b.Entries) {
		return Paths{}, domain.WrapError(domain.ErrIndexCorrupt, "write index", fmt.Errorf("%d vectors, %d metadata entries", count, len(b.Entries)))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create index dir: %w", err)
	}

	paths := PathsFor(dir, b.Generation)
	layout := b.Generation.Layout()

	if err := writeAtomic(paths.Vectors, func(w io.Writer) error {
		return writeBlob(w, b.Dimension, b.Vectors)
	}); err != nil {
		return Paths{}, err
	}
	if err := writeAtomic(paths.Metadata, func(w io.Writer) error {
		return writeMetadata(w, layout, b.Entries)
	}); err != nil {
		return Paths{}, err
	}

	encoder := b.Encoder
	encoder.Dimension = b.Dimension
	manifest, err := marshalManifest(domain.IndexManifest{
		Generation:    b.Generation,
		Layout:        layout,
		Encoder:       encoder,
		VectorCount:   count,
		MetadataCount: len(b.Entries),
		Metric:        metricL2Sq,
		BuiltAt:       time.Now().UTC(),
	})
	if err != nil {
		return Paths{}, err
	}
	if err := writeAtomic(paths.Manifest, func(w io.Writer) error {
		_, err := w.Write(manifest)
		return err
	}); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DirWriter writes flat-layout generations built from chunk records into one directory.
type DirWriter struct {
	Dir string
}

func NewDirWriter(dir string) *DirWriter {
	return &DirWriter{Dir: dir}
}

func (w *DirWriter) WriteIndex(
	ctx context.Context,
	gen domain.IndexGeneration,
	encoder domain.EncoderIdentity,
	vectors [][]float32,
	chunks []domain.ChunkRecord,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dim := encoder.Dimension
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	flat := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return domain.WrapError(domain.ErrInvalidInput, "write index", fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim))
		}
		flat = append(flat, v...)
	}
	entries := make([]Entry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, Entry{
			ChunkID:    c.ChunkID,
			Text:       c.Text,
			Product:    c.Product,
			OriginalID: c.OriginalID,
		})
	}
	paths, err := Write(w.Dir, Build{
		Generation: gen,
		Encoder:    encoder,
		Dimension:  dim,
		Vectors:    flat,
		Entries:    entries,
	})
	if err != nil {
		return err
	}
	slog.Info("index_written", "generation", gen, "vectors", len(vectors), "path", paths.Vectors)
	return nil
}
