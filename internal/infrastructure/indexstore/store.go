// Package indexstore loads and writes the on-disk vector index generations
// that the retriever searches.
package indexstore

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/vector/flat"
)

type Options struct {
	// Encoder is the identity of the query encoder that will search this store.
	// When both it and the manifest identity are known they must agree.
	Encoder domain.EncoderIdentity
	// MetadataOnly skips the vector blob, for stores searched through a remote backend.
	MetadataOnly bool
}

// Store is an immutable, loaded index generation. It is safe for concurrent reads.
type Store struct {
	paths    Paths
	layout   domain.MetadataLayout
	index    *flat.Index
	entries  []domain.ChunkMeta
	manifest *domain.IndexManifest
}

// Open resolves and loads the preferred generation in dir.
func Open(dir string, opts Options) (*Store, error) {
	started := time.Now()
	paths, err := Resolve(dir, opts.MetadataOnly)
	if err != nil {
		return nil, err
	}

	manifest, err := readManifest(paths.Manifest)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load index manifest", err)
	}
	layout := paths.Generation.Layout()
	if manifest != nil && manifest.Layout != "" {
		layout = manifest.Layout
	}
	if manifest == nil {
		slog.Warn("index_manifest_missing", "path", paths.Manifest, "generation", paths.Generation)
	} else if !opts.Encoder.Compatible(manifest.Encoder) {
		return nil, domain.WrapError(domain.ErrEncoderMismatch, "load index", fmt.Errorf(
			"index built with %s/%s (%d dims), query encoder is %s/%s (%d dims)",
			manifest.Encoder.Provider, manifest.Encoder.Model, manifest.Encoder.Dimension,
			opts.Encoder.Provider, opts.Encoder.Model, opts.Encoder.Dimension,
		))
	}

	var index *flat.Index
	if !opts.MetadataOnly {
		index, err = loadVectors(paths.Vectors)
		if err != nil {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "load index vectors", err)
		}
	}

	entries, err := loadMetadata(paths.Metadata, layout)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load index metadata", err)
	}

	s := &Store{
		paths:    paths,
		layout:   layout,
		index:    index,
		entries:  entries,
		manifest: manifest,
	}
	slog.Info("index_loaded",
		"generation", paths.Generation,
		"layout", layout,
		"vectors", s.VectorCount(),
		"metadata", len(entries),
		"dimension", s.Dimension(),
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return s, nil
}

func loadVectors(path string) (*flat.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	blob, err := readBlob(f)
	if err != nil {
		return nil, err
	}
	return flat.New(blob.Dimension, blob.Vectors)
}

func loadMetadata(path string, layout domain.MetadataLayout) ([]domain.ChunkMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readMetadata(f, layout)
}

func (s *Store) Paths() Paths                       { return s.paths }
func (s *Store) Generation() domain.IndexGeneration { return s.paths.Generation }
func (s *Store) Layout() domain.MetadataLayout      { return s.layout }
func (s *Store) Manifest() *domain.IndexManifest    { return s.manifest }
func (s *Store) Index() *flat.Index                 { return s.index }
func (s *Store) Len() int                           { return len(s.entries) }

// VectorCount is the number of stored vectors, or the manifest count for metadata-only stores.
func (s *Store) VectorCount() int {
	if s.index != nil {
		return s.index.Len()
	}
	if s.manifest != nil {
		return s.manifest.VectorCount
	}
	return len(s.entries)
}

func (s *Store) Dimension() int {
	if s.index != nil {
		return s.index.Dimension()
	}
	if s.manifest != nil {
		return s.manifest.Encoder.Dimension
	}
	return 0
}

// Encoder returns the identity recorded at build time, zero for legacy stores.
func (s *Store) Encoder() domain.EncoderIdentity {
	if s.manifest == nil {
		return domain.EncoderIdentity{}
	}
	return s.manifest.Encoder
}

// Chunk resolves an ordinal; out-of-range ordinals and the sentinel report false.
func (s *Store) Chunk(ordinal int64) (domain.ChunkMeta, bool) {
	if ordinal < 0 || ordinal >= int64(len(s.entries)) {
		return domain.ChunkMeta{}, false
	}
	return s.entries[ordinal], true
}

// Verify checks that vectors and metadata are positionally aligned and agree with the manifest.
// It never repairs anything.
func (s *Store) Verify() (domain.IntegrityReport, error) {
	report := domain.IntegrityReport{
		Generation:    s.paths.Generation,
		Layout:        s.layout,
		VectorCount:   s.VectorCount(),
		MetadataCount: len(s.entries),
		Dimension:     s.Dimension(),
		Encoder:       s.Encoder(),
		HasManifest:   s.manifest != nil,
	}
	if report.VectorCount != report.MetadataCount {
		report.Problems = append(report.Problems, fmt.Sprintf(
			"count mismatch: %d vectors, %d metadata entries", report.VectorCount, report.MetadataCount))
	}
	if m := s.manifest; m != nil {
		if s.index != nil && m.VectorCount != s.index.Len() {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"manifest records %d vectors, blob holds %d", m.VectorCount, s.index.Len()))
		}
		if m.MetadataCount != len(s.entries) {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"manifest records %d metadata entries, file holds %d", m.MetadataCount, len(s.entries)))
		}
		if s.index != nil && m.Encoder.Dimension != 0 && m.Encoder.Dimension != s.index.Dimension() {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"manifest dimension %d, blob dimension %d", m.Encoder.Dimension, s.index.Dimension()))
		}
	}
	if !report.OK() {
		return report, domain.WrapError(domain.ErrIndexCorrupt, "verify index", fmt.Errorf("%s", report.Problems[0]))
	}
	return report, nil
}
