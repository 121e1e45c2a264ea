package indexstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

type Paths struct {
	Generation domain.IndexGeneration
	Vectors    string
	Metadata   string
	Manifest   string
}

func PathsFor(dir string, gen domain.IndexGeneration) Paths {
	vectors, metadata, manifest := gen.ArtifactNames()
	return Paths{
		Generation: gen,
		Vectors:    filepath.Join(dir, vectors),
		Metadata:   filepath.Join(dir, metadata),
		Manifest:   filepath.Join(dir, manifest),
	}
}

// Files returns the artifact paths that make up a generation, manifest last.
func (p Paths) Files() []string {
	return []string{p.Vectors, p.Metadata, p.Manifest}
}

// Resolve picks the first generation in dir whose required files all exist.
func Resolve(dir string, metadataOnly bool) (Paths, error) {
	for _, gen := range domain.IndexGenerations {
		p := PathsFor(dir, gen)
		if !fileExists(p.Metadata) {
			continue
		}
		if !metadataOnly && !fileExists(p.Vectors) {
			continue
		}
		return p, nil
	}
	return Paths{}, domain.WrapError(
		domain.ErrIndexNotFound,
		"resolve index",
		fmt.Errorf("no complete full or medium index pair in %s", dir),
	)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
