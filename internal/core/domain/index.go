package domain

import "time"

// MetadataLayout identifies which metadata shape an index generation stores.
type MetadataLayout string

const (
	// LayoutFlat rows look like {chunk_id, text, product, original_id}.
	LayoutFlat MetadataLayout = "flat"
	// LayoutNested rows look like {id, text, meta: {product, ...}}.
	LayoutNested MetadataLayout = "nested"
)

type IndexGeneration string

const (
	GenerationFull   IndexGeneration = "full"
	GenerationMedium IndexGeneration = "medium"
)

// Layout returns the metadata layout written for a generation.
func (g IndexGeneration) Layout() MetadataLayout {
	if g == GenerationFull {
		return LayoutNested
	}
	return LayoutFlat
}

// ArtifactNames returns the vector, metadata and manifest file names of a generation.
func (g IndexGeneration) ArtifactNames() (vectors, metadata, manifest string) {
	return string(g) + "_vector.index", string(g) + "_metadata.json", string(g) + "_manifest.yaml"
}

// IndexGenerations lists generations from most to least preferred.
var IndexGenerations = []IndexGeneration{GenerationFull, GenerationMedium}

// EncoderIdentity pins the embedding model a store was built with.
type EncoderIdentity struct {
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	Dimension int    `yaml:"dimension" json:"dimension"`
}

func (e EncoderIdentity) IsZero() bool {
	return e.Provider == "" && e.Model == "" && e.Dimension == 0
}

// Compatible reports whether query vectors from other can search an index built by e.
func (e EncoderIdentity) Compatible(other EncoderIdentity) bool {
	if e.IsZero() || other.IsZero() {
		return true
	}
	return e.Provider == other.Provider && e.Model == other.Model && e.Dimension == other.Dimension
}

// IndexManifest is persisted next to an index generation.
type IndexManifest struct {
	Generation    IndexGeneration `yaml:"generation"`
	Layout        MetadataLayout  `yaml:"layout"`
	Encoder       EncoderIdentity `yaml:"encoder"`
	VectorCount   int             `yaml:"vector_count"`
	MetadataCount int             `yaml:"metadata_count"`
	Metric        string          `yaml:"metric"`
	BuiltAt       time.Time       `yaml:"built_at"`
}

// IntegrityReport summarizes a store verification.
type IntegrityReport struct {
	Generation    IndexGeneration `json:"generation"`
	Layout        MetadataLayout  `json:"layout"`
	VectorCount   int             `json:"vector_count"`
	MetadataCount int             `json:"metadata_count"`
	Dimension     int             `json:"dimension"`
	Encoder       EncoderIdentity `json:"encoder"`
	HasManifest   bool            `json:"has_manifest"`
	Problems      []string        `json:"problems,omitempty"`
}

func (r IntegrityReport) OK() bool {
	return len(r.Problems) == 0
}
