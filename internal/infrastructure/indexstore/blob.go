package indexstore

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	blobVersion = 1
	metricL2Sq  = "l2sq"
)

type vectorBlob struct {
	Version   int
	Metric    string
	Dimension int
	Vectors   []float32
}

func writeBlob(w io.Writer, dim int, vectors []float32) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	blob := vectorBlob{
		Version:   blobVersion,
		Metric:    metricL2Sq,
		Dimension: dim,
		Vectors:   vectors,
	}
	if err := gob.NewEncoder(enc).Encode(&blob); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode vector blob: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush zstd writer: %w", err)
	}
	return nil
}

func readBlob(r io.Reader) (vectorBlob, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return vectorBlob{}, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var blob vectorBlob
	if err := gob.NewDecoder(dec).Decode(&blob); err != nil {
		return vectorBlob{}, fmt.Errorf("decode vector blob: %w", err)
	}
	if blob.Version != blobVersion {
		return vectorBlob{}, fmt.Errorf("unsupported vector blob version %d", blob.Version)
	}
	if blob.Metric != metricL2Sq {
		return vectorBlob{}, fmt.Errorf("unsupported metric %q", blob.Metric)
	}
	return blob, nil
}
