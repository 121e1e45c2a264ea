package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const (
	ColumnComplaintID = "Complaint ID"
	ColumnProduct     = "Product"
	ColumnNarrative   = "Consumer complaint narrative"
)

// columnIndex locates the complaint columns in a header row.
type columnIndex struct {
	id, product, narrative int
}

func newColumnIndex(header []string) (columnIndex, error) {
	idx := columnIndex{id: -1, product: -1, narrative: -1}
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColumnComplaintID:
			idx.id = i
		case ColumnProduct:
			idx.product = i
		case ColumnNarrative:
			idx.narrative = i
		}
	}
	if idx.narrative < 0 {
		return idx, domain.WrapError(domain.ErrInvalidInput, "read complaint header",
			fmt.Errorf("missing %q column", ColumnNarrative))
	}
	return idx, nil
}

func (c columnIndex) complaint(record []string) domain.Complaint {
	return domain.Complaint{
		ID:        cell(record, c.id),
		Product:   cell(record, c.product),
		Narrative: cell(record, c.narrative),
	}
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

// ReadCSV streams complaints from a CSV export with a header row.
func ReadCSV(r io.Reader) iter.Seq2[domain.Complaint, error] {
	return func(yield func(domain.Complaint, error) bool) {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		cr.ReuseRecord = true

		header, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = domain.WrapError(domain.ErrInvalidInput, "read complaint header", errors.New("empty csv"))
			}
			yield(domain.Complaint{}, err)
			return
		}
		idx, err := newColumnIndex(header)
		if err != nil {
			yield(domain.Complaint{}, err)
			return
		}

		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(domain.Complaint{}, fmt.Errorf("read csv record: %w", err))
				return
			}
			if !yield(idx.complaint(record), nil) {
				return
			}
		}
	}
}

// ReadFile picks the reader by extension: .xlsx goes through excelize, anything else is CSV.
func ReadFile(path string) iter.Seq2[domain.Complaint, error] {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, "")
	}
	return func(yield func(domain.Complaint, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(domain.Complaint{}, fmt.Errorf("open complaints file: %w", err))
			return
		}
		defer f.Close()
		for c, err := range ReadCSV(f) {
			if !yield(c, err) {
				return
			}
		}
	}
}

// CleanedCSVWriter writes kept complaints back out with the export's column names.
type CleanedCSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewCleanedCSVWriter(w io.Writer) *CleanedCSVWriter {
	return &CleanedCSVWriter{w: csv.NewWriter(w)}
}

func (c *CleanedCSVWriter) WriteComplaint(complaint domain.Complaint) error {
	if !c.wroteHeader {
		if err := c.w.Write([]string{ColumnComplaintID, ColumnProduct, ColumnNarrative}); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		c.wroteHeader = true
	}
	if err := c.w.Write([]string{complaint.ID, complaint.Product, complaint.Narrative}); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	return nil
}

// Flush must be called once all complaints are written.
func (c *CleanedCSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
