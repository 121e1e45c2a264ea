package corpus

import (
	"fmt"
	"iter"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

// ReadXLSX streams complaints from a workbook sheet. An empty sheet name selects the first sheet.
// The first non-empty row is the header.
func ReadXLSX(path, sheet string) iter.Seq2[domain.Complaint, error] {
	return func(yield func(domain.Complaint, error) bool) {
		f, err := excelize.OpenFile(path)
		if err != nil {
			yield(domain.Complaint{}, fmt.Errorf("open workbook: %w", err))
			return
		}
		defer f.Close()

		if sheet == "" {
			sheets := f.GetSheetList()
			if len(sheets) == 0 {
				yield(domain.Complaint{}, domain.WrapError(domain.ErrInvalidInput, "open workbook", fmt.Errorf("%s has no sheets", path)))
				return
			}
			sheet = sheets[0]
		}

		rows, err := f.Rows(sheet)
		if err != nil {
			yield(domain.Complaint{}, fmt.Errorf("read sheet %s: %w", sheet, err))
			return
		}
		defer rows.Close()

		var idx *columnIndex
		for rows.Next() {
			record, err := rows.Columns()
			if err != nil {
				yield(domain.Complaint{}, fmt.Errorf("read sheet row: %w", err))
				return
			}
			if idx == nil {
				if len(record) == 0 {
					continue
				}
				header, err := newColumnIndex(record)
				if err != nil {
					yield(domain.Complaint{}, err)
					return
				}
				idx = &header
				continue
			}
			if len(record) == 0 {
				continue
			}
			if !yield(idx.complaint(record), nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(domain.Complaint{}, fmt.Errorf("iterate sheet rows: %w", err))
			return
		}
		if idx == nil {
			yield(domain.Complaint{}, domain.WrapError(domain.ErrInvalidInput, "read complaint header", fmt.Errorf("sheet %s is empty", sheet)))
		}
	}
}
