package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	herrors "github.com/matzehuels/harvest/pkg/errors"
)

// ReadXLSX parses the first sheet of a workbook with the same headers
// ReadCSV expects.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrCodeInvalidFormat, err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, ok := findColumns(rows[0])
	if !ok {
		return nil, herrors.New(herrors.ErrCodeInvalidFormat, "sheet %q header lacks Area, Element, Year or Value", sheets[0])
	}
	out := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, cols.record(row))
	}
	return out, nil
}
