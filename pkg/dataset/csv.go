package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	herrors "github.com/matzehuels/harvest/pkg/errors"
)

// ReadCSV parses a CSV with Area, Element, Year and Value headers. Header
// matching ignores case, and extra columns such as FAOSTAT's codes and
// flags are skipped.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrCodeInvalidFormat, err, "read csv header")
	}
	cols, ok := findColumns(header)
	if !ok {
		return nil, herrors.New(herrors.ErrCodeInvalidFormat, "csv header %v lacks Area, Element, Year or Value", header)
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			// A broken row is just a malformed record.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		out = append(out, cols.record(row))
	}
	return out, nil
}
