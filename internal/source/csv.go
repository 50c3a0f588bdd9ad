package source

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// decodeRows decodes a CSV payload into typed rows plus the raw
// header-to-value map per row, kept as provenance on the staged candidate.
// Headers are slugged (lowercased, spaces and slashes to underscores) so
// struct tags stay stable across cosmetic header changes.
func decodeRows[T any](data []byte) ([]T, []map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, eris.Wrap(err, "source: read csv header")
	}
	for i, col := range header {
		header[i] = slugHeader(col)
	}

	dec, err := csvutil.NewDecoder(r, header...)
	if err != nil {
		return nil, nil, eris.Wrap(err, "source: create csv decoder")
	}

	var rows []T
	var raws []map[string]string
	for {
		var row T
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, eris.Wrap(err, "source: decode csv row")
		}

		record := dec.Record()
		raw := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				raw[col] = record[i]
			}
		}

		rows = append(rows, row)
		raws = append(raws, raw)
	}

	return rows, raws, nil
}

func slugHeader(col string) string {
	col = strings.ToLower(strings.TrimSpace(col))
	col = strings.ReplaceAll(col, " ", "_")
	col = strings.ReplaceAll(col, "/", "_")
	return col
}
