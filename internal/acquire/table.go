// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Table is a parsed input table.
type Table struct {
	Records []types.Record

	// MissingColumns lists mapped column names absent from the header. Rows
	// are still returned; the affected fields are empty and those records
	// fail individually.
	MissingColumns []string
}

// ReadTableFile opens path and parses it with ReadTable.
func ReadTableFile(path string, cols types.ColumnMapping) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input table: %w", err)
	}
	defer f.Close()
	return ReadTable(f, cols)
}

// ReadTable parses delimited text with a header row into records, one per
// data row, in file order. A UTF-8 byte order mark is ignored.
func ReadTable(r io.Reader, cols types.ColumnMapping) (*Table, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = cols.Comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	t := &Table{}
	for _, name := range mappedColumns(cols) {
		if _, ok := index[name]; !ok {
			t.MissingColumns = append(t.MissingColumns, name)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if name == "" || !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for pos := 1; ; pos++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", pos, err)
		}

		rec := types.Record{Position: pos, PaperID: pos}
		if cols.ID != "" {
			raw := field(row, cols.ID)
			id, convErr := strconv.Atoi(raw)
			if convErr != nil {
				rec.Invalid = fmt.Sprintf("column %q: %q is not an integer id", cols.ID, raw)
			} else {
				rec.PaperID = id
			}
		}
		if cols.LookupMode() {
			rec.Title = field(row, cols.Title)
			rec.Authors = field(row, cols.Authors)
		} else {
			rec.DOI = field(row, cols.DOI)
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func mappedColumns(cols types.ColumnMapping) []string {
	var names []string
	if cols.ID != "" {
		names = append(names, cols.ID)
	}
	if cols.LookupMode() {
		return append(names, cols.Title, cols.Authors)
	}
	return append(names, cols.DOI)
}
