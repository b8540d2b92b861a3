package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	MatchedURLsHeader   = "Matched PR URLs"
	UnmatchedURLsHeader = "Unmatched PR URLs"
)

// WriteURLList writes a single-column CSV with the given header.
func WriteURLList(w io.Writer, header string, urls []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{header}); err != nil {
		return err
	}
	for _, u := range urls {
		if err := cw.Write([]string{u}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadColumn returns the values of the named column of a headed CSV. Empty cells
// are skipped.
func ReadColumn(r io.Reader, column string) ([]string, error) {
	rows, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, row := range rows {
		v, ok := row[column]
		if !ok {
			return nil, fmt.Errorf("column %q not found", column)
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// ReadTable reads a headed CSV into one map per row.
func ReadTable(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadColumnFile is ReadColumn over a file path.
func ReadColumnFile(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	values, err := ReadColumn(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}
