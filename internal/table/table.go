package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// SchemaError reports a required column missing from a table.
type SchemaError struct {
	Path    string
	Column  string
	Columns []string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("column %q not found (columns = %v)", e.Column, e.Columns)
	}

	return fmt.Sprintf("column %q not found in %s (columns = %v)", e.Column, e.Path, e.Columns)
}

type Table struct {
	Path   string
	Header []string
	Rows   [][]string
}

func New(header ...string) *Table {
	return &Table{Header: slices.Clone(header)}
}

// Read loads a CSV file with a header row. Short rows are padded to the
// header width; rows wider than the header are an error.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode table (path = %s): %w", path, err)
	}
	t.Path = path

	return t, nil
}

func Decode(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("table has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	t := &Table{Header: header}
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, readErr)
		}

		if len(record) > len(header) {
			return nil, fmt.Errorf("read row %d: %d fields, header has %d", len(t.Rows)+1, len(record), len(header))
		}

		for len(record) < len(header) {
			record = append(record, "")
		}
		t.Rows = append(t.Rows, record)
	}

	return t, nil
}

// Column returns the index of name in the header.
func (t *Table) Column(name string) (int, error) {
	if i := slices.Index(t.Header, name); i >= 0 {
		return i, nil
	}

	return -1, &SchemaError{Path: t.Path, Column: name, Columns: slices.Clone(t.Header)}
}

// Require checks that every name is a column.
func (t *Table) Require(names ...string) error {
	var errs []error
	for _, name := range names {
		if _, err := t.Column(name); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// AddColumn appends a column and returns its index. An existing column of
// the same name is reused.
func (t *Table) AddColumn(name string) int {
	if i := slices.Index(t.Header, name); i >= 0 {
		return i
	}

	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}

	return len(t.Header) - 1
}

func (t *Table) Append(row ...string) {
	t.Rows = append(t.Rows, row)
}

func (t *Table) Encode(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	writer.Flush()

	return writer.Error()
}

// Write stores t at path. The file only appears once it is complete.
func Write(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = t.Encode(tmp); err != nil {
		return fmt.Errorf("encode table: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}

	return s
}
