package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header row plus string cells, as read from a spreadsheet export.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string

	index map[string]int
}

var ErrEmptyTable = errors.New("table has no header row")

// New builds a table from already-parsed cells.
func New(name string, headers []string, rows [][]string) *Table {
	return &Table{
		Name:    name,
		Headers: headers,
		Rows:    rows,
		index:   normalizeHeaders(headers),
	}
}

// Load reads a .csv or .xlsx file. For workbooks an empty sheet name selects
// the first sheet.
func Load(path string, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, sheet)
	default:
		return LoadCSV(path)
	}
}

func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(filepath.Base(path), file)
}

func ReadCSV(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", name, ErrEmptyTable)
		}
		return nil, fmt.Errorf("%s: unable to read header: %w", name, err)
	}
	headers = trimBOM(headers)

	rows := [][]string{}
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: unable to read CSV: %w", name, err)
		}
		if blankRow(record) {
			continue
		}
		rows = append(rows, record)
	}
	return New(name, headers, rows), nil
}

func LoadXLSX(path string, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open workbook: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return readWorkbook(filepath.Base(path), f, sheet)
}

func readWorkbook(name string, f *excelize.File, sheet string) (*Table, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrEmptyTable)
		}
		sheet = sheets[0]
	}

	r, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read sheet %q: %w", name, sheet, err)
	}
	defer r.Close()

	var headers []string
	rows := [][]string{}
	for r.Next() {
		vals, err := r.Columns()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read sheet %q: %w", name, sheet, err)
		}
		if headers == nil {
			if blankRow(vals) {
				continue
			}
			headers = vals
			continue
		}
		if blankRow(vals) {
			continue
		}
		rows = append(rows, vals)
	}
	if headers == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}
	return New(name, headers, rows), nil
}

// Column returns the index of the first header matching any of names.
func (t *Table) Column(names ...string) (int, bool) {
	if t.index == nil {
		t.index = normalizeHeaders(t.Headers)
	}
	for _, name := range names {
		if idx, ok := t.index[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

// Value returns the trimmed cell, or "" when the row is short.
func Value(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func blankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	return headers
}
