package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCSVSkipsBlankRows(t *testing.T) {
	path := writeFile(t, "self.csv", "Username,Course Progress (%)\n"+
		"s1,87%\n"+
		",\n"+
		"s2, 45 %\n")

	table, err := Load(path, "")
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if table.Name != "self.csv" {
		t.Fatalf("expected name self.csv, got %s", table.Name)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	idx, ok := table.Column("course_progress_(%)")
	if !ok || idx != 1 {
		t.Fatalf("expected progress column 1, got %d (%v)", idx, ok)
	}
	if got := Value(table.Rows[1], idx); got != "45 %" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestReadCSVStripsBOM(t *testing.T) {
	table, err := ReadCSV("self.csv", strings.NewReader("\ufeffUsername,Course Progress (%)\ns1,87%\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if table.Headers[0] != "Username" {
		t.Fatalf("expected BOM stripped from first header, got %q", table.Headers[0])
	}
	if idx, ok := table.Column("Username"); !ok || idx != 0 {
		t.Fatalf("expected username at 0, got %d (%v)", idx, ok)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV("empty.csv", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
}

func TestColumnAliases(t *testing.T) {
	table := New("t", []string{" user_name ", "Event-Date", "Event Attendance (Status)"}, nil)

	if idx, ok := table.Column("Username", "user name"); !ok || idx != 0 {
		t.Fatalf("expected username at 0, got %d (%v)", idx, ok)
	}
	if idx, ok := table.Column("event date"); !ok || idx != 1 {
		t.Fatalf("expected event date at 1, got %d (%v)", idx, ok)
	}
	if _, ok := table.Column("missing"); ok {
		t.Fatalf("expected missing column lookup to fail")
	}
}

func TestValueOutOfRange(t *testing.T) {
	if got := Value([]string{"a"}, 3); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
	if got := Value([]string{"a"}, -1); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestLoadXLSXMatchesCSV(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Username", "Event Date", "Event Attendance (Status)"},
		{"s1", "2025-02-07", "Present"},
		{"s2", "2025-03-22", "Absent"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "connect.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	fromXLSX, err := Load(path, "")
	if err != nil {
		t.Fatalf("load xlsx: %v", err)
	}
	fromCSV, err := ReadCSV("connect.csv", strings.NewReader(
		"Username,Event Date,Event Attendance (Status)\ns1,2025-02-07,Present\ns2,2025-03-22,Absent\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if strings.Join(fromXLSX.Headers, "|") != strings.Join(fromCSV.Headers, "|") {
		t.Fatalf("headers differ: %v vs %v", fromXLSX.Headers, fromCSV.Headers)
	}
	if len(fromXLSX.Rows) != len(fromCSV.Rows) {
		t.Fatalf("row count differs: %d vs %d", len(fromXLSX.Rows), len(fromCSV.Rows))
	}
	for i := range fromCSV.Rows {
		if strings.Join(fromXLSX.Rows[i], "|") != strings.Join(fromCSV.Rows[i], "|") {
			t.Fatalf("row %d differs: %v vs %v", i, fromXLSX.Rows[i], fromCSV.Rows[i])
		}
	}
}

func TestLoadXLSXDateFormattedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Username", "Event Date", "Event Attendance (Status)"}); err != nil {
		t.Fatalf("set header: %v", err)
	}
	dates := []time.Time{
		time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC),
	}
	for i, date := range dates {
		row := i + 2
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(row), &[]interface{}{"s1", date, "Present"}); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	// 14 is the built-in short date format (mm-dd-yy).
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	if err := f.SetCellStyle(sheet, "B2", "B3", style); err != nil {
		t.Fatalf("set style: %v", err)
	}
	path := filepath.Join(t.TempDir(), "connect.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	table, err := Load(path, "")
	if err != nil {
		t.Fatalf("load xlsx: %v", err)
	}
	idx, ok := table.Column("Event Date")
	if !ok {
		t.Fatalf("expected event date column")
	}
	if len(table.Rows) != len(dates) {
		t.Fatalf("expected %d rows, got %d", len(dates), len(table.Rows))
	}
	for i, want := range dates {
		raw := Value(table.Rows[i], idx)
		got, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("row %d: parse %q: %v", i, raw, err)
		}
		if !DateOnly(got).Equal(want) {
			t.Fatalf("row %d: %q parsed to %v, want %v", i, raw, got, want)
		}
	}
}

func TestLoadXLSXUnknownSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	if _, err := Load(path, "Nope"); err == nil {
		t.Fatalf("expected error for unknown sheet")
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{name: "iso", value: "2025-02-07", want: time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{name: "iso with time", value: "2025-03-22 18:30:00", want: time.Date(2025, 3, 22, 18, 30, 0, 0, time.UTC)},
		{name: "us padded", value: "03/08/2025", want: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)},
		{name: "us short", value: "3/7/2025", want: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)},
		{name: "us two digit year", value: "3/7/25", want: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)},
		{name: "excel short date", value: "02-07-25", want: time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{name: "excel short date unpadded", value: "3-8-25", want: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)},
		{name: "day month name", value: "07-Feb-2025", want: time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{name: "month name", value: "Feb 7, 2025", want: time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{name: "excel serial", value: "45695", want: time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{name: "empty", value: "  ", wantErr: true},
		{name: "garbage", value: "next tuesday", wantErr: true},
		{name: "serial out of range", value: "99999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDateOnly(t *testing.T) {
	value := time.Date(2025, 3, 8, 23, 59, 0, 0, time.UTC)
	if got := DateOnly(value); !got.Equal(time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date only value %v", got)
	}
	offset := time.Date(2025, 3, 8, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	if got := DateOnly(offset); !got.Equal(time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected the written day for an offset timestamp, got %v", got)
	}
	if !DateOnly(time.Time{}).IsZero() {
		t.Fatalf("zero time should stay zero")
	}
	if FormatDate(time.Time{}) != "" {
		t.Fatalf("zero time should format empty")
	}
}
