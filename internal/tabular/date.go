package tabular

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"01-02-2006",
	"01-02-06",
	"1-2-06",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// Excel stores dates as days since 1899-12-30; anything past 9999-12-31 is
// not a date.
const maxExcelSerial = 2958465

// ParseDate accepts the formats spreadsheet exports commonly produce,
// including raw Excel serial numbers from unformatted date cells.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 1 && serial <= maxExcelSerial {
		parsed, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}

// DateOnly returns the calendar date the value names, as midnight UTC, so
// dates parsed with different offsets compare by the day written.
func DateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	y, m, d := value.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format("2006-01-02")
}
