package risk

import (
	"errors"
	"fmt"
	"time"

	"groupscholar-engagement-risk-audit/internal/tabular"
)

// Window is an inclusive calendar-day range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains compares calendar dates as written, ignoring clock time and
// location, so an offset timestamp counts on the day it names.
func (w Window) Contains(value time.Time) bool {
	if value.IsZero() {
		return false
	}
	day := tabular.DateOnly(value)
	return !day.Before(tabular.DateOnly(w.Start)) && !day.After(tabular.DateOnly(w.End))
}

func (w Window) String() string {
	return tabular.FormatDate(w.Start) + ".." + tabular.FormatDate(w.End)
}

type Thresholds struct {
	SelfPaced float64
	Physical  int
	Connect   int
}

// Range is an inclusive integer range of counts tabulated in the summary.
type Range struct {
	Min int
	Max int
}

type Config struct {
	PresentStatus   string
	ConnectWindow   Window
	PhysicalWindow  Window
	Thresholds      Thresholds
	WeekEdges       []float64
	WeekLabels      []string
	ConnectBuckets  Range
	PhysicalBuckets Range
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func DefaultConfig() Config {
	return Config{
		PresentStatus: "Present",
		ConnectWindow: Window{
			Start: day(2025, time.February, 7),
			End:   day(2025, time.March, 22),
		},
		PhysicalWindow: Window{
			Start: day(2025, time.March, 7),
			End:   day(2025, time.March, 8),
		},
		Thresholds: Thresholds{
			SelfPaced: 0.87,
			Physical:  1,
			Connect:   5,
		},
		WeekEdges:       []float64{0, 0.56, 0.62, 0.68, 0.75, 0.81, 0.87, 0.93, 1.001},
		WeekLabels:      []string{"W-9", "W-10", "W-11", "W-12", "W-13", "W-14", "W-15", "W-16"},
		ConnectBuckets:  Range{Min: 2, Max: 7},
		PhysicalBuckets: Range{Min: 0, Max: 1},
	}
}

func (c Config) Validate() error {
	if c.PresentStatus == "" {
		return errors.New("present status is required")
	}
	for name, w := range map[string]Window{"connect": c.ConnectWindow, "physical": c.PhysicalWindow} {
		if w.Start.IsZero() || w.End.IsZero() {
			return fmt.Errorf("%s window needs a start and end date", name)
		}
		if w.End.Before(w.Start) {
			return fmt.Errorf("%s window ends before it starts", name)
		}
	}
	if len(c.WeekEdges) != len(c.WeekLabels)+1 {
		return fmt.Errorf("week edges (%d) must be one more than week labels (%d)", len(c.WeekEdges), len(c.WeekLabels))
	}
	for i := 1; i < len(c.WeekEdges); i++ {
		if c.WeekEdges[i] <= c.WeekEdges[i-1] {
			return fmt.Errorf("week edges must be strictly increasing at index %d", i)
		}
	}
	if c.ConnectBuckets.Max < c.ConnectBuckets.Min || c.PhysicalBuckets.Max < c.PhysicalBuckets.Min {
		return errors.New("summary bucket ranges must have max >= min")
	}
	return nil
}
