package risk

import (
	"math"
	"strconv"
	"strings"

	"groupscholar-engagement-risk-audit/internal/tabular"
)

var progressColumns = []string{"Course Progress (%)", "course_progress", "progress"}

type StudentProgress struct {
	Username    string
	ProgressRaw string
	Fraction    float64
	WeekLabel   string
	Source      []string
}

type ProgressStats struct {
	Rows          int `json:"rows"`
	BlankUsername int `json:"blank_username"`
	Unparseable   int `json:"unparseable_progress"`
	Unassigned    int `json:"unassigned_week"`
}

// ParseProgress turns "87%", " 87 % ", "87" or 87.0 into 0.87. Anything it
// cannot read is reported as (0, false) and treated as no progress.
func ParseProgress(raw string) (float64, bool) {
	value := strings.TrimSpace(raw)
	value = strings.TrimSuffix(value, "%")
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed / 100, true
}

// WeekLabel bins fraction into right-closed intervals (edges[i], edges[i+1]],
// with the lowest bin also closed on the left. Values outside the edges get "".
func WeekLabel(fraction float64, edges []float64, labels []string) string {
	if len(edges) < 2 || len(labels) != len(edges)-1 {
		return ""
	}
	if fraction == edges[0] {
		return labels[0]
	}
	for i := 0; i < len(labels); i++ {
		if fraction > edges[i] && fraction <= edges[i+1] {
			return labels[i]
		}
	}
	return ""
}

// ProgressFromTable normalizes the self-paced export. Rows with a blank
// username are skipped.
func ProgressFromTable(source string, t *tabular.Table, cfg Config) ([]StudentProgress, ProgressStats, error) {
	stats := ProgressStats{Rows: len(t.Rows)}
	idIdx, ok := t.Column(usernameColumns...)
	if !ok {
		return nil, stats, &SchemaError{Source: source, Column: usernameColumns[0]}
	}
	progressIdx, ok := t.Column(progressColumns...)
	if !ok {
		return nil, stats, &SchemaError{Source: source, Column: progressColumns[0]}
	}

	students := make([]StudentProgress, 0, len(t.Rows))
	for _, record := range t.Rows {
		// Rows without a username stay in the cohort; they match no
		// attendance and so count zero sessions.
		username := tabular.Value(record, idIdx)
		if username == "" {
			stats.BlankUsername++
		}
		raw := tabular.Value(record, progressIdx)
		fraction, ok := ParseProgress(raw)
		if !ok {
			stats.Unparseable++
		}
		label := WeekLabel(fraction, cfg.WeekEdges, cfg.WeekLabels)
		if label == "" {
			stats.Unassigned++
		}
		students = append(students, StudentProgress{
			Username:    username,
			ProgressRaw: raw,
			Fraction:    fraction,
			WeekLabel:   label,
			Source:      append([]string(nil), record...),
		})
	}
	return students, stats, nil
}
