package risk

import (
	"fmt"
	"strconv"
)

const (
	CategoryTotal          = "Total students"
	CategoryCompletionRate = "Completion rate"
)

type EntryKind string

const (
	KindCount   EntryKind = "count"
	KindPercent EntryKind = "percent"
)

type SummaryEntry struct {
	Category string    `json:"category"`
	Value    float64   `json:"value"`
	Kind     EntryKind `json:"kind"`
}

// FormatValue renders counts as integers and rates with two decimals.
func (e SummaryEntry) FormatValue() string {
	if e.Kind == KindPercent {
		return strconv.FormatFloat(e.Value, 'f', 2, 64)
	}
	return strconv.FormatInt(int64(e.Value), 10)
}

// Summary is an ordered category -> value mapping.
type Summary []SummaryEntry

func (s Summary) Lookup(category string) (float64, bool) {
	for _, entry := range s {
		if entry.Category == category {
			return entry.Value, true
		}
	}
	return 0, false
}

type summaryBuilder struct {
	entries Summary
	seen    map[string]int
}

func (b *summaryBuilder) add(category string, value float64, kind EntryKind) {
	if b.seen == nil {
		b.seen = map[string]int{}
	}
	if idx, ok := b.seen[category]; ok {
		b.entries[idx].Value = value
		b.entries[idx].Kind = kind
		return
	}
	b.seen[category] = len(b.entries)
	b.entries = append(b.entries, SummaryEntry{Category: category, Value: value, Kind: kind})
}

// Summarize tabulates the classified records. Fixed categories come first in
// a fixed order, then one entry per distinct non-empty issue in first-seen
// order. Connect and physical counts outside the configured bucket ranges are
// not tabulated.
func Summarize(records []StudentRecord, cfg Config) Summary {
	connect := map[int]int{}
	physical := map[int]int{}
	weeks := map[string]int{}
	issues := map[string]int{}
	issueOrder := []string{}
	pass, atRisk := 0, 0

	for _, record := range records {
		connect[record.ConnectCount]++
		physical[record.PhysicalCount]++
		weeks[record.WeekLabel]++
		switch record.Status {
		case StatusPass:
			pass++
		case StatusAtRisk:
			atRisk++
		}
		if record.Issue == "" {
			continue
		}
		if _, ok := issues[record.Issue]; !ok {
			issueOrder = append(issueOrder, record.Issue)
		}
		issues[record.Issue]++
	}

	b := &summaryBuilder{}
	for i := cfg.ConnectBuckets.Min; i <= cfg.ConnectBuckets.Max; i++ {
		b.add(fmt.Sprintf("Connect %d", i), float64(connect[i]), KindCount)
	}
	for i := cfg.PhysicalBuckets.Min; i <= cfg.PhysicalBuckets.Max; i++ {
		b.add(fmt.Sprintf("Physical %d", i), float64(physical[i]), KindCount)
	}
	for _, label := range cfg.WeekLabels {
		b.add(label, float64(weeks[label]), KindCount)
	}

	total := len(records)
	b.add(CategoryTotal, float64(total), KindCount)
	b.add(string(StatusPass), float64(pass), KindCount)
	b.add(string(StatusAtRisk), float64(atRisk), KindCount)
	b.add(CategoryCompletionRate, completionRate(pass, total), KindPercent)

	for _, issue := range issueOrder {
		b.add(issue, float64(issues[issue]), KindCount)
	}
	return b.entries
}

// completionRate is 0 for an empty cohort.
func completionRate(pass int, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(pass) / float64(total) * 100)
}

// round2 rounds to two decimals on the exact binary value, so ties such as
// 3.125 go to the even digit.
func round2(value float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(value, 'f', 2, 64), 64)
	if err != nil {
		return value
	}
	return rounded
}
