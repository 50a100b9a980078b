package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"groupscholar-engagement-risk-audit/internal/risk"
	"groupscholar-engagement-risk-audit/internal/tabular"
)

var derivedHeaders = []string{
	"Course Progress (Formatted)",
	"Current Week Accurate",
	"Connect Present Count",
	"Physical Present Count",
	"Overall Progress",
	"Overall Issue",
}

var SummaryHeaders = []string{"Category", "Count"}

// Meta describes the run that produced a result.
type Meta struct {
	GeneratedAt    time.Time `json:"generated_at"`
	SelfPacedFile  string    `json:"self_paced_file"`
	ConnectFile    string    `json:"connect_file"`
	PhysicalFile   string    `json:"physical_file"`
	ConnectWindow  string    `json:"connect_window"`
	PhysicalWindow string    `json:"physical_window"`
}

type Document struct {
	Meta        Meta                 `json:"meta"`
	Summary     risk.Summary         `json:"summary"`
	Students    []risk.StudentRecord `json:"students"`
	Diagnostics risk.Diagnostics     `json:"diagnostics"`
}

func NewMeta(cfg risk.Config, selfPaced, connect, physical string) Meta {
	return Meta{
		GeneratedAt:    time.Now().UTC(),
		SelfPacedFile:  selfPaced,
		ConnectFile:    connect,
		PhysicalFile:   physical,
		ConnectWindow:  cfg.ConnectWindow.String(),
		PhysicalWindow: cfg.PhysicalWindow.String(),
	}
}

// DetailHeaders is the self-paced header row followed by the derived columns.
func DetailHeaders(result risk.Result) []string {
	headers := append([]string(nil), result.Headers...)
	if len(headers) == 0 {
		headers = []string{"Username", "Course Progress (%)"}
	}
	return append(headers, derivedHeaders...)
}

func DetailRows(result risk.Result) [][]string {
	width := len(result.Headers)
	rows := make([][]string, 0, len(result.Records))
	for _, record := range result.Records {
		row := make([]string, 0, width+len(derivedHeaders))
		if width == 0 {
			row = append(row, record.Username, record.ProgressRaw)
		} else {
			for i := 0; i < width; i++ {
				row = append(row, tabular.Value(record.Source, i))
			}
		}
		row = append(row,
			strconv.FormatFloat(record.Fraction, 'f', -1, 64),
			record.WeekLabel,
			strconv.Itoa(record.ConnectCount),
			strconv.Itoa(record.PhysicalCount),
			string(record.Status),
			record.Issue,
		)
		rows = append(rows, row)
	}
	return rows
}

func SummaryRows(summary risk.Summary) [][]string {
	rows := make([][]string, 0, len(summary))
	for _, entry := range summary {
		rows = append(rows, []string{entry.Category, entry.FormatValue()})
	}
	return rows
}

func Print(w io.Writer, result risk.Result, meta Meta) {
	fmt.Fprintln(w, "Group Scholar Engagement Risk Audit")
	fmt.Fprintln(w, strings.Repeat("=", 38))
	fmt.Fprintf(w, "Self-paced: %s\n", meta.SelfPacedFile)
	fmt.Fprintf(w, "Connect: %s (window %s)\n", meta.ConnectFile, meta.ConnectWindow)
	fmt.Fprintf(w, "Physical: %s (window %s)\n", meta.PhysicalFile, meta.PhysicalWindow)

	d := result.Diagnostics
	if d.SelfPaced.BlankUsername > 0 {
		fmt.Fprintf(w, "Self-paced rows without username (kept, no attendance): %d\n", d.SelfPaced.BlankUsername)
	}
	if skipped := d.Connect.BlankUsername + d.Physical.BlankUsername; skipped > 0 {
		fmt.Fprintf(w, "Attendance rows without username skipped: %d\n", skipped)
	}
	if d.SelfPaced.Unparseable > 0 {
		fmt.Fprintf(w, "Unreadable progress values (counted as 0%%): %d\n", d.SelfPaced.Unparseable)
	}
	if invalid := d.Connect.InvalidDate + d.Physical.InvalidDate; invalid > 0 {
		fmt.Fprintf(w, "Attendance rows with unreadable dates: %d\n", invalid)
	}

	fmt.Fprintln(w, "\nDetailed student progress")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	if len(result.Records) == 0 {
		fmt.Fprintln(w, "No students found.")
	} else {
		for _, record := range result.Records {
			week := record.WeekLabel
			if week == "" {
				week = "Unassigned"
			}
			line := fmt.Sprintf("%s | %.2f%% | %s | connect %d | physical %d | %s",
				record.Username,
				record.Fraction*100,
				week,
				record.ConnectCount,
				record.PhysicalCount,
				record.Status,
			)
			if record.Issue != "" {
				line += " | " + record.Issue
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w, "\nSummary report")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	for _, entry := range result.Summary {
		fmt.Fprintf(w, "%s: %s\n", entry.Category, entry.FormatValue())
	}
}

func WriteJSON(path string, result risk.Result, meta Meta) error {
	doc := Document{
		Meta:        meta,
		Summary:     result.Summary,
		Students:    result.Records,
		Diagnostics: result.Diagnostics,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func WriteDetailsCSV(path string, result risk.Result) error {
	return writeCSV(path, DetailHeaders(result), DetailRows(result))
}

func WriteSummaryCSV(path string, summary risk.Summary) error {
	return writeCSV(path, SummaryHeaders, SummaryRows(summary))
}

// WriteAlertsCSV lists only the students flagged At Risk.
func WriteAlertsCSV(path string, result risk.Result) error {
	headers := []string{
		"username",
		"course_progress",
		"current_week",
		"connect_present_count",
		"physical_present_count",
		"overall_issue",
	}
	rows := [][]string{}
	for _, record := range result.Records {
		if record.Status != risk.StatusAtRisk {
			continue
		}
		rows = append(rows, []string{
			record.Username,
			fmt.Sprintf("%.2f", record.Fraction),
			record.WeekLabel,
			strconv.Itoa(record.ConnectCount),
			strconv.Itoa(record.PhysicalCount),
			record.Issue,
		})
	}
	return writeCSV(path, headers, rows)
}

func writeCSV(path string, headers []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
