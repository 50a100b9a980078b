package risk

import (
	"time"

	"groupscholar-engagement-risk-audit/internal/tabular"
)

var (
	usernameColumns   = []string{"Username", "user_name", "student_id", "studentid"}
	eventDateColumns  = []string{"Event Date", "event_date", "date"}
	attendanceColumns = []string{"Event Attendance (Status)", "attendance_status", "status"}
)

type AttendanceEvent struct {
	Username  string
	Date      time.Time
	DateValid bool
	Status    string
}

// AttendanceCounts maps username to qualifying events. A missing key is zero.
type AttendanceCounts map[string]int

type AttendanceStats struct {
	Rows           int `json:"rows"`
	Counted        int `json:"counted"`
	BlankUsername  int `json:"blank_username"`
	InvalidDate    int `json:"invalid_date"`
	NotPresent     int `json:"not_present"`
	OutsideWindow  int `json:"outside_window"`
	DistinctCounts int `json:"students_counted"`
}

// EventsFromTable maps an attendance export onto events. Unparseable dates are
// kept with DateValid false so they fall out of every window.
func EventsFromTable(source string, t *tabular.Table) ([]AttendanceEvent, error) {
	idIdx, ok := t.Column(usernameColumns...)
	if !ok {
		return nil, &SchemaError{Source: source, Column: usernameColumns[0]}
	}
	dateIdx, ok := t.Column(eventDateColumns...)
	if !ok {
		return nil, &SchemaError{Source: source, Column: eventDateColumns[0]}
	}
	statusIdx, ok := t.Column(attendanceColumns...)
	if !ok {
		return nil, &SchemaError{Source: source, Column: attendanceColumns[0]}
	}

	events := make([]AttendanceEvent, 0, len(t.Rows))
	for _, record := range t.Rows {
		event := AttendanceEvent{
			Username: tabular.Value(record, idIdx),
			Status:   tabular.Value(record, statusIdx),
		}
		if parsed, err := tabular.ParseDate(tabular.Value(record, dateIdx)); err == nil {
			event.Date = parsed
			event.DateValid = true
		}
		events = append(events, event)
	}
	return events, nil
}

// CountPresent counts events per student whose status equals status exactly
// and whose date falls inside window.
func CountPresent(events []AttendanceEvent, status string, window Window) (AttendanceCounts, AttendanceStats) {
	counts := AttendanceCounts{}
	stats := AttendanceStats{Rows: len(events)}
	for _, event := range events {
		switch {
		case event.Username == "":
			stats.BlankUsername++
		case !event.DateValid:
			stats.InvalidDate++
		case event.Status != status:
			stats.NotPresent++
		case !window.Contains(event.Date):
			stats.OutsideWindow++
		default:
			counts[event.Username]++
			stats.Counted++
		}
	}
	stats.DistinctCounts = len(counts)
	return counts, stats
}
