package risk

type StudentRecord struct {
	Username      string   `json:"username"`
	ProgressRaw   string   `json:"course_progress_raw"`
	Fraction      float64  `json:"course_progress"`
	WeekLabel     string   `json:"current_week"`
	ConnectCount  int      `json:"connect_present_count"`
	PhysicalCount int      `json:"physical_present_count"`
	Status        Status   `json:"overall_progress"`
	Issue         string   `json:"overall_issue"`
	Source        []string `json:"-"`
}

// Merge left-joins progress with both attendance counts. Every progress row
// yields exactly one record, in input order; missing counts are zero.
func Merge(progress []StudentProgress, connect, physical AttendanceCounts) []StudentRecord {
	records := make([]StudentRecord, 0, len(progress))
	for _, student := range progress {
		records = append(records, StudentRecord{
			Username:      student.Username,
			ProgressRaw:   student.ProgressRaw,
			Fraction:      student.Fraction,
			WeekLabel:     student.WeekLabel,
			ConnectCount:  connect[student.Username],
			PhysicalCount: physical[student.Username],
			Source:        student.Source,
		})
	}
	return records
}

// ClassifyAll fills Status and Issue on every record.
func ClassifyAll(records []StudentRecord, th Thresholds) {
	for i := range records {
		records[i].Status, records[i].Issue = Classify(records[i].Fraction, records[i].ConnectCount, records[i].PhysicalCount, th)
	}
}
