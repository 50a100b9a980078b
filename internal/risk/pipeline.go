package risk

import (
	"groupscholar-engagement-risk-audit/internal/tabular"
)

const (
	SourceSelfPaced = "self-paced"
	SourceConnect   = "connect"
	SourcePhysical  = "physical"
)

type Inputs struct {
	SelfPaced *tabular.Table
	Connect   *tabular.Table
	Physical  *tabular.Table
}

type Diagnostics struct {
	SelfPaced ProgressStats   `json:"self_paced"`
	Connect   AttendanceStats `json:"connect"`
	Physical  AttendanceStats `json:"physical"`
}

type Result struct {
	Headers     []string        `json:"-"`
	Records     []StudentRecord `json:"students"`
	Summary     Summary         `json:"summary"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

// Run executes the whole audit. It refuses to start unless all three tables
// are present, and a table missing a required column fails the run with a
// *SchemaError.
func Run(in Inputs, cfg Config) (Result, error) {
	var missing []string
	if in.SelfPaced == nil {
		missing = append(missing, SourceSelfPaced)
	}
	if in.Connect == nil {
		missing = append(missing, SourceConnect)
	}
	if in.Physical == nil {
		missing = append(missing, SourcePhysical)
	}
	if len(missing) > 0 {
		return Result{}, incomplete(missing)
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	progress, progressStats, err := ProgressFromTable(SourceSelfPaced, in.SelfPaced, cfg)
	if err != nil {
		return Result{}, err
	}
	connectEvents, err := EventsFromTable(SourceConnect, in.Connect)
	if err != nil {
		return Result{}, err
	}
	physicalEvents, err := EventsFromTable(SourcePhysical, in.Physical)
	if err != nil {
		return Result{}, err
	}

	connectCounts, connectStats := CountPresent(connectEvents, cfg.PresentStatus, cfg.ConnectWindow)
	physicalCounts, physicalStats := CountPresent(physicalEvents, cfg.PresentStatus, cfg.PhysicalWindow)

	records := Merge(progress, connectCounts, physicalCounts)
	ClassifyAll(records, cfg.Thresholds)

	return Result{
		Headers: append([]string(nil), in.SelfPaced.Headers...),
		Records: records,
		Summary: Summarize(records, cfg),
		Diagnostics: Diagnostics{
			SelfPaced: progressStats,
			Connect:   connectStats,
			Physical:  physicalStats,
		},
	}, nil
}
