package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"groupscholar-engagement-risk-audit/internal/config"
	"groupscholar-engagement-risk-audit/internal/logging"
	"groupscholar-engagement-risk-audit/internal/report"
	"groupscholar-engagement-risk-audit/internal/risk"
	"groupscholar-engagement-risk-audit/internal/sheets"
	"groupscholar-engagement-risk-audit/internal/store"
	"groupscholar-engagement-risk-audit/internal/tabular"
)

const (
	defaultDetailTab  = "Detailed Student Progress"
	defaultSummaryTab = "Summary Report"
	sheetsRetries     = 3
	sheetsRetryDelay  = 2 * time.Second
	sheetsTimeout     = 2 * time.Minute
)

type options struct {
	SelfPaced      string
	Connect        string
	Physical       string
	SelfPacedSheet string
	ConnectSheet   string
	PhysicalSheet  string
	RulesPath      string
	EnvPath        string
	LogLevel       string
	LogFile        string
	JSONOut        string
	DetailsOut     string
	SummaryOut     string
	AlertsOut      string
	DBEnabled      bool
	InitDB         bool
	DBSchema       string
	DBTag          string
	Sheets         bool
	DetailTab      string
	SummaryTab     string
}

func main() {
	var opts options
	flag.StringVar(&opts.SelfPaced, "self-paced", "", "Path to self-paced progress export (.csv or .xlsx)")
	flag.StringVar(&opts.Connect, "connect", "", "Path to Connect session attendance export (.csv or .xlsx)")
	flag.StringVar(&opts.Physical, "physical", "", "Path to physical session attendance export (.csv or .xlsx)")
	flag.StringVar(&opts.SelfPacedSheet, "self-paced-sheet", "", "Workbook sheet for self-paced progress (default first sheet)")
	flag.StringVar(&opts.ConnectSheet, "connect-sheet", "", "Workbook sheet for Connect attendance (default first sheet)")
	flag.StringVar(&opts.PhysicalSheet, "physical-sheet", "", "Workbook sheet for physical attendance (default first sheet)")
	flag.StringVar(&opts.RulesPath, "config", "", "Optional rules file overriding windows, thresholds and week bins")
	flag.StringVar(&opts.EnvPath, "env-file", ".env", "Optional env file")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogFile, "log-file", "", "Optional rotating JSON log file")
	flag.StringVar(&opts.JSONOut, "json", "", "Optional JSON output path")
	flag.StringVar(&opts.DetailsOut, "details-csv", "", "Optional CSV output for the detailed student table")
	flag.StringVar(&opts.SummaryOut, "summary-csv", "", "Optional CSV output for the summary report")
	flag.StringVar(&opts.AlertsOut, "alerts", "", "Optional CSV output listing At Risk students")
	flag.BoolVar(&opts.DBEnabled, "db", false, "Store report in Postgres (requires ENGAGEMENT_RISK_AUDIT_DB_URL or DATABASE_URL)")
	flag.BoolVar(&opts.InitDB, "init-db", false, "Initialize database schema and seed data if empty")
	flag.StringVar(&opts.DBSchema, "db-schema", "engagement_risk_audit", "Postgres schema for audit tables")
	flag.StringVar(&opts.DBTag, "db-tag", "", "Optional label for this audit run")
	flag.BoolVar(&opts.Sheets, "sheets", false, "Publish both tables to Google Sheets (requires GOOGLE_SHEETS_SPREADSHEET_ID and GOOGLE_CREDENTIALS_FILE)")
	flag.StringVar(&opts.DetailTab, "sheets-detail-tab", defaultDetailTab, "Sheet tab for the detailed student table")
	flag.StringVar(&opts.SummaryTab, "sheets-summary-tab", defaultSummaryTab, "Sheet tab for the summary report")
	flag.Parse()

	if err := config.LoadEnv(opts.EnvPath); err != nil {
		exitWithError(err)
	}
	log, err := logging.New(opts.LogLevel, opts.LogFile)
	if err != nil {
		exitWithError(err)
	}
	defer log.Sync()

	if err := run(opts, os.Stdout, log); err != nil {
		log.Error("audit failed", zap.Error(err))
		_ = log.Sync()
		exitWithError(err)
	}
}

func run(opts options, out io.Writer, log *zap.Logger) error {
	cfg, err := config.LoadRules(opts.RulesPath)
	if err != nil {
		return err
	}

	inputs, err := loadInputs(opts, log)
	if err != nil {
		return err
	}

	result, err := risk.Run(inputs, cfg)
	if err != nil {
		return err
	}
	logDiagnostics(log, result.Diagnostics)

	meta := report.NewMeta(cfg, filepath.Base(opts.SelfPaced), filepath.Base(opts.Connect), filepath.Base(opts.Physical))
	report.Print(out, result, meta)

	if opts.JSONOut != "" {
		if err := report.WriteJSON(opts.JSONOut, result, meta); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nJSON report saved to %s\n", opts.JSONOut)
	}
	if opts.DetailsOut != "" {
		if err := report.WriteDetailsCSV(opts.DetailsOut, result); err != nil {
			return err
		}
		fmt.Fprintf(out, "Detail CSV saved to %s\n", opts.DetailsOut)
	}
	if opts.SummaryOut != "" {
		if err := report.WriteSummaryCSV(opts.SummaryOut, result.Summary); err != nil {
			return err
		}
		fmt.Fprintf(out, "Summary CSV saved to %s\n", opts.SummaryOut)
	}
	if opts.AlertsOut != "" {
		if err := report.WriteAlertsCSV(opts.AlertsOut, result); err != nil {
			return err
		}
		fmt.Fprintf(out, "Alert CSV saved to %s\n", opts.AlertsOut)
	}

	env := config.ReadEnv()
	if opts.DBEnabled || opts.InitDB {
		if err := persist(opts, env, result, meta, out); err != nil {
			return err
		}
	}
	if opts.Sheets {
		if err := publish(opts, env, result, log); err != nil {
			return err
		}
		fmt.Fprintf(out, "Published to Google Sheets (%s, %s)\n", opts.DetailTab, opts.SummaryTab)
	}
	return nil
}

// loadInputs reads whichever tables were given. Missing paths leave the table
// nil so risk.Run can report every missing source at once.
func loadInputs(opts options, log *zap.Logger) (risk.Inputs, error) {
	var inputs risk.Inputs
	sources := []struct {
		name  string
		path  string
		sheet string
		dest  **tabular.Table
	}{
		{risk.SourceSelfPaced, opts.SelfPaced, opts.SelfPacedSheet, &inputs.SelfPaced},
		{risk.SourceConnect, opts.Connect, opts.ConnectSheet, &inputs.Connect},
		{risk.SourcePhysical, opts.Physical, opts.PhysicalSheet, &inputs.Physical},
	}
	for _, source := range sources {
		if source.path == "" {
			continue
		}
		table, err := tabular.Load(source.path, source.sheet)
		if err != nil {
			return risk.Inputs{}, fmt.Errorf("load %s table: %w", source.name, err)
		}
		log.Debug("loaded table",
			zap.String("source", source.name),
			zap.String("file", table.Name),
			zap.Int("rows", len(table.Rows)),
		)
		*source.dest = table
	}
	return inputs, nil
}

func logDiagnostics(log *zap.Logger, d risk.Diagnostics) {
	log.Info("self-paced progress normalized",
		zap.Int("rows", d.SelfPaced.Rows),
		zap.Int("blank_username", d.SelfPaced.BlankUsername),
		zap.Int("unparseable_progress", d.SelfPaced.Unparseable),
		zap.Int("unassigned_week", d.SelfPaced.Unassigned),
	)
	for name, stats := range map[string]risk.AttendanceStats{risk.SourceConnect: d.Connect, risk.SourcePhysical: d.Physical} {
		log.Info("attendance counted",
			zap.String("source", name),
			zap.Int("rows", stats.Rows),
			zap.Int("counted", stats.Counted),
			zap.Int("students", stats.DistinctCounts),
			zap.Int("invalid_date", stats.InvalidDate),
			zap.Int("not_present", stats.NotPresent),
			zap.Int("outside_window", stats.OutsideWindow),
		)
	}
}

func persist(opts options, env config.Env, result risk.Result, meta report.Meta, out io.Writer) error {
	if env.DatabaseURL == "" {
		return errors.New("database URL missing; set ENGAGEMENT_RISK_AUDIT_DB_URL or DATABASE_URL")
	}
	cfg := store.Config{
		URL:    env.DatabaseURL,
		Schema: opts.DBSchema,
		Tag:    opts.DBTag,
	}
	seeded := false
	if opts.InitDB {
		runID, err := store.Seed(result, meta, cfg)
		if err != nil {
			return err
		}
		if runID != "" {
			seeded = true
			fmt.Fprintf(out, "\nSeeded Postgres with initial audit run (run_id=%s)\n", runID)
		} else {
			fmt.Fprintln(out, "Audit data already present; skipping seed.")
		}
	}
	if opts.DBEnabled {
		if seeded {
			fmt.Fprintln(out, "Skipped duplicate insert; current report already used for seed.")
			return nil
		}
		runID, err := store.Store(result, meta, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nStored audit run in Postgres (run_id=%s)\n", runID)
	}
	return nil
}

func publish(opts options, env config.Env, result risk.Result, log *zap.Logger) error {
	if env.SpreadsheetID == "" || env.CredentialsFile == "" {
		return errors.New("google sheets target missing; set GOOGLE_SHEETS_SPREADSHEET_ID and GOOGLE_CREDENTIALS_FILE")
	}
	ctx, cancel := context.WithTimeout(context.Background(), sheetsTimeout)
	defer cancel()

	publisher, err := sheets.NewPublisher(ctx, env.SpreadsheetID, env.CredentialsFile, sheetsRetries, sheetsRetryDelay, log)
	if err != nil {
		return err
	}
	if err := publisher.Publish(ctx, opts.DetailTab, report.DetailHeaders(result), report.DetailRows(result)); err != nil {
		return err
	}
	return publisher.Publish(ctx, opts.SummaryTab, report.SummaryHeaders, report.SummaryRows(result.Summary))
}

func exitWithError(err error) {
	var schemaErr *risk.SchemaError
	switch {
	case errors.Is(err, risk.ErrInputsIncomplete):
		fmt.Fprintln(os.Stderr, "Error:", err, "(--self-paced, --connect and --physical are all required)")
	case errors.As(err, &schemaErr):
		fmt.Fprintln(os.Stderr, "Schema error:", err)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(1)
}
