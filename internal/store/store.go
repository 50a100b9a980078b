package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"groupscholar-engagement-risk-audit/internal/report"
	"groupscholar-engagement-risk-audit/internal/risk"
)

const timeout = 12 * time.Second

type Config struct {
	URL    string
	Schema string
	Tag    string
}

var validSchema = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func SanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !validSchema.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

func open(ctx context.Context, cfg Config) (*sql.DB, string, error) {
	schema, err := SanitizeSchema(cfg.Schema)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, "", err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", err
	}
	if err := ensureSchema(ctx, db, schema); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, schema, nil
}

// Seed stores the run only when the schema has no runs yet. It returns an
// empty run id when it skipped.
func Seed(result risk.Result, meta report.Meta, cfg Config) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, schema, err := open(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.audit_runs`, schema)).Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}
	return storeTx(ctx, db, result, meta, schema, cfg.Tag)
}

func Store(result risk.Result, meta report.Meta, cfg Config) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, schema, err := open(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer db.Close()

	return storeTx(ctx, db, result, meta, schema, cfg.Tag)
}

func storeTx(ctx context.Context, db *sql.DB, result risk.Result, meta report.Meta, schema string, tag string) (string, error) {
	runID := uuid.New()
	pass, _ := result.Summary.Lookup(string(risk.StatusPass))
	atRisk, _ := result.Summary.Lookup(string(risk.StatusAtRisk))
	rate, _ := result.Summary.Lookup(risk.CategoryCompletionRate)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.audit_runs (
			id, generated_at, self_paced_file, connect_file, physical_file,
			connect_window, physical_window, total_students, pass_count,
			at_risk_count, completion_rate, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,
			$10,$11,$12
		)`, schema),
		runID,
		meta.GeneratedAt,
		nullString(meta.SelfPacedFile),
		nullString(meta.ConnectFile),
		nullString(meta.PhysicalFile),
		meta.ConnectWindow,
		meta.PhysicalWindow,
		len(result.Records),
		int(pass),
		int(atRisk),
		rate,
		nullString(tag),
	)
	if err != nil {
		return "", err
	}

	insertStudentSQL := fmt.Sprintf(`
		INSERT INTO %s.audit_students (
			id, run_id, position, username, course_progress_raw, course_progress,
			current_week, connect_present_count, physical_present_count,
			overall_progress, overall_issue
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,
			$10,$11
		)`, schema)

	for i, record := range result.Records {
		_, err = tx.ExecContext(ctx, insertStudentSQL,
			uuid.New(),
			runID,
			i,
			record.Username,
			nullString(record.ProgressRaw),
			record.Fraction,
			nullString(record.WeekLabel),
			record.ConnectCount,
			record.PhysicalCount,
			string(record.Status),
			nullString(record.Issue),
		)
		if err != nil {
			return "", err
		}
	}

	insertSummarySQL := fmt.Sprintf(`
		INSERT INTO %s.audit_summary (
			id, run_id, position, category, value, kind
		) VALUES (
			$1,$2,$3,$4,$5,$6
		)`, schema)

	for i, entry := range result.Summary {
		_, err = tx.ExecContext(ctx, insertSummarySQL,
			uuid.New(),
			runID,
			i,
			entry.Category,
			entry.Value,
			string(entry.Kind),
		)
		if err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_runs (
			id uuid PRIMARY KEY,
			generated_at timestamptz NOT NULL,
			self_paced_file text,
			connect_file text,
			physical_file text,
			connect_window text NOT NULL,
			physical_window text NOT NULL,
			total_students integer NOT NULL,
			pass_count integer NOT NULL,
			at_risk_count integer NOT NULL,
			completion_rate numeric(6,2) NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_students (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.audit_runs(id) ON DELETE CASCADE,
			position integer NOT NULL,
			username text NOT NULL,
			course_progress_raw text,
			course_progress double precision NOT NULL,
			current_week text,
			connect_present_count integer NOT NULL,
			physical_present_count integer NOT NULL,
			overall_progress text NOT NULL,
			overall_issue text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_summary (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.audit_runs(id) ON DELETE CASCADE,
			position integer NOT NULL,
			category text NOT NULL,
			value double precision NOT NULL,
			kind text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_students_run_idx ON %s.audit_students (run_id)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_students_progress_idx ON %s.audit_students (overall_progress)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_summary_run_idx ON %s.audit_summary (run_id)`, schema, schema),
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
