package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"groupscholar-engagement-risk-audit/internal/risk"
)

func TestLoadRulesDefaults(t *testing.T) {
	cfg, err := LoadRules("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if !reflect.DeepEqual(cfg, risk.DefaultConfig()) {
		t.Fatalf("defaults differ:\n got %+v\nwant %+v", cfg, risk.DefaultConfig())
	}
}

func TestLoadRulesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := `present_status: "Attended"
connect_window:
  start: "2025-09-01"
  end: "2025-10-15"
thresholds:
  connect: 4
connect_buckets:
  min: 0
  max: 9
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	cfg, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if cfg.PresentStatus != "Attended" {
		t.Fatalf("expected present status override, got %q", cfg.PresentStatus)
	}
	if !cfg.ConnectWindow.Start.Equal(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected connect window %v", cfg.ConnectWindow)
	}
	if cfg.Thresholds.Connect != 4 || cfg.Thresholds.SelfPaced != 0.87 || cfg.Thresholds.Physical != 1 {
		t.Fatalf("unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.ConnectBuckets != (risk.Range{Min: 0, Max: 9}) {
		t.Fatalf("unexpected connect buckets %+v", cfg.ConnectBuckets)
	}
	if !cfg.PhysicalWindow.End.Equal(time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("physical window should keep its default, got %v", cfg.PhysicalWindow)
	}
}

func TestLoadRulesRejectsBadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := "physical_window:\n  start: \"2025-03-08\"\n  end: \"2025-03-01\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatalf("expected inverted window to be rejected")
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestReadEnvPrefersAuditURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.env")
	if err := os.WriteFile(path, []byte("GOOGLE_SHEETS_SPREADSHEET_ID=sheet-123\n"), 0644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	os.Unsetenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	t.Setenv("ENGAGEMENT_RISK_AUDIT_DB_URL", "postgres://audit")
	t.Setenv("DATABASE_URL", "postgres://fallback")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}

	env := ReadEnv()
	if env.DatabaseURL != "postgres://audit" {
		t.Fatalf("expected audit db url, got %q", env.DatabaseURL)
	}
	if env.SpreadsheetID != "sheet-123" {
		t.Fatalf("expected spreadsheet id from env file, got %q", env.SpreadsheetID)
	}
}
