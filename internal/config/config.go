package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"groupscholar-engagement-risk-audit/internal/risk"
	"groupscholar-engagement-risk-audit/internal/tabular"
)

// Rules is the file form of risk.Config.
type Rules struct {
	PresentStatus   string     `mapstructure:"present_status"`
	ConnectWindow   WindowSpec `mapstructure:"connect_window"`
	PhysicalWindow  WindowSpec `mapstructure:"physical_window"`
	Thresholds      Thresholds `mapstructure:"thresholds"`
	WeekEdges       []float64  `mapstructure:"week_edges"`
	WeekLabels      []string   `mapstructure:"week_labels"`
	ConnectBuckets  RangeSpec  `mapstructure:"connect_buckets"`
	PhysicalBuckets RangeSpec  `mapstructure:"physical_buckets"`
}

type WindowSpec struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type Thresholds struct {
	SelfPaced float64 `mapstructure:"self_paced"`
	Physical  int     `mapstructure:"physical"`
	Connect   int     `mapstructure:"connect"`
}

type RangeSpec struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// Env holds the settings that come from the environment rather than flags.
type Env struct {
	DatabaseURL     string
	SpreadsheetID   string
	CredentialsFile string
}

// LoadEnv reads .env when present. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func ReadEnv() Env {
	return Env{
		DatabaseURL:     firstEnv("ENGAGEMENT_RISK_AUDIT_DB_URL", "DATABASE_URL"),
		SpreadsheetID:   firstEnv("GOOGLE_SHEETS_SPREADSHEET_ID"),
		CredentialsFile: firstEnv("GOOGLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"),
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// LoadRules returns the default audit rules, overlaid with the file at path
// when one is given. Any format viper understands is accepted.
func LoadRules(path string) (risk.Config, error) {
	v := viper.New()
	setDefaults(v, risk.DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return risk.Config{}, fmt.Errorf("read rules %s: %w", path, err)
		}
	}

	var rules Rules
	if err := v.Unmarshal(&rules); err != nil {
		return risk.Config{}, fmt.Errorf("decode rules: %w", err)
	}
	cfg, err := rules.toConfig()
	if err != nil {
		return risk.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return risk.Config{}, fmt.Errorf("invalid rules: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg risk.Config) {
	v.SetDefault("present_status", cfg.PresentStatus)
	v.SetDefault("connect_window.start", tabular.FormatDate(cfg.ConnectWindow.Start))
	v.SetDefault("connect_window.end", tabular.FormatDate(cfg.ConnectWindow.End))
	v.SetDefault("physical_window.start", tabular.FormatDate(cfg.PhysicalWindow.Start))
	v.SetDefault("physical_window.end", tabular.FormatDate(cfg.PhysicalWindow.End))
	v.SetDefault("thresholds.self_paced", cfg.Thresholds.SelfPaced)
	v.SetDefault("thresholds.physical", cfg.Thresholds.Physical)
	v.SetDefault("thresholds.connect", cfg.Thresholds.Connect)
	v.SetDefault("week_edges", cfg.WeekEdges)
	v.SetDefault("week_labels", cfg.WeekLabels)
	v.SetDefault("connect_buckets.min", cfg.ConnectBuckets.Min)
	v.SetDefault("connect_buckets.max", cfg.ConnectBuckets.Max)
	v.SetDefault("physical_buckets.min", cfg.PhysicalBuckets.Min)
	v.SetDefault("physical_buckets.max", cfg.PhysicalBuckets.Max)
}

func (r Rules) toConfig() (risk.Config, error) {
	connect, err := r.ConnectWindow.window("connect_window")
	if err != nil {
		return risk.Config{}, err
	}
	physical, err := r.PhysicalWindow.window("physical_window")
	if err != nil {
		return risk.Config{}, err
	}
	return risk.Config{
		PresentStatus:  r.PresentStatus,
		ConnectWindow:  connect,
		PhysicalWindow: physical,
		Thresholds: risk.Thresholds{
			SelfPaced: r.Thresholds.SelfPaced,
			Physical:  r.Thresholds.Physical,
			Connect:   r.Thresholds.Connect,
		},
		WeekEdges:       r.WeekEdges,
		WeekLabels:      r.WeekLabels,
		ConnectBuckets:  risk.Range{Min: r.ConnectBuckets.Min, Max: r.ConnectBuckets.Max},
		PhysicalBuckets: risk.Range{Min: r.PhysicalBuckets.Min, Max: r.PhysicalBuckets.Max},
	}, nil
}

func (w WindowSpec) window(name string) (risk.Window, error) {
	start, err := parseRuleDate(w.Start)
	if err != nil {
		return risk.Window{}, fmt.Errorf("%s.start: %w", name, err)
	}
	end, err := parseRuleDate(w.End)
	if err != nil {
		return risk.Window{}, fmt.Errorf("%s.end: %w", name, err)
	}
	return risk.Window{Start: start, End: end}, nil
}

func parseRuleDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}
