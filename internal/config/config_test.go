package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/streamdash/internal/model"
)

func validSettings() model.Settings {
	return model.Settings{
		Source: model.SourceSettings{
			Kind:     "csv",
			Path:     "olympics_data.csv",
			Encoding: "latin1",
			Fallback: "none",
			Rows:     2000,
			Dataset:  "default",
		},
		ExportDir: "/tmp/exports",
		DBPath:    "/tmp/streamdash.db",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[source]
kind = "api"
api-endpoint = "https://example.com/views"
api-timeout = "15s"
rows = 500

[filter]
start = "2024-06-07"
countries = ["USA", "Chile"]

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Source.Kind == nil || *cfg.Source.Kind != "api" {
		t.Fatalf("unexpected kind: %v", cfg.Source.Kind)
	}
	if cfg.Source.APITimeout == nil || *cfg.Source.APITimeout != 15*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Source.APITimeout)
	}
	if cfg.Source.Rows == nil || *cfg.Source.Rows != 500 {
		t.Fatalf("unexpected rows: %v", cfg.Source.Rows)
	}
	if cfg.Source.Path != nil {
		t.Fatalf("expected unset path")
	}
	if len(cfg.Filter.Countries) != 2 || cfg.Filter.Start == nil || *cfg.Filter.Start != "2024-06-07" {
		t.Fatalf("unexpected filter: %+v", cfg.Filter)
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Source.Kind != nil {
		t.Fatalf("expected empty config")
	}
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[source]\nknd = \"csv\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "knd") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	s := validSettings()
	s.Source.Kind = "ftp"
	s.Source.Encoding = "ebcdic"
	s.Source.Rows = 0
	s.LogFormat = "xml"
	err := Validate(s)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"source.kind", "source.encoding", "source.rows", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestValidateRequiresSourceSpecificFields(t *testing.T) {
	s := validSettings()
	s.Source.Path = ""
	if err := Validate(s); err == nil || !strings.Contains(err.Error(), "source.path is required") {
		t.Fatalf("expected csv path error, got %v", err)
	}

	s = validSettings()
	s.Source.Kind = "api"
	s.Source.Path = ""
	if err := Validate(s); err == nil || !strings.Contains(err.Error(), "source.api-endpoint is required") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
	s.Source.APIEndpoint = "not a url"
	if err := Validate(s); err == nil || !strings.Contains(err.Error(), "must be a URL") {
		t.Fatalf("expected url error, got %v", err)
	}
	s.Source.APIEndpoint = "https://example.com/api"
	if err := Validate(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseDateRange(t *testing.T) {
	lo := time.Date(2024, time.June, 7, 5, 0, 0, 0, time.UTC)
	hi := time.Date(2024, time.June, 10, 23, 0, 0, 0, time.UTC)
	r, err := ParseDateRange("", "", lo, hi)
	if err != nil || r != nil {
		t.Fatalf("expected no range, got %+v, %v", r, err)
	}
	r, err = ParseDateRange("2024-06-08", "", lo, hi)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Start.Format(model.DateLayout) != "2024-06-08" || r.End.Format(model.DateLayout) != "2024-06-10" {
		t.Fatalf("unexpected range: %+v", r)
	}
	if _, err := ParseDateRange("06/08/2024", "", lo, hi); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList([]string{"USA, Chile", "", " South Africa "})
	if len(got) != 3 || got[2] != "South Africa" {
		t.Fatalf("unexpected split: %v", got)
	}
}

func TestDefaultPathsUseXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "streamdash", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "streamdash", "streamdash.db") {
		t.Fatalf("unexpected db path %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/state", "streamdash", "streamdash.log") {
		t.Fatalf("unexpected log path %s", got)
	}
}
