package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timezone != "Local" || cfg.LogLevel != "info" || cfg.TimeoutSeconds != 15 {
		t.Errorf("defaults = %+v", cfg)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Load must not create the file")
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
timezone: UTC
log_level: DEBUG
me: [me@example.com]
ics:
  - url: https://example.com/a.ics
    name: Holidays
    color: "#ff0000"
  - url: /tmp/b.ics
caldav:
  - url: https://dav.example.com
    username: me
    password_env: ICALTOOL_TEST_PASSWORD
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.DateFormat == "" {
		t.Error("DateFormat not defaulted")
	}
	if len(cfg.ICS) != 2 || cfg.ICS[0].ID != "ics-1" || cfg.ICS[1].ID != "ics-2" || cfg.ICS[0].Name != "Holidays" {
		t.Errorf("ICS = %+v", cfg.ICS)
	}
	if len(cfg.CalDAV) != 1 || cfg.CalDAV[0].ID != "caldav-1" {
		t.Errorf("CalDAV = %+v", cfg.CalDAV)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location = %v, %v", loc, err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ics: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{}, true},
		{"bad timezone", Config{Timezone: "Mars/Olympus"}, false},
		{"missing url", Config{ICS: []ICSConfig{{ID: "a"}}}, false},
		{"duplicate id", Config{
			ICS:    []ICSConfig{{ID: "a", URL: "x"}},
			CalDAV: []CalDAVConfig{{ID: "a", URL: "y"}},
		}, false},
		{"bad color", Config{ICS: []ICSConfig{{ID: "a", URL: "x", Color: "red"}}}, false},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v", tt.name, err)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Me = []string{"me@example.com"}
	cfg.ICS = append(cfg.ICS, ICSConfig{URL: "https://example.com/a.ics"})

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ICS) != 1 || got.ICS[0].ID != "ics-1" || len(got.Me) != 1 {
		t.Errorf("reloaded = %+v", got)
	}
}

func TestResolvePassword(t *testing.T) {
	t.Setenv("ICALTOOL_TEST_PASSWORD", "from-env")
	c := CalDAVConfig{Password: "inline", PasswordEnv: "ICALTOOL_TEST_PASSWORD"}
	if got := c.ResolvePassword(); got != "from-env" {
		t.Errorf("ResolvePassword = %q", got)
	}
	c.PasswordEnv = "ICALTOOL_TEST_UNSET_VARIABLE"
	if got := c.ResolvePassword(); got != "inline" {
		t.Errorf("fallback = %q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ICALTOOL_TEST_DOTENV=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ICALTOOL_TEST_DOTENV", "")
	os.Unsetenv("ICALTOOL_TEST_DOTENV")

	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("ICALTOOL_TEST_DOTENV"); got != "hello" {
		t.Errorf("env = %q", got)
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("missing explicit env file should fail")
	}
}

func TestColor(t *testing.T) {
	if Color("") != nil || Color("nope") != nil {
		t.Error("empty or invalid color should be nil")
	}
	if c := Color("#00ff00"); c == nil || c.G != 1 {
		t.Errorf("Color = %+v", c)
	}
}
