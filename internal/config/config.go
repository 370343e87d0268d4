package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"icaltool/internal/model"
	"icaltool/internal/serialize"
)

// ICSConfig describes a single ICS feed, remote or on disk.
type ICSConfig struct {
	// URL is an http(s)/webcal URL, a file:// URL or a local path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for routing and logging.
	ID string `yaml:"id" json:"id"`
	// Name overrides the calendar title announced by the feed.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Color is a "#rrggbb" display color.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// CalDAVConfig describes one CalDAV account.
type CalDAVConfig struct {
	ID       string `yaml:"id" json:"id"`
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	// PasswordEnv names an environment variable holding the password. It
	// takes precedence over Password.
	PasswordEnv string `yaml:"password_env,omitempty" json:"password_env,omitempty"`
	Color       string `yaml:"color,omitempty" json:"color,omitempty"`
}

// ResolvePassword returns the account password, reading PasswordEnv when set.
func (c CalDAVConfig) ResolvePassword() string {
	if c.PasswordEnv != "" {
		if v, ok := os.LookupEnv(c.PasswordEnv); ok {
			return v
		}
	}
	return c.Password
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone used for day boundaries and output
	// (e.g. "Europe/Paris"). "Local" or empty means the system zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DateFormat is the LDML pattern used to render dates in JSON output.
	DateFormat string `yaml:"date_format" json:"date_format"`

	// Me lists the current user's calendar addresses (e.g. "me@example.com").
	// Attendees with these addresses are reported as the current user.
	Me []string `yaml:"me" json:"me"`

	// TimeoutSeconds bounds each HTTP request to a calendar source.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// ICS is the list of ICS feeds.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// CalDAV is the list of CalDAV accounts.
	CalDAV []CalDAVConfig `yaml:"caldav" json:"caldav"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:       "Local",
		LogLevel:       "info",
		DateFormat:     serialize.DefaultDateFormat,
		Me:             []string{},
		TimeoutSeconds: 15,
		ICS:            []ICSConfig{},
		CalDAV:         []CalDAVConfig{},
	}
}

// DefaultPath is config.yaml under the user's configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "icaltool", "config.yaml")
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Sources without an ID get
// a positional one.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// ok
	default:
		c.LogLevel = "info"
	}
	if c.DateFormat == "" {
		c.DateFormat = serialize.DefaultDateFormat
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
	if c.Me == nil {
		c.Me = []string{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.CalDAV == nil {
		c.CalDAV = []CalDAVConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	for i := range c.CalDAV {
		if c.CalDAV[i].ID == "" {
			c.CalDAV[i].ID = fmt.Sprintf("caldav-%d", i+1)
		}
	}
}

// Validate reports the first problem that would make a source unusable.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	check := func(kind, id, url, color string) error {
		if seen[id] {
			return fmt.Errorf("%s %q: duplicate id", kind, id)
		}
		seen[id] = true
		if url == "" {
			return fmt.Errorf("%s %q: url is empty", kind, id)
		}
		if color != "" {
			if _, err := model.ParseColor(color); err != nil {
				return fmt.Errorf("%s %q: %w", kind, id, err)
			}
		}
		return nil
	}
	for _, s := range c.ICS {
		if err := check("ics", s.ID, s.URL, s.Color); err != nil {
			return err
		}
	}
	for _, s := range c.CalDAV {
		if err := check("caldav", s.ID, s.URL, s.Color); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Timeout is TimeoutSeconds as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Color parses an optional "#rrggbb" value; empty or invalid yields nil.
func Color(s string) *model.Color {
	if s == "" {
		return nil
	}
	c, err := model.ParseColor(s)
	if err != nil {
		return nil
	}
	return c
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, the default config is returned and nothing
//     is written; use Save (init-config) to create one.
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// LoadEnv loads variables from a dotenv file without overriding ones already
// set. An empty path tries ".env" in the working directory and ignores its
// absence.
func LoadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600, since it may hold passwords.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".icaltool-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
