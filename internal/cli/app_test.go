package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json"

	"icaltool/internal/config"
	"icaltool/internal/model"
	"icaltool/internal/provider"
)

var fixedNow = time.Date(2020, 4, 26, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	cals   []model.Calendar
	events []*model.Event
	err    error

	calls      int
	start, end time.Time
}

func (f *fakeProvider) Calendars(ctx context.Context) ([]model.Calendar, error) {
	return f.cals, f.err
}

func (f *fakeProvider) Events(ctx context.Context, cals []model.Calendar, start, end time.Time) ([]*model.Event, error) {
	f.calls++
	f.start, f.end = start, end
	return f.events, f.err
}

func (f *fakeProvider) EventByID(ctx context.Context, id string) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, provider.ErrNotFound
}

func utcAt(h int) *time.Time {
	t := time.Date(2020, 4, 26, h, 0, 0, 0, time.UTC)
	return &t
}

func newFake() *fakeProvider {
	work := &model.Calendar{ID: "w", Title: "Work", Color: &model.Color{B: 1, A: 1}}
	return &fakeProvider{
		cals: []model.Calendar{*work, {ID: "h", Title: "Home"}},
		events: []*model.Event{
			{ID: "late", Calendar: work, Title: model.String("Review"), Start: utcAt(15), End: utcAt(16)},
			{ID: "early", Calendar: work, Title: model.String("Standup"), Start: utcAt(9), End: utcAt(10)},
			{ID: "long", Calendar: work, Title: model.String("Offsite"), Start: utcAt(0), End: utcAt(24), AllDay: true},
		},
	}
}

func writeConfig(t *testing.T, ics ...config.ICSConfig) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.ICS = ics
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path
}

type harness struct {
	app            *App
	stdout, stderr *bytes.Buffer
	config         string
}

func newHarness(t *testing.T, p provider.Provider) *harness {
	t.Helper()
	h := &harness{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		config: writeConfig(t, config.ICSConfig{ID: "fake", URL: "unused.ics"}),
	}
	h.app = &App{
		Stdout: h.stdout,
		Stderr: h.stderr,
		Now:    func() time.Time { return fixedNow },
		NewProvider: func(*config.Config, *time.Location) (provider.Provider, error) {
			return p, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) int {
	return h.runContext(context.Background(), args...)
}

func (h *harness) runContext(ctx context.Context, args ...string) int {
	return h.app.Run(ctx, append([]string{"--config", h.config}, args...))
}

func decodeList(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return out
}

func uids(items []map[string]any) []string {
	var out []string
	for _, it := range items {
		s, _ := it["uid"].(string)
		out = append(out, s)
	}
	return out
}

func TestDefaultCommandIsToday(t *testing.T) {
	fake := newFake()
	h := newHarness(t, fake)

	if code := h.run(); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
	}
	wantStart := time.Date(2020, 4, 26, 0, 0, 0, 0, time.UTC)
	if !fake.start.Equal(wantStart) || !fake.end.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Errorf("window = [%v, %v)", fake.start, fake.end)
	}

	got := decodeList(t, h.stdout.Bytes())
	if len(got) != 3 {
		t.Fatalf("got %d events: %s", len(got), h.stdout)
	}
	if got[0]["calendar-id"] != "w" || got[0]["color"] != "#0000ff" {
		t.Errorf("first event = %v", got[0])
	}
}

func TestEventsSubcommandAlias(t *testing.T) {
	for _, args := range [][]string{{"today"}, {"events", "today"}} {
		h := newHarness(t, newFake())
		if code := h.run(args...); code != ExitOK {
			t.Errorf("%v: exit = %d, stderr: %s", args, code, h.stderr)
		}
	}
}

func TestSortAndFilterFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"start ascending", []string{"today", "-s", "start-date"}, "long,early,late"},
		{"start descending", []string{"today", "--sort-order", "start-date", "-r"}, "late,early,long"},
		{"title", []string{"-s", "title", "today"}, "long,late,early"},
		{"hide all-day", []string{"today", "-a", "dont-show", "-s", "start-date"}, "early,late"},
		{"only all-day", []string{"today", "--all-day", "only"}, "long"},
		{"now", []string{"now"}, "long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newFake())
			if code := h.run(tt.args...); code != ExitOK {
				t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
			}
			got := strings.Join(uids(decodeList(t, h.stdout.Bytes())), ",")
			if got != tt.want {
				t.Errorf("uids = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"at without date", []string{"at"}, "missing expected argument '<date>'"},
		{"on without date", []string{"on"}, "missing expected argument '<date>'"},
		{"in without duration", []string{"in"}, "missing expected argument '<duration>'"},
		{"events without start", []string{"events"}, "missing expected argument '--start <date>'"},
		{"events without end", []string{"events", "--start", "2020-04-26"}, "missing expected argument '--end <date>'"},
		{"show without id", []string{"show"}, "missing expected argument '<id>'"},
		{"bad sort order", []string{"today", "-s", "bogus"}, "--sort-order"},
		{"bad all-day", []string{"today", "-a", "sometimes"}, "--all-day"},
		{"bad my-status", []string{"today", "-m", "maybe"}, "--my-status"},
		{"unknown command", []string{"tomorrow"}, `unknown command "tomorrow"`},
		{"unknown flag", []string{"today", "--colour"}, "colour"},
		{"extra argument", []string{"today", "extra"}, `unexpected argument "extra"`},
		{"bad watch schedule", []string{"today", "--watch", "every minute"}, "--watch"},
		{"bad date format", []string{"today", "-f", "yyyy-MM-dd'T"}, "Error:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			h := newHarness(t, fake)
			if code := h.run(tt.args...); code != ExitUsage {
				t.Fatalf("exit = %d, want %d; stderr: %s", code, ExitUsage, h.stderr)
			}
			if !strings.Contains(h.stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", h.stderr, tt.want)
			}
			if fake.calls != 0 {
				t.Errorf("provider queried %d times", fake.calls)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	h := newHarness(t, newFake())
	if code := h.run("-h"); code != ExitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(h.stderr.String(), "date-formats") {
		t.Errorf("usage does not list commands: %s", h.stderr)
	}
}

func TestDateFormats(t *testing.T) {
	h := newHarness(t, nil)
	if code := h.run("date-formats"); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
	}
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 5 || lines[len(lines)-1] != "yyyy-MM-dd" {
		t.Errorf("date-formats = %q", lines)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	var stderr bytes.Buffer
	app := &App{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	if code := app.Run(context.Background(), []string{"init-config", "--config", path}); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DateFormat == "" {
		t.Errorf("written config has no date format")
	}

	stderr.Reset()
	if code := app.Run(context.Background(), []string{"init-config", "--config", path}); code != ExitFailure {
		t.Errorf("second init-config exit = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestCalendars(t *testing.T) {
	h := newHarness(t, newFake())
	if code := h.run("calendars"); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
	}
	got := decodeList(t, h.stdout.Bytes())
	if len(got) != 2 {
		t.Fatalf("got %d calendars", len(got))
	}
	if got[1]["color"] != "#000" {
		t.Errorf("uncolored calendar color = %v", got[1]["color"])
	}

	h = newHarness(t, newFake())
	if code := h.run("calendars", "-c", "Home"); code != ExitOK {
		t.Fatalf("exit = %d", code)
	}
	if got := uids(decodeList(t, h.stdout.Bytes())); len(got) != 1 || got[0] != "h" {
		t.Errorf("filtered calendars = %v", got)
	}
}

func TestCalendarWithoutMatchSkipsProvider(t *testing.T) {
	fake := newFake()
	h := newHarness(t, fake)
	if code := h.run("today", "-c", "Nope"); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
	}
	if strings.TrimSpace(h.stdout.String()) != "[]" {
		t.Errorf("stdout = %q", h.stdout)
	}
	if fake.calls != 0 {
		t.Errorf("provider queried")
	}
}

func TestShow(t *testing.T) {
	h := newHarness(t, newFake())
	if code := h.run("show", "early"); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
	}
	var ev map[string]any
	if err := json.Unmarshal(h.stdout.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev["title"] != "Standup" {
		t.Errorf("event = %v", ev)
	}

	h = newHarness(t, newFake())
	if code := h.run("show", "missing"); code != ExitFailure {
		t.Errorf("unknown id exit = %d", code)
	}
}

func TestAccessDenied(t *testing.T) {
	fake := newFake()
	fake.err = provider.ErrAccessDenied
	h := newHarness(t, fake)
	if code := h.run("today"); code != ExitFailure {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(h.stderr.String(), "access to calendar denied") {
		t.Errorf("stderr = %q", h.stderr)
	}
	if h.stdout.Len() != 0 {
		t.Errorf("stdout = %q", h.stdout)
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	fake := newFake()
	h := newHarness(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code := h.runContext(ctx, "today", "--watch", "*/5 * * * *"); code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, h.stderr)
	}
	if fake.calls != 1 {
		t.Errorf("provider queried %d times, want 1", fake.calls)
	}
}

func TestWatchFirstRunFailure(t *testing.T) {
	fake := newFake()
	fake.err = errors.New("boom")
	fake.cals = nil
	h := newHarness(t, fake)
	if code := h.run("today", "--watch", "@every 1h"); code != ExitFailure {
		t.Errorf("exit = %d, want %d", code, ExitFailure)
	}
}

func TestBuildProviderWithoutSources(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := BuildProvider(cfg, time.UTC); !errors.Is(err, ErrNoSources) {
		t.Errorf("err = %v, want ErrNoSources", err)
	}
}

func TestEndToEndWithICSFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := &App{
		Stdout: &stdout,
		Stderr: &stderr,
		Now:    func() time.Time { return fixedNow },
	}
	path := writeConfig(t, config.ICSConfig{ID: "team", URL: filepath.Join("..", "ics", "testdata", "team.ics")})

	code := app.Run(context.Background(), []string{"--config", path, "on", "2020-04-26", "--show-attendees"})
	if code != ExitOK {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	got := decodeList(t, stdout.Bytes())
	if len(got) != 1 {
		t.Fatalf("got %d events: %s", len(got), stdout.String())
	}
	ev := got[0]
	if ev["uid"] != "single" || ev["title"] != "Planning" || ev["availabilty"] != "free" {
		t.Errorf("event = %v", ev)
	}
	if attendees, _ := ev["attendees"].([]any); len(attendees) != 3 {
		t.Errorf("attendees = %v", ev["attendees"])
	}
	if ev["color"] != "#ff0000" {
		t.Errorf("color = %v", ev["color"])
	}
}
