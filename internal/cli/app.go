// Package cli implements the icaltool command line: flag parsing, window
// resolution, provider wiring and JSON output.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"icaltool/internal/caldav"
	"icaltool/internal/config"
	"icaltool/internal/datefmt"
	"icaltool/internal/ics"
	appLog "icaltool/internal/log"
	"icaltool/internal/provider"
	"icaltool/internal/query"
	"icaltool/internal/serialize"
)

// Exit statuses.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const defaultCommand = "today"

var commandHelp = []struct{ name, help string }{
	{"events", "Events between --start and --end"},
	{"today", "Events happening today (default)"},
	{"now", "Events happening now"},
	{"at", "Events happening at a certain point of time: at DATE"},
	{"on", "Events happening on a specific date: on DATE"},
	{"in", "Events happening soon: in DURATION (e.g. PT5M)"},
	{"calendars", "List calendars"},
	{"show", "Show a single event: show ID"},
	{"date-formats", "List supported input date formats"},
	{"init-config", "Write a default configuration file to --config"},
}

var windowCommands = map[string]bool{"today": true, "now": true, "at": true, "on": true, "in": true}

func isCommand(s string) bool {
	for _, c := range commandHelp {
		if c.name == s {
			return true
		}
	}
	return false
}

// ProviderFactory builds the calendar provider for a configuration.
type ProviderFactory func(cfg *config.Config, loc *time.Location) (provider.Provider, error)

// App is one icaltool invocation environment.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	// Now is the wall clock; nil means time.Now.
	Now func() time.Time
	// NewProvider builds the provider; nil means BuildProvider.
	NewProvider ProviderFactory
}

// New returns an App bound to the process's standard streams.
func New() *App {
	return &App{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Run executes args (without the program name) and returns the exit status.
func (a *App) Run(ctx context.Context, args []string) int {
	prev := appLog.SetOutput(a.Stderr)
	defer appLog.SetOutput(prev)

	err := a.run(ctx, args)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return ExitOK
	case isUsage(err):
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		fmt.Fprintln(a.Stderr, "Run 'icaltool -h' for usage.")
		return ExitUsage
	default:
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
}

func (a *App) usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: icaltool [flags] [command] [args]\n\nOutputs events from calendars to the console as JSON.\n\nCommands:\n")
		for _, c := range commandHelp {
			fmt.Fprintf(out, "  %-13s %s\n", c.name, c.help)
		}
		fmt.Fprintf(out, "\nFlags:\n")
		fs.PrintDefaults()
	}
}

func (a *App) newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = a.usage(fs)
	o.register(fs)
	return fs
}

func (a *App) run(ctx context.Context, args []string) error {
	o := newOptions()

	// Flags before the command.
	root := a.newFlagSet("icaltool", o)
	if err := root.Parse(args); err != nil {
		return wrapFlagError(err)
	}
	rest := root.Args()

	cmd := defaultCommand
	if len(rest) > 0 {
		switch {
		case rest[0] == "events" && len(rest) > 1 && windowCommands[rest[1]]:
			cmd, rest = rest[1], rest[2:]
		case isCommand(rest[0]):
			cmd, rest = rest[0], rest[1:]
		default:
			return usageErrorf("unknown command %q", rest[0])
		}
	}

	// Flags after the command, possibly mixed with its arguments.
	positional, err := parseInterspersed(a.newFlagSet("icaltool "+cmd, o), rest)
	if err != nil {
		return wrapFlagError(err)
	}

	if o.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	switch cmd {
	case "date-formats":
		if err := noArgs(cmd, positional); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.Stdout, strings.Join(datefmt.InputFormats, "\n"))
		return err
	case "init-config":
		if err := noArgs(cmd, positional); err != nil {
			return err
		}
		return a.initConfig(o.configPath)
	}

	e, err := a.setup(o)
	if err != nil {
		return err
	}

	switch cmd {
	case "calendars":
		if err := noArgs(cmd, positional); err != nil {
			return err
		}
		return a.runCalendars(ctx, e, o)
	case "show":
		if len(positional) == 0 {
			return &MissingArgumentError{Name: "<id>"}
		}
		if len(positional) > 1 {
			return usageErrorf("unexpected argument %q", positional[1])
		}
		return a.runShow(ctx, e, positional[0])
	default:
		maxArgs := 1
		if cmd == "events" || cmd == "today" || cmd == "now" {
			maxArgs = 0
		}
		if len(positional) > maxArgs {
			return usageErrorf("unexpected argument %q", positional[maxArgs])
		}
		return a.runEvents(ctx, e, o, cmd, positional)
	}
}

func wrapFlagError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return &UsageError{Err: err}
}

func noArgs(cmd string, args []string) error {
	if len(args) > 0 {
		return usageErrorf("%s takes no arguments, got %q", cmd, args[0])
	}
	return nil
}

// env is what every data command needs once configuration is loaded.
type env struct {
	cfg        *config.Config
	loc        *time.Location
	serializer *serialize.Serializer
}

func (a *App) setup(o *options) (*env, error) {
	if err := config.LoadEnv(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !o.verbose {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", o.configPath, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	dateFormat := cfg.DateFormat
	if o.dateFormat != "" {
		dateFormat = o.dateFormat
	}
	ser, err := serialize.New(serialize.Config{
		DateFormat:          dateFormat,
		ShowAttendees:       o.showAttendees,
		ShowRecurrenceRules: o.recurrenceRules,
		Location:            loc,
		Indent:              o.pretty,
	})
	if err != nil {
		return nil, &UsageError{Err: err}
	}

	appLog.Debug("effective config",
		"config_path", o.configPath,
		"timezone", loc.String(),
		"date_format", dateFormat,
		"ics_count", len(cfg.ICS),
		"caldav_count", len(cfg.CalDAV),
	)
	return &env{cfg: cfg, loc: loc, serializer: ser}, nil
}

func (a *App) tool(e *env) (*query.Tool, error) {
	factory := a.NewProvider
	if factory == nil {
		factory = BuildProvider
	}
	p, err := factory(e.cfg, e.loc)
	if err != nil {
		return nil, err
	}
	return query.New(p), nil
}

func (a *App) runCalendars(ctx context.Context, e *env, o *options) error {
	tool, err := a.tool(e)
	if err != nil {
		return err
	}
	cals, err := tool.Calendars(ctx, o.calendar)
	if err != nil {
		return err
	}
	return e.serializer.WriteCalendars(a.Stdout, cals)
}

func (a *App) runShow(ctx context.Context, e *env, id string) error {
	tool, err := a.tool(e)
	if err != nil {
		return err
	}
	ev, err := tool.Event(ctx, id)
	if err != nil {
		return err
	}
	return e.serializer.WriteEvent(a.Stdout, ev)
}

func (a *App) runEvents(ctx context.Context, e *env, o *options, cmd string, args []string) error {
	sortOrder, err := o.sorting()
	if err != nil {
		return err
	}
	// Validate enum flags before touching any provider.
	if _, err := o.predicate(nil); err != nil {
		return err
	}

	once := func(ctx context.Context) error {
		dates := datefmt.Parser{Location: e.loc, Now: a.now}
		w, err := resolveWindow(cmd, args, o, a.now().In(e.loc), dates)
		if err != nil {
			return err
		}
		pred, err := o.predicate(w.Predicate())
		if err != nil {
			return err
		}
		appLog.Info("events",
			"command", cmd,
			"start", w.Start.Format(time.RFC3339),
			"end", w.End.Format(time.RFC3339),
			"sort", sortOrder.String(),
		)

		tool, err := a.tool(e)
		if err != nil {
			return err
		}
		events, err := tool.Events(ctx, query.Request{
			Calendar: o.calendar,
			Start:    w.Start,
			End:      w.End,
			Filter:   pred,
			Order:    sortOrder,
			Reverse:  o.reverse,
		})
		if err != nil {
			return err
		}
		return e.serializer.WriteEvents(a.Stdout, events)
	}

	if o.watch == "" {
		return once(ctx)
	}
	return watch(ctx, o.watch, e.loc, once)
}

func (a *App) initConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	appLog.Info("config written", "path", path)
	return nil
}

// BuildProvider wires every configured ICS feed and CalDAV account into one
// provider.
func BuildProvider(cfg *config.Config, loc *time.Location) (provider.Provider, error) {
	opts := ics.ParseOptions{Me: cfg.Me, Location: loc}
	fetcher := ics.NewFetcher(cfg.Timeout())

	var sources []provider.Source
	for _, s := range cfg.ICS {
		src := ics.Source{ID: s.ID, Name: s.Name, URL: s.URL, Color: config.Color(s.Color)}
		sources = append(sources, provider.Source{ID: s.ID, Provider: ics.NewProvider(src, fetcher, opts)})
	}
	for _, s := range cfg.CalDAV {
		client := caldav.NewClient(caldav.Config{
			ID:       s.ID,
			URL:      s.URL,
			Username: s.Username,
			Password: s.ResolvePassword(),
			Color:    config.Color(s.Color),
			Timeout:  cfg.Timeout(),
		})
		if !client.IsConfigured() {
			appLog.Warn("caldav source has no credentials", "id", s.ID)
		}
		sources = append(sources, provider.Source{ID: s.ID, Provider: caldav.NewProvider(client, opts)})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w; add ics or caldav entries to the config (see init-config)", ErrNoSources)
	}
	return provider.NewMulti(sources...), nil
}
