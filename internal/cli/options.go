package cli

import (
	"flag"
	"fmt"
	"strings"

	"icaltool/internal/config"
	"icaltool/internal/filter"
	"icaltool/internal/model"
	"icaltool/internal/order"
)

// options holds every flag value. All flag sets of one invocation bind to
// the same options so flags may appear before or after the command name.
type options struct {
	configPath string
	envFile    string
	verbose    bool
	pretty     bool
	watch      string

	calendar        string
	myStatus        string
	allDay          string
	recurring       string
	sortOrder       string
	reverse         bool
	showAttendees   bool
	recurrenceRules bool
	dateFormat      string

	start string
	end   string
}

func newOptions() *options {
	return &options{
		configPath: config.DefaultPath(),
		allDay:     filter.Show.String(),
		recurring:  filter.Show.String(),
		sortOrder:  order.None.String(),
	}
}

// register binds o to fs, using the current values as defaults.
func (o *options) register(fs *flag.FlagSet) {
	str := func(p *string, short, long, usage string) {
		fs.StringVar(p, long, *p, usage)
		if short != "" {
			fs.StringVar(p, short, *p, "shorthand for --"+long)
		}
	}
	boolean := func(p *bool, short, long, usage string) {
		fs.BoolVar(p, long, *p, usage)
		if short != "" {
			fs.BoolVar(p, short, *p, "shorthand for --"+long)
		}
	}

	str(&o.configPath, "", "config", "Path to config file")
	str(&o.envFile, "", "env-file", "Load environment variables from this dotenv file (default .env if present)")
	boolean(&o.verbose, "v", "verbose", "Log debug details to stderr")
	boolean(&o.pretty, "", "pretty", "Indent JSON output")
	str(&o.watch, "", "watch", "Re-run the query on this cron schedule (e.g. \"*/5 * * * *\")")

	str(&o.calendar, "c", "calendar", "Name of calendar to use")
	str(&o.myStatus, "m", "my-status", "Show only events with my status equal to specified (available options "+strings.Join(model.ParticipantStatuses(), ", ")+")")
	str(&o.allDay, "a", "all-day", "Filter all-day events (available options "+strings.Join(filter.Options(), ", ")+")")
	str(&o.recurring, "u", "recurring", "Filter recurring events (available options "+strings.Join(filter.Options(), ", ")+")")
	str(&o.sortOrder, "s", "sort-order", "Event sort order (available options "+strings.Join(order.SortOrders(), ", ")+")")
	boolean(&o.reverse, "r", "reverse-order", "Sort in reverse order")
	boolean(&o.showAttendees, "", "show-attendees", "Show event attendees")
	boolean(&o.recurrenceRules, "", "recurrence-rules", "Show event recurrence rules")
	str(&o.dateFormat, "f", "date-format", "Output date format (default from config)")

	str(&o.start, "", "start", "Events ending after, see date-formats (events command)")
	str(&o.end, "", "end", "Events starting before, see date-formats (events command)")
}

// predicate builds the filter from the enum flags. Unknown values are usage
// errors.
func (o *options) predicate(extra filter.Predicate) (filter.Predicate, error) {
	allDay, err := filter.ParseOption(o.allDay)
	if err != nil {
		return nil, &UsageError{Err: fmt.Errorf("--all-day: %w", err)}
	}
	recurring, err := filter.ParseOption(o.recurring)
	if err != nil {
		return nil, &UsageError{Err: fmt.Errorf("--recurring: %w", err)}
	}

	var status *model.ParticipantStatus
	if o.myStatus != "" {
		s, err := model.ParseParticipantStatus(o.myStatus)
		if err != nil {
			return nil, &UsageError{Err: fmt.Errorf("--my-status: %w", err)}
		}
		status = &s
	}
	return filter.Build(status, allDay, recurring, extra), nil
}

func (o *options) sorting() (order.SortOrder, error) {
	s, err := order.ParseSortOrder(o.sortOrder)
	if err != nil {
		return order.None, &UsageError{Err: fmt.Errorf("--sort-order: %w", err)}
	}
	return s, nil
}

// parseInterspersed parses flags that may follow positional arguments and
// returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		// Everything after "--" is positional.
		if n := len(args) - len(rest); n > 0 && args[n-1] == "--" {
			return append(positional, rest...), nil
		}
		args = rest
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
