package cli

import (
	"time"

	"icaltool/internal/datefmt"
	"icaltool/internal/duration"
	"icaltool/internal/filter"
)

// Window is the time range an event command queries.
type Window struct {
	Start time.Time
	End   time.Time
	// At, when set, keeps only events in progress at that instant.
	At *time.Time
}

// Predicate is the extra filter implied by the window, or nil.
func (w Window) Predicate() filter.Predicate {
	if w.At == nil {
		return nil
	}
	return filter.At(*w.At)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}

func dayOf(t time.Time) Window {
	start := startOfDay(t)
	return Window{Start: start, End: nextDay(start)}
}

// resolveWindow computes the query window of an event command. now must be
// in the zone day boundaries are computed in.
func resolveWindow(cmd string, args []string, o *options, now time.Time, dates datefmt.Parser) (Window, error) {
	arg := func(name string) (string, error) {
		if len(args) == 0 {
			return "", &MissingArgumentError{Name: name}
		}
		return args[0], nil
	}

	switch cmd {
	case "events":
		if o.start == "" {
			return Window{}, &MissingArgumentError{Name: "--start <date>"}
		}
		if o.end == "" {
			return Window{}, &MissingArgumentError{Name: "--end <date>"}
		}
		return Window{Start: dates.Parse(o.start), End: dates.Parse(o.end)}, nil

	case "today":
		return dayOf(now), nil

	case "now":
		w := dayOf(now)
		w.At = &now
		return w, nil

	case "at":
		s, err := arg("<date>")
		if err != nil {
			return Window{}, err
		}
		t := dates.Parse(s).In(now.Location())
		w := dayOf(t)
		w.At = &t
		return w, nil

	case "on":
		s, err := arg("<date>")
		if err != nil {
			return Window{}, err
		}
		return dayOf(dates.Parse(s).In(now.Location())), nil

	case "in":
		s, err := arg("<duration>")
		if err != nil {
			return Window{}, err
		}
		t := duration.Parse(s).Apply(now)
		return Window{Start: t, End: nextDay(t), At: &t}, nil
	}
	return Window{}, usageErrorf("unknown command %q", cmd)
}
