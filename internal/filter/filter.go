package filter

import (
	"fmt"
	"strings"
	"time"

	"icaltool/internal/model"
)

// Option selects how a boolean event flag restricts the result.
type Option int

const (
	// Show ignores the flag.
	Show Option = iota
	// DontShow keeps events whose flag is false.
	DontShow
	// Only keeps events whose flag is true.
	Only
)

var optionNames = []string{
	Show:     "show",
	DontShow: "dont-show",
	Only:     "only",
}

func (o Option) String() string {
	if o >= 0 && int(o) < len(optionNames) {
		return optionNames[o]
	}
	return fmt.Sprintf("Option(%d)", int(o))
}

// Options lists the accepted option names.
func Options() []string {
	return append([]string(nil), optionNames...)
}

func ParseOption(s string) (Option, error) {
	for i, name := range optionNames {
		if name == s {
			return Option(i), nil
		}
	}
	return Show, fmt.Errorf("unknown filter option %q (available options %s)", s, strings.Join(optionNames, ", "))
}

// Apply reports whether an event with the given flag passes.
func (o Option) Apply(flag bool) bool {
	switch o {
	case DontShow:
		return !flag
	case Only:
		return flag
	default:
		return true
	}
}

// Predicate decides whether an event is kept. A nil Predicate keeps
// everything.
type Predicate func(*model.Event) bool

// Build composes the event predicate. It returns nil when nothing would be
// filtered out, so callers can skip the filtering pass.
func Build(status *model.ParticipantStatus, allDay, recurring Option, extra Predicate) Predicate {
	if allDay == Show && recurring == Show && extra == nil && status == nil {
		return nil
	}
	return func(e *model.Event) bool {
		return allDay.Apply(e.AllDay) &&
			recurring.Apply(e.HasRecurrenceRules()) &&
			(extra == nil || extra(e)) &&
			(status == nil || e.CurrentUserStatus() == *status)
	}
}

// And combines predicates. Nil operands count as true, and the result is nil
// when every operand is nil.
func And(preds ...Predicate) Predicate {
	var live []Predicate
	for _, p := range preds {
		if p != nil {
			live = append(live, p)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(e *model.Event) bool {
		for _, p := range live {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// At keeps events in progress at t: start <= t < end. A missing start is
// treated as the distant past and a missing end as the distant future.
func At(t time.Time) Predicate {
	return func(e *model.Event) bool {
		if e.Start != nil && e.Start.After(t) {
			return false
		}
		return e.End == nil || t.Before(*e.End)
	}
}

// Apply returns the events that satisfy pred, preserving order. A nil pred
// returns events unchanged.
func Apply(events []*model.Event, pred Predicate) []*model.Event {
	if pred == nil {
		return events
	}
	out := make([]*model.Event, 0, len(events))
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
