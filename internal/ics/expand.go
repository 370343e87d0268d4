package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "icaltool/internal/log"
	"icaltool/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Calendar is attached to every produced event.
	Calendar *model.Calendar

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Events []*model.Event
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences takes the events of one feed and expands them into the
// concrete events overlapping the configured window. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, reported as detached occurrences
//   - All-day semantics
//
// Every occurrence of a recurring event carries the master's rule.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping feed order.
	var uids []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if _, seen := baseByUID[ev.UID]; !seen {
			if _, seen := overridesByUID[ev.UID]; !seen {
				uids = append(uids, ev.UID)
			}
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	for _, uid := range uids {
		ov := overridesByUID[uid]
		used := make([]bool, len(ov))
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, used, cfg)
			if hitCap {
				truncated = true
			}
			result.Events = append(result.Events, occ...)
		}

		// Overrides moved into the window from an occurrence outside it, or
		// whose master is missing from the feed.
		for i, o := range ov {
			if used[i] || !overlaps(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			var rule *model.RecurrenceRule
			if bases := baseByUID[uid]; len(bases) > 0 {
				rule = bases[0].Rule
			}
			result.Events = append(result.Events, makeEvent(o, o.Start, o.End, rule, o.Recurrence, cfg.Calendar))
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

// expandEvent expands a single ParsedEvent (base event) with its possible
// overrides, returning occurrences and whether the cap was hit. Overrides
// consumed by an occurrence are marked in used.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, used []bool, cfg ExpandConfig) ([]*model.Event, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []*model.Event{makeEvent(ev, ev.Start, ev.End, nil, nil, cfg.Calendar)}, false
	}
	return expandRecurringEvent(ev, overrides, used, cfg)
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, used []bool, cfg ExpandConfig) ([]*model.Event, bool) {
	var out []*model.Event
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}

	// Ensure Dtstart is set to the event's DTSTART.
	r.DTStart(ev.Start)

	// Build a set so we can apply EXDATE.
	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// An occurrence overlaps the window when it starts before RangeEnd and
	// ends after RangeStart, so widen the lower bound by the event length.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			// Keep whole days across DST changes.
			days := int(dur.Round(24*time.Hour) / (24 * time.Hour))
			if days < 1 {
				days = 1
			}
			occEnd = occStart.AddDate(0, 0, days)
		} else {
			occEnd = occStart.Add(dur)
		}

		if i, ok := findOverrideForStart(overrides, occStart); ok {
			used[i] = true
			o := overrides[i]
			if overlaps(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, makeEvent(o, o.Start, o.End, ev.Rule, model.Time(occStart), cfg.Calendar))
			}
			continue
		}

		if !overlaps(occStart, occEnd, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeEvent(ev, occStart, occEnd, ev.Rule, nil, cfg.Calendar))
	}

	return out, hitCap
}

// findOverrideForStart finds an override event whose RECURRENCE-ID matches
// the given occurrence start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, occStart time.Time) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(occStart) {
			return i, true
		}
	}
	return -1, false
}

// makeEvent converts a (possibly overridden) ParsedEvent plus a specific
// start/end into a model.Event. A non-nil occurrence marks it detached.
func makeEvent(ev ParsedEvent, start, end time.Time, rule *model.RecurrenceRule, occurrence *time.Time, cal *model.Calendar) *model.Event {
	out := &model.Event{
		ID:           ev.UID,
		Calendar:     cal,
		URL:          model.String(ev.URL),
		Title:        model.String(ev.Summary),
		Notes:        model.String(ev.Description),
		Location:     model.String(ev.Location),
		Start:        model.Time(start),
		End:          model.Time(end),
		AllDay:       ev.AllDay,
		Status:       ev.Status,
		Availability: ev.Availability,
		Attendees:    ev.Attendees,
		Organizer:    ev.Organizer,
	}
	if rule != nil {
		out.RecurrenceRules = []model.RecurrenceRule{*rule}
	}
	if occurrence != nil {
		out.Detached = true
		out.OccurrenceDate = occurrence
	}
	return out
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd). A
// zero-length item overlaps when it starts inside the window.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(bEnd) {
		return false
	}
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart)
	}
	return aEnd.After(bStart)
}

// FindEvent returns the event with the given UID unexpanded: the master of a
// recurring event, or a detached override when no master is present.
func FindEvent(events []ParsedEvent, uid string, cal *model.Calendar) (*model.Event, bool) {
	var override *ParsedEvent
	for i := range events {
		ev := events[i]
		if ev.UID != uid {
			continue
		}
		if !ev.IsOverride {
			return makeEvent(ev, ev.Start, ev.End, ev.Rule, nil, cal), true
		}
		if override == nil {
			override = &events[i]
		}
	}
	if override != nil {
		return makeEvent(*override, override.Start, override.End, override.Rule, override.Recurrence, cal), true
	}
	return nil, false
}
