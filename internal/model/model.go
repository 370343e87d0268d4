package model

import "time"

// Calendar is a read-only snapshot of a calendar exposed by a provider.
type Calendar struct {
	// Source is the configured provider source the calendar came from. It is
	// used to route event queries and is never serialized.
	Source string

	ID    string
	Title string
	Type  CalendarType

	// Color is nil when the provider knows no display color.
	Color *Color

	AllowsModification bool
	Subscribed         bool
	Immutable          bool
}

// Color is an RGBA display color with components in [0,1].
type Color struct {
	R, G, B, A float64
}

// Event is a single calendar item, or a single occurrence of a recurring one,
// as returned by a provider for a time window.
type Event struct {
	ID string

	// Calendar is the owning calendar, nil when the provider could not
	// attribute the event.
	Calendar *Calendar

	URL      *string
	Title    *string
	Notes    *string
	Location *string

	// Start/End are nil for open-ended items.
	Start *time.Time
	End   *time.Time

	AllDay bool

	// RecurrenceRules is non-empty only for recurring events.
	RecurrenceRules []RecurrenceRule

	// Detached marks a modified occurrence of a recurring event.
	// OccurrenceDate is the original start of that occurrence.
	Detached       bool
	OccurrenceDate *time.Time

	Status       EventStatus
	Availability Availability

	Attendees []Participant
	Organizer *Participant
}

// HasRecurrenceRules reports whether the event repeats.
func (e *Event) HasRecurrenceRules() bool {
	return len(e.RecurrenceRules) > 0
}

// CurrentUserStatus is the participation status of the first attendee marked
// as the current user, or ParticipantUnknown.
func (e *Event) CurrentUserStatus() ParticipantStatus {
	for _, a := range e.Attendees {
		if a.CurrentUser {
			return a.Status
		}
	}
	return ParticipantUnknown
}

// CalendarColor is the owning calendar's color. The second result is false
// when the event has no calendar at all; a calendar without a color yields
// (nil, true).
func (e *Event) CalendarColor() (*Color, bool) {
	if e.Calendar == nil {
		return nil, false
	}
	return e.Calendar.Color, true
}

// Participant is an attendee or organizer of an event.
type Participant struct {
	URL         *string
	Name        *string
	Status      ParticipantStatus
	Role        ParticipantRole
	Type        ParticipantType
	CurrentUser bool
}

// RecurrenceRule holds the declarative fields of an RRULE. Occurrences are
// never expanded from it.
type RecurrenceRule struct {
	End       *RecurrenceEnd
	Frequency Frequency
	Interval  int
	// FirstDayOfWeek is 1 (Sunday) through 7 (Saturday).
	FirstDayOfWeek int

	DaysOfWeek   []DayOfWeek
	DaysOfMonth  []int
	DaysOfYear   []int
	WeeksOfYear  []int
	MonthsOfYear []int
	SetPositions []int
}

// RecurrenceEnd is the end condition of a rule. OccurrenceCount is zero when
// the rule ends by date or never.
type RecurrenceEnd struct {
	OccurrenceCount int
	EndDate         *time.Time
}

// DayOfWeek is a BYDAY entry: a weekday and an optional ordinal within the
// period (0 = every such weekday, -1 = last).
type DayOfWeek struct {
	Weekday    Weekday
	WeekNumber int
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Time returns a pointer to t, or nil for the zero time.
func Time(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
