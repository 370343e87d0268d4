// Package serialize writes calendar entities as JSON objects with a fixed key
// order. Key names, including their historical spellings ("availabilty",
// "reccurence-end", "occurence-count", "setPositions"), are part of the
// output format and must not change.
package serialize

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"icaltool/internal/datefmt"
	"icaltool/internal/model"
)

// DefaultDateFormat is the output date pattern used when none is configured.
// The doubled colon is intentional.
const DefaultDateFormat = "yyyy-MM-dd'T'HH:mm::ssZZZZZ"

const noIdentifier = "<no identifier>"

// Config controls what is written and how instants are rendered.
type Config struct {
	// DateFormat is an LDML date pattern.
	DateFormat string
	// ShowAttendees adds the attendees array to events.
	ShowAttendees bool
	// ShowRecurrenceRules adds rule details to recurring events.
	ShowRecurrenceRules bool
	// Location is the zone instants are rendered in; nil means time.Local.
	Location *time.Location
	// Indent switches to multi-line output.
	Indent bool
}

func DefaultConfig() Config {
	return Config{DateFormat: DefaultDateFormat}
}

// Serializer is safe for concurrent use; it holds only immutable state.
type Serializer struct {
	cfg   Config
	dates *datefmt.Pattern
	loc   *time.Location
}

func New(cfg Config) (*Serializer, error) {
	if cfg.DateFormat == "" {
		cfg.DateFormat = DefaultDateFormat
	}
	dates, err := datefmt.Compile(cfg.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("output date format: %w", err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Serializer{cfg: cfg, dates: dates, loc: loc}, nil
}

func (s *Serializer) newEncoder(w io.Writer) *jsontext.Encoder {
	// Provider text is not guaranteed to be valid UTF-8; it is written with
	// replacement characters rather than failing the whole document.
	opts := []jsontext.Options{jsontext.AllowInvalidUTF8(true)}
	if s.cfg.Indent {
		opts = append(opts, jsontext.Multiline(true), jsontext.WithIndent("  "))
	}
	return jsontext.NewEncoder(w, opts...)
}

// WriteEvents writes events as one JSON array.
func (s *Serializer) WriteEvents(w io.Writer, events []*model.Event) error {
	out := &writer{enc: s.newEncoder(w)}
	out.tok(jsontext.ArrayStart)
	for _, ev := range events {
		s.event(out, ev)
	}
	out.tok(jsontext.ArrayEnd)
	return out.err
}

// WriteCalendars writes calendars as one JSON array.
func (s *Serializer) WriteCalendars(w io.Writer, cals []model.Calendar) error {
	out := &writer{enc: s.newEncoder(w)}
	out.tok(jsontext.ArrayStart)
	for i := range cals {
		s.calendar(out, &cals[i])
	}
	out.tok(jsontext.ArrayEnd)
	return out.err
}

// WriteEvent writes a single event object.
func (s *Serializer) WriteEvent(w io.Writer, ev *model.Event) error {
	out := &writer{enc: s.newEncoder(w)}
	s.event(out, ev)
	return out.err
}

// MarshalEvent returns the JSON object for one event.
func (s *Serializer) MarshalEvent(ev *model.Event) (jsontext.Value, error) {
	var buf bytes.Buffer
	if err := s.WriteEvent(&buf, ev); err != nil {
		return nil, err
	}
	return jsontext.Value(bytes.TrimSpace(buf.Bytes())), nil
}

// MarshalCalendar returns the JSON object for one calendar.
func (s *Serializer) MarshalCalendar(cal *model.Calendar) (jsontext.Value, error) {
	var buf bytes.Buffer
	out := &writer{enc: s.newEncoder(&buf)}
	s.calendar(out, cal)
	if out.err != nil {
		return nil, out.err
	}
	return jsontext.Value(bytes.TrimSpace(buf.Bytes())), nil
}

func (s *Serializer) date(t time.Time) string {
	return s.dates.Format(t.In(s.loc))
}

func (s *Serializer) event(out *writer, ev *model.Event) {
	out.tok(jsontext.ObjectStart)

	id := ev.ID
	if id == "" {
		id = noIdentifier
	}
	out.str("uid", id)
	if ev.Calendar != nil {
		out.str("calendar-id", ev.Calendar.ID)
	}
	out.optStr("url", ev.URL)
	out.optStr("title", ev.Title)
	out.optStr("notes", ev.Notes)
	out.optStr("location", ev.Location)

	if ev.Start != nil {
		out.str("start", s.date(*ev.Start))
	}
	if ev.End != nil {
		out.str("end", s.date(*ev.End))
	}
	out.boolean("all-day", ev.AllDay)

	recurrent := ev.HasRecurrenceRules()
	out.boolean("recurrent", recurrent)
	if recurrent && s.cfg.ShowRecurrenceRules {
		out.key("recurrence-rules")
		out.tok(jsontext.ArrayStart)
		for i := range ev.RecurrenceRules {
			s.rule(out, &ev.RecurrenceRules[i])
		}
		out.tok(jsontext.ArrayEnd)
		out.boolean("detached", ev.Detached)
		if ev.OccurrenceDate != nil {
			out.str("occurrence-date", s.date(*ev.OccurrenceDate))
		}
	}

	out.str("status", ev.Status.String())
	out.str("availabilty", ev.Availability.String())
	out.str("my-status", ev.CurrentUserStatus().String())

	if s.cfg.ShowAttendees {
		out.key("attendees")
		if len(ev.Attendees) == 0 {
			out.tok(jsontext.Null)
		} else {
			out.tok(jsontext.ArrayStart)
			for i := range ev.Attendees {
				participant(out, &ev.Attendees[i])
			}
			out.tok(jsontext.ArrayEnd)
		}
	}

	out.key("organizer")
	if ev.Organizer == nil {
		out.tok(jsontext.Null)
	} else {
		participant(out, ev.Organizer)
	}

	if color, ok := ev.CalendarColor(); ok {
		out.str("color", Color(color))
	}

	out.tok(jsontext.ObjectEnd)
}

func (s *Serializer) calendar(out *writer, cal *model.Calendar) {
	out.tok(jsontext.ObjectStart)
	out.str("uid", cal.ID)
	out.str("title", cal.Title)
	out.str("type", cal.Type.String())
	out.str("color", Color(cal.Color))
	out.boolean("allow-content-modification", cal.AllowsModification)
	out.boolean("subscribed", cal.Subscribed)
	out.boolean("immutable", cal.Immutable)
	out.tok(jsontext.ObjectEnd)
}

func participant(out *writer, p *model.Participant) {
	out.tok(jsontext.ObjectStart)
	out.optStr("url", p.URL)
	out.optStr("name", p.Name)
	out.str("status", p.Status.String())
	out.str("role", p.Role.String())
	out.str("type", p.Type.String())
	out.boolean("current_user", p.CurrentUser)
	out.tok(jsontext.ObjectEnd)
}

func (s *Serializer) rule(out *writer, r *model.RecurrenceRule) {
	out.tok(jsontext.ObjectStart)

	out.key("reccurence-end")
	if r.End == nil {
		out.tok(jsontext.Null)
	} else {
		out.tok(jsontext.ObjectStart)
		out.integer("occurence-count", r.End.OccurrenceCount)
		if r.End.EndDate != nil {
			out.str("end-date", s.date(*r.End.EndDate))
		}
		out.tok(jsontext.ObjectEnd)
	}

	out.str("frequency", r.Frequency.String())
	out.integer("interval", r.Interval)
	out.integer("first-day-of-the-week", r.FirstDayOfWeek)

	if len(r.DaysOfWeek) > 0 {
		out.key("days-of-the-week")
		out.tok(jsontext.ArrayStart)
		for _, d := range r.DaysOfWeek {
			out.tok(jsontext.ObjectStart)
			out.str("day-of-the-week", d.Weekday.String())
			out.integer("week-number", d.WeekNumber)
			out.tok(jsontext.ObjectEnd)
		}
		out.tok(jsontext.ArrayEnd)
	}
	out.ints("days-of-the-month", r.DaysOfMonth)
	out.ints("days-of-the-year", r.DaysOfYear)
	out.ints("weeks-of-the-year", r.WeeksOfYear)
	out.ints("months-of-the-year", r.MonthsOfYear)
	out.ints("setPositions", r.SetPositions)

	out.tok(jsontext.ObjectEnd)
}

// Color renders RGB channels as "#rrggbb"; alpha is dropped. A nil color is
// "#000".
func Color(c *model.Color) string {
	if c == nil {
		return "#000"
	}
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) int {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int(math.Round(v * 255))
}

// writer keeps the first encoding error and turns later writes into no-ops.
type writer struct {
	enc *jsontext.Encoder
	err error
}

func (w *writer) tok(t jsontext.Token) {
	if w.err == nil {
		w.err = w.enc.WriteToken(t)
	}
}

func (w *writer) key(k string) {
	w.tok(jsontext.String(k))
}

func (w *writer) str(k, v string) {
	w.key(k)
	w.tok(jsontext.String(v))
}

func (w *writer) optStr(k string, v *string) {
	w.key(k)
	if v == nil {
		w.tok(jsontext.Null)
		return
	}
	w.tok(jsontext.String(*v))
}

func (w *writer) boolean(k string, v bool) {
	w.key(k)
	w.tok(jsontext.Bool(v))
}

func (w *writer) integer(k string, v int) {
	w.key(k)
	w.tok(jsontext.Int(int64(v)))
}

func (w *writer) ints(k string, vs []int) {
	if len(vs) == 0 {
		return
	}
	w.key(k)
	w.tok(jsontext.ArrayStart)
	for _, v := range vs {
		w.tok(jsontext.Int(int64(v)))
	}
	w.tok(jsontext.ArrayEnd)
}
