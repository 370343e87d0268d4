package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"icaltool/internal/duration"
	appLog "icaltool/internal/log"
	"icaltool/internal/model"
	"icaltool/internal/recurrence"
)

const (
	propCalName     = "X-WR-CALNAME"
	propCalColor    = "X-APPLE-CALENDAR-COLOR"
	propBusyStatus  = "X-MICROSOFT-CDO-BUSYSTATUS"
	propRecurrentID = "RECURRENCE-ID"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion will operate on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	Status       model.EventStatus
	Availability model.Availability

	Organizer *model.Participant
	Attendees []model.Participant

	RawRRule string
	// Rule is the declarative form of RawRRule, nil when absent or invalid.
	Rule       *model.RecurrenceRule
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// ParsedCalendar is the feed-level metadata plus its events.
type ParsedCalendar struct {
	Name   string
	Color  *model.Color
	Events []ParsedEvent
}

// ParseOptions tunes how a payload is interpreted.
type ParseOptions struct {
	// Me lists the current user's calendar addresses, with or without a
	// "mailto:" prefix. Matching attendees are flagged as the current user.
	Me []string
	// Location resolves floating times. Nil means time.Local.
	Location *time.Location
}

// ParseICS parses a single ICS payload.
//
//   - TZID parameters are resolved with the system zone database; floating
//     times use opts.Location.
//   - All-day events are detected from the DTSTART value format and pinned to
//     local midnight.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded; expansion is
//     done in expand.go.
func ParseICS(src Source, body []byte, opts ParseOptions) (ParsedCalendar, error) {
	var out ParsedCalendar
	if len(body) == 0 {
		return out, errors.New("empty ICS body")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return out, err
	}

	for _, p := range cal.CalendarProperties {
		switch strings.ToUpper(p.IANAToken) {
		case propCalName:
			out.Name = p.Value
		case propCalColor:
			if c, err := model.ParseColor(p.Value); err == nil {
				out.Color = c
			}
		}
	}

	me := newIdentity(opts.Me)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, me, opts.Location)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "id", src.ID, "url", redactURL(src.URL), "err", perr)
			continue
		}
		out.Events = append(out.Events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(out.Events))
	return out, nil
}

func parseVEvent(src Source, ve *ical.VEvent, me identity, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}

	// SEQUENCE (optional, used for overrides/versioning)
	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}

	out.Summary = textUnescaper.Replace(propValue(ve, ical.ComponentPropertySummary))
	out.Description = textUnescaper.Replace(propValue(ve, ical.ComponentPropertyDescription))
	out.Location = textUnescaper.Replace(propValue(ve, ical.ComponentPropertyLocation))
	out.URL = propValue(ve, ical.ComponentPropertyUrl)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parsePropTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.AllDay = allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		p := ve.GetProperty(ical.ComponentPropertyDtEnd)
		end, _, err := parsePropTime(p.Value, p.ICalParameters, loc)
		if err != nil {
			return out, err
		}
		out.End = end
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		out.End = duration.Parse(ve.GetProperty(ical.ComponentPropertyDuration).Value).Apply(start)
	case allDay:
		out.End = start.AddDate(0, 0, 1)
	default:
		out.End = start
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}

	out.Status = eventStatus(propValue(ve, ical.ComponentPropertyStatus))
	out.Availability = availability(propValue(ve, propBusyStatus), propValue(ve, ical.ComponentPropertyTransp))

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		org := participant(p.Value, p.ICalParameters, me)
		out.Organizer = &org
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		out.Attendees = append(out.Attendees, participant(p.Value, p.ICalParameters, me))
	}

	// RRULE: raw value for expansion, declarative form for output.
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
		if r, err := recurrence.Parse(p.Value); err == nil {
			out.Rule = &r
		} else {
			appLog.Warn("ics rrule ignored", "uid", out.UID, "rrule", p.Value, "err", err)
			out.RawRRule = ""
		}
	}

	// EXDATE (can appear multiple times, each with a list of values)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parsePropTime(part, p.ICalParameters, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID (overridden instance)
	if p := ve.GetProperty(propRecurrentID); p != nil {
		if t, _, err := parsePropTime(p.Value, p.ICalParameters, loc); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// textUnescaper undoes RFC 5545 TEXT escaping.
var textUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// parsePropTime parses a DATE or DATE-TIME value honoring its TZID and VALUE
// parameters. Dates are pinned to midnight in loc and reported as all-day.
func parsePropTime(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(v, "T")
	if vs := params[string(ical.ParameterValue)]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		if len(v) > 8 {
			v = v[:8]
		}
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	tzLoc := loc
	if tzs := params[string(ical.ParameterTzid)]; len(tzs) > 0 && tzs[0] != "" {
		if l, err := time.LoadLocation(strings.Trim(tzs[0], `"`)); err == nil {
			tzLoc = l
		} else {
			appLog.Warn("ics unknown TZID, using floating time", "tzid", tzs[0])
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, tzLoc)
	return t, false, err
}

func eventStatus(v string) model.EventStatus {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "CONFIRMED":
		return model.EventStatusConfirmed
	case "TENTATIVE":
		return model.EventStatusTentative
	case "CANCELLED", "CANCELED":
		return model.EventStatusCanceled
	default:
		return model.EventStatusNone
	}
}

// availability prefers the Outlook busy status and falls back to TRANSP.
func availability(busyStatus, transp string) model.Availability {
	switch strings.ToUpper(strings.TrimSpace(busyStatus)) {
	case "FREE":
		return model.AvailabilityFree
	case "TENTATIVE":
		return model.AvailabilityTentative
	case "BUSY":
		return model.AvailabilityBusy
	case "OOF":
		return model.AvailabilityUnavailable
	}
	if strings.EqualFold(strings.TrimSpace(transp), "TRANSPARENT") {
		return model.AvailabilityFree
	}
	return model.AvailabilityBusy
}

func participant(value string, params map[string][]string, me identity) model.Participant {
	p := model.Participant{
		URL:         model.String(strings.TrimSpace(value)),
		Status:      model.ParticipantPending,
		Role:        model.RoleRequired,
		Type:        model.ParticipantTypePerson,
		CurrentUser: me.matches(value),
	}
	if cn := params[string(ical.ParameterCn)]; len(cn) > 0 {
		p.Name = model.String(strings.Trim(cn[0], `"`))
	}
	if vs := params[string(ical.ParameterParticipationStatus)]; len(vs) > 0 {
		p.Status = participantStatus(vs[0])
	}
	if vs := params[string(ical.ParameterRole)]; len(vs) > 0 {
		p.Role = participantRole(vs[0])
	}
	if vs := params[string(ical.ParameterCutype)]; len(vs) > 0 {
		p.Type = participantType(vs[0])
	}
	return p
}

func participantStatus(v string) model.ParticipantStatus {
	switch strings.ToUpper(v) {
	case "NEEDS-ACTION":
		return model.ParticipantPending
	case "ACCEPTED":
		return model.ParticipantAccepted
	case "DECLINED":
		return model.ParticipantDeclined
	case "TENTATIVE":
		return model.ParticipantTentative
	case "DELEGATED":
		return model.ParticipantDelegated
	case "COMPLETED":
		return model.ParticipantCompleted
	case "IN-PROCESS":
		return model.ParticipantInProcess
	default:
		return model.ParticipantUnknown
	}
}

func participantRole(v string) model.ParticipantRole {
	switch strings.ToUpper(v) {
	case "REQ-PARTICIPANT":
		return model.RoleRequired
	case "OPT-PARTICIPANT":
		return model.RoleOptional
	case "CHAIR":
		return model.RoleChair
	case "NON-PARTICIPANT":
		return model.RoleNonParticipant
	default:
		return model.RoleUnknown
	}
}

func participantType(v string) model.ParticipantType {
	switch strings.ToUpper(v) {
	case "INDIVIDUAL":
		return model.ParticipantTypePerson
	case "ROOM":
		return model.ParticipantTypeRoom
	case "RESOURCE":
		return model.ParticipantTypeResource
	case "GROUP":
		return model.ParticipantTypeGroup
	default:
		return model.ParticipantTypeUnknown
	}
}

// identity is the set of addresses that denote the current user.
type identity map[string]struct{}

func newIdentity(addrs []string) identity {
	id := make(identity, len(addrs))
	for _, a := range addrs {
		if a = normalizeAddress(a); a != "" {
			id[a] = struct{}{}
		}
	}
	return id
}

func (id identity) matches(addr string) bool {
	_, ok := id[normalizeAddress(addr)]
	return ok
}

func normalizeAddress(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	return strings.TrimPrefix(a, "mailto:")
}
