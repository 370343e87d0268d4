package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Enumeration values mirror the raw values used by desktop calendar stores so
// that values outside the tables still serialize to a meaningful integer.

type EventStatus int

const (
	EventStatusNone EventStatus = iota
	EventStatusConfirmed
	EventStatusTentative
	EventStatusCanceled
)

func (s EventStatus) String() string {
	switch s {
	case EventStatusNone:
		return "none"
	case EventStatusConfirmed:
		return "confirmed"
	case EventStatusTentative:
		return "tentative"
	case EventStatusCanceled:
		return "canceled"
	default:
		return strconv.Itoa(int(s))
	}
}

type Availability int

const (
	AvailabilityNotSupported Availability = iota - 1
	AvailabilityBusy
	AvailabilityFree
	AvailabilityTentative
	AvailabilityUnavailable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityNotSupported:
		return "not supported"
	case AvailabilityBusy:
		return "busy"
	case AvailabilityFree:
		return "free"
	case AvailabilityTentative:
		return "tentative"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return strconv.Itoa(int(a))
	}
}

type ParticipantStatus int

const (
	ParticipantUnknown ParticipantStatus = iota
	ParticipantPending
	ParticipantAccepted
	ParticipantDeclined
	ParticipantTentative
	ParticipantDelegated
	ParticipantCompleted
	ParticipantInProcess
)

var participantStatusNames = []string{
	ParticipantUnknown:   "unknown",
	ParticipantPending:   "pending",
	ParticipantAccepted:  "accepted",
	ParticipantDeclined:  "declined",
	ParticipantTentative: "tentative",
	ParticipantDelegated: "delegated",
	ParticipantCompleted: "completed",
	ParticipantInProcess: "in process",
}

func (s ParticipantStatus) String() string {
	if s >= 0 && int(s) < len(participantStatusNames) {
		return participantStatusNames[s]
	}
	return strconv.Itoa(int(s))
}

// ParticipantStatuses lists the display names accepted by
// ParseParticipantStatus.
func ParticipantStatuses() []string {
	return append([]string(nil), participantStatusNames...)
}

// ParseParticipantStatus accepts a display name; "in-process" is accepted as
// a spelling of "in process".
func ParseParticipantStatus(s string) (ParticipantStatus, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", " ")
	for i, name := range participantStatusNames {
		if name == norm {
			return ParticipantStatus(i), nil
		}
	}
	return ParticipantUnknown, fmt.Errorf("unknown participant status %q (available options %s)",
		s, strings.Join(participantStatusNames, ", "))
}

type ParticipantRole int

const (
	RoleUnknown ParticipantRole = iota
	RoleRequired
	RoleOptional
	RoleChair
	RoleNonParticipant
)

func (r ParticipantRole) String() string {
	switch r {
	case RoleUnknown:
		return "unknown"
	case RoleRequired:
		return "required"
	case RoleOptional:
		return "optional"
	case RoleChair:
		return "chair"
	case RoleNonParticipant:
		return "non participant"
	default:
		return strconv.Itoa(int(r))
	}
}

type ParticipantType int

const (
	ParticipantTypeUnknown ParticipantType = iota
	ParticipantTypePerson
	ParticipantTypeRoom
	ParticipantTypeResource
	ParticipantTypeGroup
)

func (t ParticipantType) String() string {
	switch t {
	case ParticipantTypeUnknown:
		return "unknown"
	case ParticipantTypePerson:
		return "person"
	case ParticipantTypeRoom:
		return "room"
	case ParticipantTypeResource:
		return "resource"
	case ParticipantTypeGroup:
		return "group"
	default:
		return strconv.Itoa(int(t))
	}
}

type Frequency int

const (
	FrequencyDaily Frequency = iota
	FrequencyWeekly
	FrequencyMonthly
	FrequencyYearly
)

func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	case FrequencyMonthly:
		return "monthly"
	case FrequencyYearly:
		return "yearly"
	default:
		return strconv.Itoa(int(f))
	}
}

// Weekday counts from Sunday = 1.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func (d Weekday) String() string {
	switch d {
	case Sunday:
		return "sunday"
	case Monday:
		return "monday"
	case Tuesday:
		return "tuesday"
	case Wednesday:
		return "wednesday"
	case Thursday:
		return "thursday"
	case Friday:
		return "friday"
	case Saturday:
		return "saturday"
	default:
		return strconv.Itoa(int(d))
	}
}

type CalendarType int

const (
	CalendarLocal CalendarType = iota
	CalendarCalDAV
	CalendarExchange
	CalendarSubscription
	CalendarBirthday
)

func (t CalendarType) String() string {
	switch t {
	case CalendarLocal:
		return "local"
	case CalendarCalDAV:
		return "calDAV"
	case CalendarExchange:
		return "exchange"
	case CalendarSubscription:
		return "subscription"
	case CalendarBirthday:
		return "birthday"
	default:
		return strconv.Itoa(int(t))
	}
}
