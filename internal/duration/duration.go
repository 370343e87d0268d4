// Package duration parses ISO 8601 durations of the form PnYnMnDTnHnMnS or
// PnW into calendar offsets.
//
// Examples:
//
//	PT12H            12 hours
//	P3D              3 days
//	P3DT12H          3 days, 12 hours
//	P3Y6M4DT12H30M5S 3 years, 6 months, 4 days, 12 hours, 30 minutes, 5 seconds
//	P10W             70 days
package duration

import (
	"math"
	"strconv"
	"strings"
	"time"

	appLog "icaltool/internal/log"
)

const (
	periodDesignators = "YMD"
	timeDesignators   = "HMS"
)

// Offset is a relative calendar offset. A nil component is unspecified and is
// not applied, which is different from an explicit zero.
type Offset struct {
	Years   *int
	Months  *int
	Days    *int
	Hours   *int
	Minutes *int
	Seconds *int
}

// Parse never fails: malformed input is logged and yields an Offset with every
// component unset. Only the week form honors decimal values.
func Parse(s string) Offset {
	var off Offset

	rest, ok := strings.CutPrefix(s, "P")
	if !ok {
		logInvalid(s)
		return off
	}

	if i := strings.IndexByte(rest, 'W'); i >= 0 {
		weeks, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil || math.IsNaN(weeks) || math.IsInf(weeks, 0) {
			logInvalid(s)
			return off
		}
		// 7 day week specified in ISO 8601.
		days := int(weeks * 7)
		off.Days = &days
		return off
	}

	period, clock, _ := strings.Cut(rest, "T")

	for key, val := range components(period, periodDesignators) {
		n := integerPrefix(val)
		switch key {
		case "Y":
			off.Years = &n
		case "M":
			off.Months = &n
		case "D":
			off.Days = &n
		}
	}

	for key, val := range components(clock, timeDesignators) {
		n := integerPrefix(val)
		switch key {
		case "H":
			off.Hours = &n
		case "M":
			off.Minutes = &n
		case "S":
			off.Seconds = &n
		}
	}

	return off
}

// components pairs value runs with designator runs positionally. A later
// designator overwrites an earlier one with the same key.
func components(s, designators string) map[string]string {
	if s == "" {
		return nil
	}

	values := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(designators, r)
	})
	keys := strings.FieldsFunc(s, isDigit)

	if len(values) != len(keys) {
		appLog.Warn("duration component has an invalid format", "component", s)
		return nil
	}

	out := make(map[string]string, len(keys))
	for i, key := range keys {
		out[key] = values[i]
	}
	return out
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// integerPrefix reads an optional sign and leading digits, ignoring the rest.
// Text without a numeric prefix converts to zero.
func integerPrefix(s string) int {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && isDigit(rune(s[end])) {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func logInvalid(s string) {
	appLog.Warn("duration has an invalid format; expected PnYnMnDTnHnMnS or PnW", "duration", s)
}

// IsZero reports whether no component is set.
func (o Offset) IsZero() bool {
	return o.Years == nil && o.Months == nil && o.Days == nil &&
		o.Hours == nil && o.Minutes == nil && o.Seconds == nil
}

// Apply adds the set components to t. Years and months are added first and
// clamp to the end of the target month, then days, then the time components.
func (o Offset) Apply(t time.Time) time.Time {
	if months := value(o.Years)*12 + value(o.Months); months != 0 {
		t = addMonths(t, months)
	}
	if o.Days != nil {
		t = t.AddDate(0, 0, *o.Days)
	}
	return t.Add(time.Duration(value(o.Hours))*time.Hour +
		time.Duration(value(o.Minutes))*time.Minute +
		time.Duration(value(o.Seconds))*time.Second)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func value(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// String renders the set components in ISO 8601 form, "PT0S" when none are set.
func (o Offset) String() string {
	var b strings.Builder
	b.WriteString("P")
	write := func(p *int, designator byte) {
		if p != nil {
			b.WriteString(strconv.Itoa(*p))
			b.WriteByte(designator)
		}
	}
	write(o.Years, 'Y')
	write(o.Months, 'M')
	write(o.Days, 'D')
	if o.Hours != nil || o.Minutes != nil || o.Seconds != nil {
		b.WriteString("T")
		write(o.Hours, 'H')
		write(o.Minutes, 'M')
		write(o.Seconds, 'S')
	}
	if b.Len() == 1 {
		return "PT0S"
	}
	return b.String()
}
