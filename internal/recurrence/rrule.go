package recurrence

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"

	"icaltool/internal/model"
)

// Parse reads an RRULE value such as "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2"
// into its declarative fields. A leading "RRULE:" is accepted.
func Parse(value string) (model.RecurrenceRule, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "RRULE:")
	if value == "" {
		return model.RecurrenceRule{}, fmt.Errorf("empty rule")
	}

	opt, err := rrule.StrToROption(value)
	if err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse rule %q: %w", value, err)
	}
	return FromOption(opt), nil
}

// FromOption maps rrule-go options onto the model. Frequencies finer than
// daily keep their rrule-go value, which serializes as a bare integer.
func FromOption(opt *rrule.ROption) model.RecurrenceRule {
	r := model.RecurrenceRule{
		Frequency:      frequency(opt.Freq),
		Interval:       opt.Interval,
		FirstDayOfWeek: int(weekday(opt.Wkst.Day())),
		DaysOfMonth:    opt.Bymonthday,
		DaysOfYear:     opt.Byyearday,
		WeeksOfYear:    opt.Byweekno,
		MonthsOfYear:   opt.Bymonth,
		SetPositions:   opt.Bysetpos,
	}
	if r.Interval < 1 {
		r.Interval = 1
	}

	if opt.Count > 0 || !opt.Until.IsZero() {
		r.End = &model.RecurrenceEnd{
			OccurrenceCount: opt.Count,
			EndDate:         model.Time(opt.Until),
		}
	}

	for _, d := range opt.Byweekday {
		r.DaysOfWeek = append(r.DaysOfWeek, model.DayOfWeek{
			Weekday:    weekday(d.Day()),
			WeekNumber: d.N(),
		})
	}
	return r
}

func frequency(f rrule.Frequency) model.Frequency {
	switch f {
	case rrule.DAILY:
		return model.FrequencyDaily
	case rrule.WEEKLY:
		return model.FrequencyWeekly
	case rrule.MONTHLY:
		return model.FrequencyMonthly
	case rrule.YEARLY:
		return model.FrequencyYearly
	default:
		return model.Frequency(f)
	}
}

// weekday converts rrule-go's Monday = 0 numbering to Sunday = 1.
func weekday(day int) model.Weekday {
	return model.Weekday((day+1)%7 + 1)
}
