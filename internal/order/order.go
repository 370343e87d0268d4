package order

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"icaltool/internal/model"
)

// SortOrder is the key events are sorted by.
type SortOrder int

const (
	None SortOrder = iota
	StartDate
	EndDate
	Title
)

var sortOrderNames = []string{
	None:      "none",
	StartDate: "start-date",
	EndDate:   "end-date",
	Title:     "title",
}

func (o SortOrder) String() string {
	if o >= 0 && int(o) < len(sortOrderNames) {
		return sortOrderNames[o]
	}
	return fmt.Sprintf("SortOrder(%d)", int(o))
}

// SortOrders lists the accepted sort order names.
func SortOrders() []string {
	return append([]string(nil), sortOrderNames...)
}

func ParseSortOrder(s string) (SortOrder, error) {
	for i, name := range sortOrderNames {
		if name == s {
			return SortOrder(i), nil
		}
	}
	return None, fmt.Errorf("unknown sort order %q (available options %s)", s, strings.Join(sortOrderNames, ", "))
}

// Sort orders events in place with a stable sort. When reverse is set and
// the order is not None, the sorted slice is then reversed as a whole, so
// events with equal keys also come out in reverse.
func Sort(events []*model.Event, o SortOrder, reverse bool) {
	cmp := o.compare()
	if cmp == nil {
		return
	}
	slices.SortStableFunc(events, cmp)
	if reverse {
		slices.Reverse(events)
	}
}

func (o SortOrder) compare() func(a, b *model.Event) int {
	switch o {
	case StartDate:
		return func(a, b *model.Event) int {
			// Missing start sorts first.
			return compareTimes(a.Start, b.Start, -1)
		}
	case EndDate:
		return func(a, b *model.Event) int {
			// Missing end sorts last.
			return compareTimes(a.End, b.End, 1)
		}
	case Title:
		return func(a, b *model.Event) int {
			return strings.Compare(deref(a.Title), deref(b.Title))
		}
	default:
		return nil
	}
}

// compareTimes orders instants; nilRank is the sign a nil instant takes
// against any present one.
func compareTimes(a, b *time.Time, nilRank int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return nilRank
	case b == nil:
		return -nilRank
	}
	return a.Compare(*b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
