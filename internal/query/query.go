// Package query selects calendars and lists their events through a
// provider, then filters and sorts them.
package query

import (
	"context"
	"fmt"
	"time"

	"icaltool/internal/filter"
	appLog "icaltool/internal/log"
	"icaltool/internal/model"
	"icaltool/internal/order"
	"icaltool/internal/provider"
)

// Request describes one event listing.
type Request struct {
	// Calendar restricts the listing to calendars with exactly this title.
	// Empty means every calendar.
	Calendar string

	// Start and End bound the half-open window [Start, End).
	Start time.Time
	End   time.Time

	Filter  filter.Predicate
	Order   order.SortOrder
	Reverse bool
}

// Tool runs queries against a provider.
type Tool struct {
	provider provider.Provider
}

func New(p provider.Provider) *Tool {
	return &Tool{provider: p}
}

// Calendars lists the provider's calendars, keeping only those titled name
// when name is not empty.
func (t *Tool) Calendars(ctx context.Context, name string) ([]model.Calendar, error) {
	cals, err := t.provider.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	if name == "" {
		return cals, nil
	}

	var out []model.Calendar
	for _, c := range cals {
		if c.Title == name {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		appLog.Warn("no calendar matches name", "calendar", name)
	}
	return out, nil
}

// Events lists, filters and sorts the events of the selected calendars.
func (t *Tool) Events(ctx context.Context, req Request) ([]*model.Event, error) {
	cals, err := t.Calendars(ctx, req.Calendar)
	if err != nil {
		return nil, err
	}
	appLog.Debug("query window", "start", req.Start.Format(time.RFC3339), "end", req.End.Format(time.RFC3339), "calendars", len(cals))
	if len(cals) == 0 {
		return []*model.Event{}, nil
	}

	events, err := t.provider.Events(ctx, cals, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	total := len(events)
	events = filter.Apply(events, req.Filter)
	appLog.Info("sort by", "order", req.Order.String(), "reverse", req.Reverse, "events", len(events), "filtered", total-len(events))
	order.Sort(events, req.Order, req.Reverse)

	if events == nil {
		events = []*model.Event{}
	}
	return events, nil
}

// Event looks up a single event by identifier.
func (t *Tool) Event(ctx context.Context, id string) (*model.Event, error) {
	ev, err := t.provider.EventByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find event %q: %w", id, err)
	}
	return ev, nil
}
