// Package provider defines the calendar store contract the query pipeline
// reads from.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "icaltool/internal/log"
	"icaltool/internal/model"
)

var (
	// ErrAccessDenied means the store refused to hand out calendar data.
	ErrAccessDenied = errors.New("access to calendar denied")
	// ErrNotFound is returned by EventByID for unknown identifiers.
	ErrNotFound = errors.New("event not found")
)

// Provider is a read-only calendar store. Calls block until data or a
// definitive error is available.
type Provider interface {
	// Calendars lists every calendar the store exposes.
	Calendars(ctx context.Context) ([]model.Calendar, error)
	// Events returns the events of the given calendars overlapping
	// [start, end).
	Events(ctx context.Context, calendars []model.Calendar, start, end time.Time) ([]*model.Event, error)
	// EventByID returns ErrNotFound when no event has the identifier.
	EventByID(ctx context.Context, id string) (*model.Event, error)
}

// Source is a provider registered under the ID its calendars carry in
// model.Calendar.Source.
type Source struct {
	ID       string
	Provider Provider
}

// Multi merges several sources into one Provider. A failing source is logged
// and skipped, except that access denial and total failure are returned.
type Multi struct {
	sources []Source
}

func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

func (m *Multi) Calendars(ctx context.Context) ([]model.Calendar, error) {
	var (
		out  []model.Calendar
		errs []error
	)
	for _, src := range m.sources {
		cals, err := src.Provider.Calendars(ctx)
		if err != nil {
			if errors.Is(err, ErrAccessDenied) || ctx.Err() != nil {
				return nil, err
			}
			appLog.Error("list calendars failed", err, "source", src.ID)
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			continue
		}
		for _, c := range cals {
			c.Source = src.ID
			out = append(out, c)
		}
	}
	if len(m.sources) > 0 && len(errs) == len(m.sources) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (m *Multi) Events(ctx context.Context, calendars []model.Calendar, start, end time.Time) ([]*model.Event, error) {
	bySource := make(map[string][]model.Calendar)
	for _, c := range calendars {
		bySource[c.Source] = append(bySource[c.Source], c)
	}

	var (
		out    []*model.Event
		errs   []error
		polled int
	)
	for _, src := range m.sources {
		cals := bySource[src.ID]
		if len(cals) == 0 {
			continue
		}
		polled++
		evs, err := src.Provider.Events(ctx, cals, start, end)
		if err != nil {
			if errors.Is(err, ErrAccessDenied) || ctx.Err() != nil {
				return nil, err
			}
			appLog.Error("list events failed", err, "source", src.ID)
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			continue
		}
		out = append(out, evs...)
	}
	if polled > 0 && len(errs) == polled {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// EventByID asks each source in order and returns the first match.
func (m *Multi) EventByID(ctx context.Context, id string) (*model.Event, error) {
	for _, src := range m.sources {
		ev, err := src.Provider.EventByID(ctx, id)
		switch {
		case err == nil:
			return ev, nil
		case errors.Is(err, ErrNotFound):
			continue
		case errors.Is(err, ErrAccessDenied) || ctx.Err() != nil:
			return nil, err
		default:
			appLog.Error("find event failed", err, "source", src.ID, "id", id)
		}
	}
	return nil, ErrNotFound
}
