package ics

import (
	"context"
	"fmt"
	"time"

	appLog "icaltool/internal/log"
	"icaltool/internal/model"
	"icaltool/internal/provider"
)

// Provider exposes one ICS feed as a single read-only calendar. The feed is
// fetched on first use and kept for the lifetime of the Provider.
type Provider struct {
	src     Source
	fetcher *Fetcher
	opts    ParseOptions

	parsed *ParsedCalendar
}

var _ provider.Provider = (*Provider)(nil)

func NewProvider(src Source, fetcher *Fetcher, opts ParseOptions) *Provider {
	if fetcher == nil {
		fetcher = NewFetcher(0)
	}
	return &Provider{src: src, fetcher: fetcher, opts: opts}
}

func (p *Provider) load(ctx context.Context) (*ParsedCalendar, error) {
	if p.parsed != nil {
		return p.parsed, nil
	}
	res, err := p.fetcher.Fetch(ctx, p.src)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(p.src, res.Body, p.opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", redactURL(p.src.URL), err)
	}
	p.parsed = &parsed
	return p.parsed, nil
}

func (p *Provider) calendar(parsed *ParsedCalendar) model.Calendar {
	cal := model.Calendar{
		ID:        p.src.ID,
		Title:     p.src.Name,
		Type:      model.CalendarLocal,
		Color:     p.src.Color,
		Immutable: true,
	}
	if cal.Title == "" {
		cal.Title = parsed.Name
	}
	if cal.Title == "" {
		cal.Title = p.src.ID
	}
	if cal.Color == nil {
		cal.Color = parsed.Color
	}
	if p.src.Remote() {
		cal.Type = model.CalendarSubscription
		cal.Subscribed = true
	}
	return cal
}

func (p *Provider) Calendars(ctx context.Context) ([]model.Calendar, error) {
	parsed, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return []model.Calendar{p.calendar(parsed)}, nil
}

// Events expands the feed over [start, end) when calendars include this
// feed's calendar, and returns nothing otherwise.
func (p *Provider) Events(ctx context.Context, calendars []model.Calendar, start, end time.Time) ([]*model.Event, error) {
	var want *model.Calendar
	for i := range calendars {
		if calendars[i].ID == p.src.ID {
			want = &calendars[i]
			break
		}
	}
	if want == nil {
		return nil, nil
	}

	parsed, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	cal := *want
	res, err := ExpandOccurrences(parsed.Events, ExpandConfig{
		Calendar:   &cal,
		RangeStart: start,
		RangeEnd:   end,
	})
	if err != nil {
		return nil, err
	}
	appLog.Debug("ics events expanded", "id", p.src.ID, "events", len(res.Events), "truncated", len(res.TruncatedEvents))
	return res.Events, nil
}

// EventByID returns the master of a recurring event, or the event itself,
// with its own start and end. A lone override is returned as detached.
func (p *Provider) EventByID(ctx context.Context, id string) (*model.Event, error) {
	parsed, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	cal := p.calendar(parsed)
	cal.Source = p.src.ID

	if ev, ok := FindEvent(parsed.Events, id, &cal); ok {
		return ev, nil
	}
	return nil, provider.ErrNotFound
}
