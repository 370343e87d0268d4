package caldav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"icaltool/internal/ics"
	appLog "icaltool/internal/log"
	"icaltool/internal/model"
	"icaltool/internal/provider"
)

// Provider exposes every event calendar of a CalDAV account.
type Provider struct {
	client *Client
	opts   ics.ParseOptions
}

var _ provider.Provider = (*Provider)(nil)

// NewProvider wraps client. opts controls how calendar objects are parsed.
func NewProvider(client *Client, opts ics.ParseOptions) *Provider {
	return &Provider{client: client, opts: opts}
}

// wrap maps failures after a 401/403 onto provider.ErrAccessDenied.
func (p *Provider) wrap(op string, err error) error {
	if p.client.denied() {
		return fmt.Errorf("%w: caldav %s: %s: %v", provider.ErrAccessDenied, p.client.cfg.ID, op, err)
	}
	return fmt.Errorf("caldav %s: %s: %w", p.client.cfg.ID, op, err)
}

// Calendars discovers the user's calendar home and lists the calendars that
// can hold events.
func (p *Provider) Calendars(ctx context.Context) ([]model.Calendar, error) {
	client, err := p.client.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, p.wrap("find principal", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, p.wrap("find home set", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, p.wrap("find calendars", err)
	}

	var result []model.Calendar
	for _, cal := range cals {
		if !supportsEvents(cal) {
			appLog.Debug("caldav calendar skipped", "source", p.client.cfg.ID, "path", cal.Path)
			continue
		}
		result = append(result, p.calendar(cal))
	}
	appLog.Debug("caldav calendars discovered", "source", p.client.cfg.ID, "count", len(result))
	return result, nil
}

func (p *Provider) calendar(cal caldav.Calendar) model.Calendar {
	title := cal.Name
	if title == "" {
		title = strings.TrimSuffix(cal.Path, "/")
		title = title[strings.LastIndexByte(title, '/')+1:]
	}
	return model.Calendar{
		ID:                 cal.Path,
		Title:              title,
		Type:               model.CalendarCalDAV,
		Color:              p.client.cfg.Color,
		AllowsModification: true,
	}
}

func supportsEvents(cal caldav.Calendar) bool {
	return len(cal.SupportedComponentSet) == 0 || slices.Contains(cal.SupportedComponentSet, ical.CompEvent)
}

// Events queries each calendar for VEVENTs overlapping [start, end) and
// expands recurring ones locally.
func (p *Provider) Events(ctx context.Context, calendars []model.Calendar, start, end time.Time) ([]*model.Event, error) {
	client, err := p.client.connect()
	if err != nil {
		return nil, err
	}

	var out []*model.Event
	for i := range calendars {
		cal := calendars[i]
		query := &caldav.CalendarQuery{
			CompRequest: caldav.CalendarCompRequest{
				Name:     ical.CompCalendar,
				AllProps: true,
				AllComps: true,
			},
			CompFilter: caldav.CompFilter{
				Name: ical.CompCalendar,
				Comps: []caldav.CompFilter{{
					Name:  ical.CompEvent,
					Start: start,
					End:   end,
				}},
			},
		}
		objects, err := client.QueryCalendar(ctx, cal.ID, query)
		if err != nil {
			return nil, p.wrap("query "+cal.ID, err)
		}

		for _, obj := range objects {
			parsed, err := p.parseObject(obj)
			if err != nil {
				// Skip invalid objects.
				appLog.Warn("caldav object skipped", "path", obj.Path, "err", err)
				continue
			}
			res, err := ics.ExpandOccurrences(parsed.Events, ics.ExpandConfig{
				Calendar:   &cal,
				RangeStart: start,
				RangeEnd:   end,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, res.Events...)
		}
	}
	return out, nil
}

// EventByID searches every calendar for a VEVENT with the given UID.
func (p *Provider) EventByID(ctx context.Context, id string) (*model.Event, error) {
	client, err := p.client.connect()
	if err != nil {
		return nil, err
	}
	cals, err := p.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	for i := range cals {
		cal := cals[i]
		cal.Source = p.client.cfg.ID
		query := &caldav.CalendarQuery{
			CompRequest: caldav.CalendarCompRequest{
				Name:     ical.CompCalendar,
				AllProps: true,
				AllComps: true,
			},
			CompFilter: caldav.CompFilter{
				Name: ical.CompCalendar,
				Comps: []caldav.CompFilter{{
					Name: ical.CompEvent,
					Props: []caldav.PropFilter{{
						Name:      ical.PropUID,
						TextMatch: &caldav.TextMatch{Text: id},
					}},
				}},
			},
		}
		objects, err := client.QueryCalendar(ctx, cal.ID, query)
		if err != nil {
			return nil, p.wrap("query "+cal.ID, err)
		}
		for _, obj := range objects {
			parsed, err := p.parseObject(obj)
			if err != nil {
				continue
			}
			// The server match is a substring match.
			if ev, ok := ics.FindEvent(parsed.Events, id, &cal); ok {
				return ev, nil
			}
		}
	}
	return nil, provider.ErrNotFound
}

// parseObject re-encodes the object's calendar and runs it through the ICS
// parser so CalDAV and ICS events share one mapping.
func (p *Provider) parseObject(obj caldav.CalendarObject) (ics.ParsedCalendar, error) {
	if obj.Data == nil {
		return ics.ParsedCalendar{}, errors.New("no data in calendar object")
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(obj.Data); err != nil {
		return ics.ParsedCalendar{}, fmt.Errorf("encode %s: %w", obj.Path, err)
	}
	src := ics.Source{ID: p.client.cfg.ID, URL: obj.Path}
	return ics.ParseICS(src, buf.Bytes(), p.opts)
}
