package provider

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	appLog "icaltool/internal/log"
	"icaltool/internal/model"
)

type fake struct {
	cals     []model.Calendar
	events   []*model.Event
	err      error
	gotCals  []model.Calendar
	eventErr error
}

func (f *fake) Calendars(ctx context.Context) ([]model.Calendar, error) {
	return f.cals, f.err
}

func (f *fake) Events(ctx context.Context, cals []model.Calendar, start, end time.Time) ([]*model.Event, error) {
	f.gotCals = cals
	return f.events, f.eventErr
}

func (f *fake) EventByID(ctx context.Context, id string) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

func quiet(t *testing.T) {
	prev := appLog.SetOutput(io.Discard)
	t.Cleanup(func() { appLog.SetOutput(prev) })
}

func TestMultiCalendarsTagsSource(t *testing.T) {
	a := &fake{cals: []model.Calendar{{ID: "1"}}}
	b := &fake{cals: []model.Calendar{{ID: "2"}, {ID: "3"}}}
	m := NewMulti(Source{ID: "a", Provider: a}, Source{ID: "b", Provider: b})

	cals, err := m.Calendars(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cals) != 3 || cals[0].Source != "a" || cals[1].Source != "b" || cals[2].Source != "b" {
		t.Errorf("calendars = %+v", cals)
	}
}

func TestMultiEventsRoutesBySource(t *testing.T) {
	a := &fake{events: []*model.Event{{ID: "ea"}}}
	b := &fake{events: []*model.Event{{ID: "eb"}}}
	m := NewMulti(Source{ID: "a", Provider: a}, Source{ID: "b", Provider: b})

	evs, err := m.Events(context.Background(), []model.Calendar{{ID: "2", Source: "b"}}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].ID != "eb" {
		t.Errorf("events = %v", evs)
	}
	if a.gotCals != nil {
		t.Error("source a should not be queried")
	}
	if len(b.gotCals) != 1 || b.gotCals[0].ID != "2" {
		t.Errorf("source b got %v", b.gotCals)
	}
}

func TestMultiSkipsFailingSource(t *testing.T) {
	quiet(t)
	bad := &fake{err: errors.New("unreachable")}
	good := &fake{cals: []model.Calendar{{ID: "1"}}}
	m := NewMulti(Source{ID: "bad", Provider: bad}, Source{ID: "good", Provider: good})

	cals, err := m.Calendars(context.Background())
	if err != nil || len(cals) != 1 {
		t.Errorf("Calendars = %v, %v", cals, err)
	}

	only := NewMulti(Source{ID: "bad", Provider: bad})
	if _, err := only.Calendars(context.Background()); err == nil {
		t.Error("all sources failing should be an error")
	}
}

func TestMultiAccessDeniedIsFatal(t *testing.T) {
	denied := &fake{err: ErrAccessDenied, eventErr: ErrAccessDenied}
	good := &fake{cals: []model.Calendar{{ID: "1"}}}
	m := NewMulti(Source{ID: "good", Provider: good}, Source{ID: "denied", Provider: denied})

	if _, err := m.Calendars(context.Background()); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Calendars error = %v, want ErrAccessDenied", err)
	}
	_, err := m.Events(context.Background(), []model.Calendar{{Source: "denied"}}, time.Time{}, time.Time{})
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Events error = %v, want ErrAccessDenied", err)
	}
}

func TestMultiEventByID(t *testing.T) {
	a := &fake{events: []*model.Event{{ID: "x"}}}
	b := &fake{events: []*model.Event{{ID: "y"}}}
	m := NewMulti(Source{ID: "a", Provider: a}, Source{ID: "b", Provider: b})

	ev, err := m.EventByID(context.Background(), "y")
	if err != nil || ev.ID != "y" {
		t.Errorf("EventByID = %v, %v", ev, err)
	}
	if _, err := m.EventByID(context.Background(), "z"); err != ErrNotFound {
		t.Errorf("missing id error = %v, want bare ErrNotFound", err)
	}
}
