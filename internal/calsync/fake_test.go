package calsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/calendar"
	"github.com/sautiksau/bookingsync/internal/ledger"
)

var testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// fakeCalendar is an in-memory calendar.
type fakeCalendar struct {
	mu sync.Mutex

	connected bool
	events    map[string]calendar.ExternalEvent
	malformed []calendar.MalformedEvent
	nextID    int

	resolveErr error
	listErr    error
	createErr  error
	updateErr  error
	deleteErr  error

	// listGate, when set, blocks ListEvents until closed.
	listGate    chan struct{}
	listStarted chan struct{}

	listCalls int
	created   []calendar.EventInput
	updated   map[string]calendar.EventInput
	deleted   []string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		connected: true,
		events:    make(map[string]calendar.ExternalEvent),
		updated:   make(map[string]calendar.EventInput),
	}
}

func (f *fakeCalendar) add(id, summary string, start, end time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id] = calendar.ExternalEvent{ID: id, Summary: summary, Start: start, End: end, Updated: testNow}
}

func (f *fakeCalendar) addAllDay(id, summary string, first, last int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id] = calendar.ExternalEvent{
		ID: id, Summary: summary, AllDay: true,
		Start: at(first, 0, 0), End: at(last+1, 0, 0), Updated: testNow,
	}
}

func (f *fakeCalendar) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[id]
	return ok
}

func (f *fakeCalendar) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
}

func (f *fakeCalendar) Connected(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected, nil
}

func (f *fakeCalendar) ResolveCalendarID(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return calendar.DefaultCalendarID, nil
}

func (f *fakeCalendar) ListEvents(ctx context.Context, _ string, r calendar.TimeRange) ([]calendar.ExternalEvent, []calendar.MalformedEvent, error) {
	f.mu.Lock()
	f.listCalls++
	gate, started := f.listGate, f.listStarted
	f.listStarted = nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, nil, calendar.ErrNotConnected
	}
	if f.listErr != nil {
		return nil, nil, f.listErr
	}

	var out []calendar.ExternalEvent
	for _, ev := range f.events {
		if ev.End.After(r.Start) && ev.Start.Before(r.End) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, append([]calendar.MalformedEvent(nil), f.malformed...), nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, in calendar.EventInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return "", calendar.ErrNotConnected
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.events[id] = calendar.ExternalEvent{ID: id, Summary: in.Summary, Start: in.Start, End: in.End}
	f.created = append(f.created, in)
	return id, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, _ string, eventID string, in calendar.EventInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return calendar.ErrNotConnected
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.events[eventID]; !ok {
		return &googleapi.Error{Code: http.StatusNotFound}
	}
	f.events[eventID] = calendar.ExternalEvent{ID: eventID, Summary: in.Summary, Start: in.Start, End: in.End}
	f.updated[eventID] = in
	return nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _ string, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return calendar.ErrNotConnected
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.events[eventID]; !ok {
		return &googleapi.Error{Code: http.StatusGone}
	}
	delete(f.events, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

// failingRepo fails Create after the first failAfter calls.
type failingRepo struct {
	booking.Repository
	mu        sync.Mutex
	creates   int
	failAfter int
}

func (r *failingRepo) Create(ctx context.Context, b *booking.Booking) error {
	r.mu.Lock()
	r.creates++
	n := r.creates
	r.mu.Unlock()
	if n > r.failAfter {
		return fmt.Errorf("%w: disk full", ledger.ErrExecQuery)
	}
	return r.Repository.Create(ctx, b)
}

type staticLastSync struct {
	at time.Time
	ok bool
}

func (s staticLastSync) LastSync(context.Context) (time.Time, bool, error) {
	return s.at, s.ok, nil
}

func newTestReconciler(t *testing.T, cal CalendarAPI, repo booking.Repository) *Reconciler {
	t.Helper()
	return New(Config{
		Calendar:     cal,
		Bookings:     repo,
		Location:     time.UTC,
		ServiceNames: map[string]string{"haircut": "Haircut"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          func() time.Time { return testNow },
	})
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}
