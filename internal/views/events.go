package views

import (
	"context"
	"sync"

	"ticketkenya/internal/cache"
	"ticketkenya/internal/models"
	"ticketkenya/internal/store"
)

// EventCard is one event in a list.
type EventCard struct {
	models.Event
	Available int
	Bookable  bool
}

// Cards wraps events with their availability.
func Cards(events []models.Event) []EventCard {
	out := make([]EventCard, 0, len(events))
	for i := range events {
		e := events[i]
		out = append(out, EventCard{Event: e, Available: e.TicketsAvailable(), Bookable: !e.SoldOut()})
	}
	return out
}

// EventsPage is the browse screen. Editing a field only changes local
// state; Apply commits all three into the store and re-queries.
type EventsPage struct {
	deps     Deps
	upcoming bool

	mu        sync.Mutex
	local     models.EventFilters
	committed models.EventFilters
	watch     *cache.Watch[[]models.Event]
}

func NewEventsPage(deps Deps, upcomingOnly bool) *EventsPage {
	p := &EventsPage{deps: deps, upcoming: upcomingOnly}
	p.local = deps.Store.Filters()
	return p
}

func (p *EventsPage) SetCategory(v string) { p.edit(func(f *models.EventFilters) { f.Category = v }) }
func (p *EventsPage) SetDate(v string)     { p.edit(func(f *models.EventFilters) { f.Date = v }) }
func (p *EventsPage) SetLocation(v string) { p.edit(func(f *models.EventFilters) { f.Location = v }) }

func (p *EventsPage) edit(fn func(*models.EventFilters)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.local)
}

func (p *EventsPage) Local() models.EventFilters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

// Events returns the list for the committed filters, re-subscribing if
// something else (the navbar location search) changed them.
func (p *EventsPage) Events(ctx context.Context) ([]EventCard, error) {
	w := p.subscription()
	events, err := w.Get(ctx)
	if err != nil {
		return nil, err
	}
	return Cards(events), nil
}

// Apply commits the local triple and fetches the list for it.
func (p *EventsPage) Apply(ctx context.Context) ([]EventCard, error) {
	if err := p.deps.Store.Dispatch(ctx, store.SetFilters{Filters: p.Local()}); err != nil {
		return nil, err
	}
	return p.refetch(ctx)
}

// Clear empties local and shared filters and fetches the full list.
func (p *EventsPage) Clear(ctx context.Context) ([]EventCard, error) {
	p.mu.Lock()
	p.local = models.EventFilters{}
	p.mu.Unlock()
	if err := p.deps.Store.Dispatch(ctx, store.ClearFilters{}); err != nil {
		return nil, err
	}
	return p.refetch(ctx)
}

// Retry re-runs the current query after a failure.
func (p *EventsPage) Retry(ctx context.Context) ([]EventCard, error) {
	return p.refetch(ctx)
}

func (p *EventsPage) refetch(ctx context.Context) ([]EventCard, error) {
	events, err := p.subscription().Refetch(ctx)
	if err != nil {
		return nil, err
	}
	return Cards(events), nil
}

func (p *EventsPage) subscription() *cache.Watch[[]models.Event] {
	want := p.deps.Store.Filters()
	want.UpcomingOnly = p.upcoming

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watch != nil && want == p.committed {
		return p.watch
	}
	if p.watch != nil {
		p.watch.Release()
	}
	p.committed = want
	p.watch = cache.Subscribe(p.deps.Resources.Cache(), p.deps.Resources.Events.ListQuery(want))
	return p.watch
}

func (p *EventsPage) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watch != nil {
		p.watch.Release()
		p.watch = nil
	}
}
