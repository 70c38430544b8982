package views

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"ticketkenya/internal/cache"
	"ticketkenya/internal/checkout"
	"ticketkenya/internal/models"
)

func PaymentPath(bookingID int64) string {
	return fmt.Sprintf("/payment/%d", bookingID)
}

// EventDetailPage shows one event, looked up by numeric id or slug, and
// books tickets for it.
type EventDetailPage struct {
	deps  Deps
	watch *cache.Watch[*models.Event]

	mu   sync.Mutex
	form *checkout.BookingForm
}

func NewEventDetailPage(deps Deps, idOrSlug string) *EventDetailPage {
	q := deps.Resources.Events.SlugQuery(idOrSlug)
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		q = deps.Resources.Events.GetQuery(id)
	}
	return &EventDetailPage{deps: deps, watch: cache.Subscribe(deps.Resources.Cache(), q)}
}

// Load fetches the event and resets the quantity picker, keeping the
// chosen quantity when it is still within range.
func (p *EventDetailPage) Load(ctx context.Context) (*models.Event, error) {
	event, err := p.watch.Get(ctx)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event not found")
	}
	p.mu.Lock()
	prev := 1
	if p.form != nil {
		prev = p.form.Quantity()
	}
	p.form = checkout.NewBookingForm(*event)
	p.form.SetQuantity(prev)
	p.mu.Unlock()
	return event, nil
}

func (p *EventDetailPage) Form() *checkout.BookingForm {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.form
}

// CanPurchase is false until the event is loaded and whenever it is sold out.
func (p *EventDetailPage) CanPurchase() bool {
	f := p.Form()
	return f != nil && f.Bookable()
}

func (p *EventDetailPage) SetQuantity(q int) int {
	f := p.Form()
	if f == nil {
		return 0
	}
	return f.SetQuantity(q)
}

// Book submits the booking and returns the payment route to go to. No
// route is returned without a booking id.
func (p *EventDetailPage) Book(ctx context.Context) (string, error) {
	f := p.Form()
	if f == nil {
		return "", fmt.Errorf("event not loaded")
	}
	id, err := p.deps.Booker.Submit(ctx, f)
	if err != nil {
		p.deps.notifier().Error("Booking failed", bookingMessage(err))
		return "", err
	}
	p.deps.notifier().Success("Booking successful!", fmt.Sprintf("Booking #%d created. Continue to payment.", id))
	return PaymentPath(id), nil
}

func bookingMessage(err error) string {
	switch err {
	case checkout.ErrLoginRequired, checkout.ErrSoldOut, checkout.ErrSubmissionInProgress, checkout.ErrMissingBookingID:
		return err.Error()
	}
	return Describe(err)
}

func (p *EventDetailPage) Unmount() {
	p.watch.Release()
}
