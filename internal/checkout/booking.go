package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ticketkenya/internal/logger"
	"ticketkenya/internal/models"
)

var (
	ErrLoginRequired        = errors.New("please log in to book tickets")
	ErrSoldOut              = errors.New("this event is sold out")
	ErrSubmissionInProgress = errors.New("a booking for this event is already being submitted")
	ErrMissingBookingID     = errors.New("booking was created but no booking id was returned")
)

// BookingForm holds the quantity picker for one event. Quantity is always
// within [1, tickets available]; for a sold-out event it is 0.
type BookingForm struct {
	event    models.Event
	quantity int
}

func NewBookingForm(event models.Event) *BookingForm {
	f := &BookingForm{event: event}
	f.SetQuantity(1)
	return f
}

func (f *BookingForm) Event() models.Event { return f.event }

func (f *BookingForm) Max() int { return f.event.TicketsAvailable() }

func (f *BookingForm) Bookable() bool { return !f.event.SoldOut() }

// SetQuantity clamps q into range and returns the value kept.
func (f *BookingForm) SetQuantity(q int) int {
	limit := f.Max()
	switch {
	case limit == 0:
		q = 0
	case q < 1:
		q = 1
	case q > limit:
		q = limit
	}
	f.quantity = q
	return q
}

func (f *BookingForm) Quantity() int { return f.quantity }

// Total is ticketPrice * quantity.
func (f *BookingForm) Total() decimal.Decimal {
	return decimal.NewFromFloat(f.event.TicketPrice).Mul(decimal.NewFromInt(int64(f.quantity)))
}

func (f *BookingForm) Request(userID int64) models.BookingRequest {
	return models.BookingRequest{
		UserID:      userID,
		EventID:     f.event.EventID,
		Quantity:    f.quantity,
		TotalAmount: f.Total().Round(2).InexactFloat64(),
	}
}

// BookingCreator is implemented by resources.Bookings, which also
// invalidates the Events and Bookings tags.
type BookingCreator interface {
	Create(ctx context.Context, req models.BookingRequest) (*models.BookingCreated, error)
}

type AuthSource interface {
	Auth() models.AuthState
}

// Booker submits bookings and refuses a second submission for an event
// while the first is still in flight.
type Booker struct {
	bookings BookingCreator
	auth     AuthSource
	logger   *logger.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewBooker(bookings BookingCreator, auth AuthSource, l *logger.Logger) *Booker {
	if l == nil {
		l = logger.Nop()
	}
	return &Booker{
		bookings: bookings,
		auth:     auth,
		logger:   l,
		inflight: make(map[int64]struct{}),
	}
}

// Submit creates the booking and returns its id. A zero id is never
// returned without an error.
func (b *Booker) Submit(ctx context.Context, form *BookingForm) (int64, error) {
	auth := b.auth.Auth()
	if auth.User == nil || !auth.IsAuthenticated {
		return 0, ErrLoginRequired
	}
	if !form.Bookable() || form.Quantity() < 1 {
		return 0, ErrSoldOut
	}

	eventID := form.Event().EventID
	b.mu.Lock()
	if _, busy := b.inflight[eventID]; busy {
		b.mu.Unlock()
		return 0, ErrSubmissionInProgress
	}
	b.inflight[eventID] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.inflight, eventID)
		b.mu.Unlock()
	}()

	req := form.Request(auth.User.UserID)
	created, err := b.bookings.Create(ctx, req)
	if err != nil {
		b.logger.Error("BOOKING", fmt.Sprintf("Create booking for event %d failed: %v", eventID, err))
		return 0, fmt.Errorf("create booking: %w", err)
	}

	id := created.Identifier()
	if id == 0 {
		b.logger.Error("BOOKING", fmt.Sprintf("Booking for event %d returned no id", eventID))
		return 0, ErrMissingBookingID
	}
	b.logger.Info("BOOKING", fmt.Sprintf("Booking %d created: %d x event %d = %.2f", id, req.Quantity, eventID, req.TotalAmount))
	return id, nil
}
