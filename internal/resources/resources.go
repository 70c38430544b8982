// Package resources puts the tag cache in front of the API client. Reads
// go through cache queries that provide tags; writes call the API and then
// invalidate the tags they affect.
package resources

import (
	"context"
	"fmt"
	"strconv"

	"ticketkenya/internal/api"
	"ticketkenya/internal/cache"
	"ticketkenya/internal/logger"
	"ticketkenya/internal/models"
)

const (
	TagUsers         = "Users"
	TagEvents        = "Events"
	TagVenues        = "Venues"
	TagBookings      = "Bookings"
	TagPayments      = "Payments"
	TagSupport       = "Support"
	TagVenueBookings = "VenueBookings"
	TagSales         = "Sales"
)

type Resources struct {
	Users         *Users
	Events        *Events
	Venues        *Venues
	Bookings      *Bookings
	Payments      *Payments
	Support       *Support
	Sales         *Sales
	VenueBookings *VenueBookings

	client *api.Client
	cache  *cache.Cache
	logger *logger.Logger
}

func New(client *api.Client, c *cache.Cache, l *logger.Logger) *Resources {
	if l == nil {
		l = logger.Nop()
	}
	r := &Resources{client: client, cache: c, logger: l}
	b := base{r}
	r.Users = &Users{b}
	r.Events = &Events{b}
	r.Venues = &Venues{b}
	r.Bookings = &Bookings{b}
	r.Payments = &Payments{b}
	r.Support = &Support{b}
	r.Sales = &Sales{b}
	r.VenueBookings = &VenueBookings{b}
	return r
}

func (r *Resources) Cache() *cache.Cache { return r.cache }

func (r *Resources) Client() *api.Client { return r.client }

type base struct{ r *Resources }

// invalidate runs after a successful mutation. A failed refetch is logged,
// not returned: the write itself went through.
func (b base) invalidate(ctx context.Context, tags ...string) {
	if err := b.r.cache.Invalidate(ctx, tags...); err != nil {
		b.r.logger.Warn("CACHE", fmt.Sprintf("Refetch after mutation failed: %v", err))
	}
}

func key(parts ...any) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "/"
		}
		switch v := p.(type) {
		case int64:
			s += strconv.FormatInt(v, 10)
		default:
			s += fmt.Sprint(v)
		}
	}
	return s
}

// mutate calls fn and invalidates tags when it succeeds.
func mutate[T any](ctx context.Context, b base, fn func() (T, error), tags ...string) (T, error) {
	out, err := fn()
	if err != nil {
		return out, err
	}
	b.invalidate(ctx, tags...)
	return out, nil
}

func mutateErr(ctx context.Context, b base, fn func() error, tags ...string) error {
	_, err := mutate(ctx, b, func() (struct{}, error) { return struct{}{}, fn() }, tags...)
	return err
}

// ---------- users ----------

type Users struct{ base }

func (u *Users) ListQuery() cache.Query[[]models.User] {
	return cache.Query[[]models.User]{Key: "users", Tags: []string{TagUsers}, Fetch: u.r.client.Users.List}
}

func (u *Users) MeQuery() cache.Query[*models.User] {
	return cache.Query[*models.User]{Key: "users/me", Tags: []string{TagUsers}, Fetch: u.r.client.Users.Me}
}

func (u *Users) GetQuery(id int64) cache.Query[*models.User] {
	return cache.Query[*models.User]{Key: key("users", id), Tags: []string{TagUsers}, Fetch: func(ctx context.Context) (*models.User, error) {
		return u.r.client.Users.Get(ctx, id)
	}}
}

func (u *Users) List(ctx context.Context) ([]models.User, error) {
	return cache.Get(ctx, u.r.cache, u.ListQuery())
}

func (u *Users) Me(ctx context.Context) (*models.User, error) {
	return cache.Get(ctx, u.r.cache, u.MeQuery())
}

func (u *Users) Get(ctx context.Context, id int64) (*models.User, error) {
	return cache.Get(ctx, u.r.cache, u.GetQuery(id))
}

func (u *Users) Update(ctx context.Context, id int64, patch models.UserUpdate) (*models.User, error) {
	return mutate(ctx, u.base, func() (*models.User, error) { return u.r.client.Users.Update(ctx, id, patch) }, TagUsers)
}

func (u *Users) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, u.base, func() error { return u.r.client.Users.Delete(ctx, id) }, TagUsers)
}

// ---------- events ----------

type Events struct{ base }

func (e *Events) ListQuery(f models.EventFilters) cache.Query[[]models.Event] {
	return cache.Query[[]models.Event]{
		Key:  "events?" + api.EventQuery(f).Encode(),
		Tags: []string{TagEvents},
		Fetch: func(ctx context.Context) ([]models.Event, error) {
			return e.r.client.Events.List(ctx, f)
		},
	}
}

func (e *Events) GetQuery(id int64) cache.Query[*models.Event] {
	return cache.Query[*models.Event]{Key: key("events", id), Tags: []string{TagEvents}, Fetch: func(ctx context.Context) (*models.Event, error) {
		return e.r.client.Events.Get(ctx, id)
	}}
}

func (e *Events) SlugQuery(slug string) cache.Query[*models.Event] {
	return cache.Query[*models.Event]{Key: key("events/slug", slug), Tags: []string{TagEvents}, Fetch: func(ctx context.Context) (*models.Event, error) {
		return e.r.client.Events.GetBySlug(ctx, slug)
	}}
}

func (e *Events) List(ctx context.Context, f models.EventFilters) ([]models.Event, error) {
	return cache.Get(ctx, e.r.cache, e.ListQuery(f))
}

func (e *Events) Get(ctx context.Context, id int64) (*models.Event, error) {
	return cache.Get(ctx, e.r.cache, e.GetQuery(id))
}

func (e *Events) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return cache.Get(ctx, e.r.cache, e.SlugQuery(slug))
}

func (e *Events) Create(ctx context.Context, in models.EventInput) (*models.Event, error) {
	return mutate(ctx, e.base, func() (*models.Event, error) { return e.r.client.Events.Create(ctx, in) }, TagEvents)
}

func (e *Events) Update(ctx context.Context, id int64, in models.EventInput) (*models.Event, error) {
	return mutate(ctx, e.base, func() (*models.Event, error) { return e.r.client.Events.Update(ctx, id, in) }, TagEvents)
}

func (e *Events) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, e.base, func() error { return e.r.client.Events.Delete(ctx, id) }, TagEvents)
}

// ---------- venues ----------

type Venues struct{ base }

func (v *Venues) ListQuery() cache.Query[[]models.Venue] {
	return cache.Query[[]models.Venue]{Key: "venues", Tags: []string{TagVenues}, Fetch: v.r.client.Venues.List}
}

func (v *Venues) GetQuery(id int64) cache.Query[*models.Venue] {
	return cache.Query[*models.Venue]{Key: key("venues", id), Tags: []string{TagVenues}, Fetch: func(ctx context.Context) (*models.Venue, error) {
		return v.r.client.Venues.Get(ctx, id)
	}}
}

func (v *Venues) List(ctx context.Context) ([]models.Venue, error) {
	return cache.Get(ctx, v.r.cache, v.ListQuery())
}

func (v *Venues) Get(ctx context.Context, id int64) (*models.Venue, error) {
	return cache.Get(ctx, v.r.cache, v.GetQuery(id))
}

func (v *Venues) Create(ctx context.Context, in models.VenueInput) (*models.Venue, error) {
	return mutate(ctx, v.base, func() (*models.Venue, error) { return v.r.client.Venues.Create(ctx, in) }, TagVenues)
}

func (v *Venues) Update(ctx context.Context, id int64, in models.VenueInput) (*models.Venue, error) {
	return mutate(ctx, v.base, func() (*models.Venue, error) { return v.r.client.Venues.Update(ctx, id, in) }, TagVenues)
}

func (v *Venues) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, v.base, func() error { return v.r.client.Venues.Delete(ctx, id) }, TagVenues)
}

// ---------- bookings ----------

type Bookings struct{ base }

func (b *Bookings) ListQuery() cache.Query[[]models.Booking] {
	return cache.Query[[]models.Booking]{Key: "bookings", Tags: []string{TagBookings}, Fetch: b.r.client.Bookings.List}
}

func (b *Bookings) MeQuery() cache.Query[[]models.UserBooking] {
	return cache.Query[[]models.UserBooking]{Key: "bookings/me", Tags: []string{TagBookings}, Fetch: b.r.client.Bookings.Me}
}

func (b *Bookings) GetQuery(id int64) cache.Query[*models.Booking] {
	return cache.Query[*models.Booking]{Key: key("bookings", id), Tags: []string{TagBookings}, Fetch: func(ctx context.Context) (*models.Booking, error) {
		return b.r.client.Bookings.Get(ctx, id)
	}}
}

func (b *Bookings) List(ctx context.Context) ([]models.Booking, error) {
	return cache.Get(ctx, b.r.cache, b.ListQuery())
}

func (b *Bookings) Me(ctx context.Context) ([]models.UserBooking, error) {
	return cache.Get(ctx, b.r.cache, b.MeQuery())
}

func (b *Bookings) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return cache.Get(ctx, b.r.cache, b.GetQuery(id))
}

// Create is the event-page booking: it changes ticketsSold, so Events is
// invalidated along with Bookings.
func (b *Bookings) Create(ctx context.Context, in models.BookingRequest) (*models.BookingCreated, error) {
	return mutate(ctx, b.base, func() (*models.BookingCreated, error) { return b.r.client.Bookings.Create(ctx, in) }, TagEvents, TagBookings)
}

func (b *Bookings) Update(ctx context.Context, id int64, in models.BookingUpdate) (*models.Booking, error) {
	return mutate(ctx, b.base, func() (*models.Booking, error) { return b.r.client.Bookings.Update(ctx, id, in) }, TagBookings)
}

func (b *Bookings) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, b.base, func() error { return b.r.client.Bookings.Delete(ctx, id) }, TagBookings)
}

// ---------- payments ----------

type Payments struct{ base }

func (p *Payments) ListQuery() cache.Query[[]models.Payment] {
	return cache.Query[[]models.Payment]{Key: "payments", Tags: []string{TagPayments}, Fetch: p.r.client.Payments.List}
}

func (p *Payments) MeQuery() cache.Query[[]models.Payment] {
	return cache.Query[[]models.Payment]{Key: "payments/me", Tags: []string{TagPayments}, Fetch: p.r.client.Payments.Me}
}

func (p *Payments) GetQuery(id int64) cache.Query[*models.Payment] {
	return cache.Query[*models.Payment]{Key: key("payments", id), Tags: []string{TagPayments}, Fetch: func(ctx context.Context) (*models.Payment, error) {
		return p.r.client.Payments.Get(ctx, id)
	}}
}

func (p *Payments) List(ctx context.Context) ([]models.Payment, error) {
	return cache.Get(ctx, p.r.cache, p.ListQuery())
}

func (p *Payments) Me(ctx context.Context) ([]models.Payment, error) {
	return cache.Get(ctx, p.r.cache, p.MeQuery())
}

func (p *Payments) Get(ctx context.Context, id int64) (*models.Payment, error) {
	return cache.Get(ctx, p.r.cache, p.GetQuery(id))
}

func (p *Payments) Create(ctx context.Context, in models.PaymentInput) (*models.Payment, error) {
	return mutate(ctx, p.base, func() (*models.Payment, error) { return p.r.client.Payments.Create(ctx, in) }, TagPayments)
}

func (p *Payments) Update(ctx context.Context, id int64, in models.PaymentInput) (*models.Payment, error) {
	return mutate(ctx, p.base, func() (*models.Payment, error) { return p.r.client.Payments.Update(ctx, id, in) }, TagPayments)
}

func (p *Payments) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, p.base, func() error { return p.r.client.Payments.Delete(ctx, id) }, TagPayments)
}

// StkPush is not cached. A confirmed payment is observed through Status.
func (p *Payments) StkPush(ctx context.Context, req models.StkPushRequest) (*models.StkPushResponse, error) {
	return p.r.client.Mpesa.StkPush(ctx, req)
}

func (p *Payments) Status(ctx context.Context, bookingID int64) (models.GatewayStatus, error) {
	return p.r.client.Mpesa.Status(ctx, bookingID)
}

// Settled invalidates what a finished STK push changes.
func (p *Payments) Settled(ctx context.Context) {
	p.invalidate(ctx, TagPayments, TagBookings)
}

// ---------- support tickets ----------

type Support struct{ base }

func (s *Support) ListQuery() cache.Query[[]models.SupportTicket] {
	return cache.Query[[]models.SupportTicket]{Key: "support-tickets", Tags: []string{TagSupport}, Fetch: s.r.client.Support.List}
}

func (s *Support) MeQuery() cache.Query[[]models.SupportTicket] {
	return cache.Query[[]models.SupportTicket]{Key: "support-tickets/me", Tags: []string{TagSupport}, Fetch: s.r.client.Support.Me}
}

func (s *Support) List(ctx context.Context) ([]models.SupportTicket, error) {
	return cache.Get(ctx, s.r.cache, s.ListQuery())
}

func (s *Support) Me(ctx context.Context) ([]models.SupportTicket, error) {
	return cache.Get(ctx, s.r.cache, s.MeQuery())
}

func (s *Support) Get(ctx context.Context, id int64) (*models.SupportTicket, error) {
	return cache.Get(ctx, s.r.cache, cache.Query[*models.SupportTicket]{
		Key:  key("support-tickets", id),
		Tags: []string{TagSupport},
		Fetch: func(ctx context.Context) (*models.SupportTicket, error) {
			return s.r.client.Support.Get(ctx, id)
		},
	})
}

func (s *Support) Create(ctx context.Context, in models.SupportTicketInput) (*models.SupportTicket, error) {
	return mutate(ctx, s.base, func() (*models.SupportTicket, error) { return s.r.client.Support.Create(ctx, in) }, TagSupport)
}

func (s *Support) Update(ctx context.Context, id int64, in models.SupportTicketInput) (*models.SupportTicket, error) {
	return mutate(ctx, s.base, func() (*models.SupportTicket, error) { return s.r.client.Support.Update(ctx, id, in) }, TagSupport)
}

func (s *Support) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, s.base, func() error { return s.r.client.Support.Delete(ctx, id) }, TagSupport)
}

// ---------- sales ----------

type Sales struct{ base }

func (s *Sales) ReportQuery() cache.Query[*models.SalesReport] {
	return cache.Query[*models.SalesReport]{Key: "sales/report", Tags: []string{TagSales, TagBookings, TagPayments}, Fetch: s.r.client.Sales.Report}
}

func (s *Sales) Report(ctx context.Context) (*models.SalesReport, error) {
	return cache.Get(ctx, s.r.cache, s.ReportQuery())
}

// ---------- venue bookings ----------

type VenueBookings struct{ base }

func (v *VenueBookings) ListQuery() cache.Query[[]models.VenueBooking] {
	return cache.Query[[]models.VenueBooking]{Key: "venues/bookings", Tags: []string{TagVenueBookings}, Fetch: v.r.client.VenueBookings.List}
}

func (v *VenueBookings) MeQuery() cache.Query[[]models.VenueBooking] {
	return cache.Query[[]models.VenueBooking]{Key: "venues/bookings/me", Tags: []string{TagVenueBookings}, Fetch: v.r.client.VenueBookings.Me}
}

func (v *VenueBookings) List(ctx context.Context) ([]models.VenueBooking, error) {
	return cache.Get(ctx, v.r.cache, v.ListQuery())
}

func (v *VenueBookings) Me(ctx context.Context) ([]models.VenueBooking, error) {
	return cache.Get(ctx, v.r.cache, v.MeQuery())
}

func (v *VenueBookings) Get(ctx context.Context, id int64) (*models.VenueBooking, error) {
	return cache.Get(ctx, v.r.cache, cache.Query[*models.VenueBooking]{
		Key:  key("venues/bookings", id),
		Tags: []string{TagVenueBookings},
		Fetch: func(ctx context.Context) (*models.VenueBooking, error) {
			return v.r.client.VenueBookings.Get(ctx, id)
		},
	})
}

// Availability is never cached: the answer changes with every booking.
func (v *VenueBookings) Availability(ctx context.Context, req models.VenueBookingRequest) (*models.VenueAvailability, error) {
	return v.r.client.VenueBookings.Availability(ctx, req)
}

func (v *VenueBookings) Create(ctx context.Context, in models.VenueBookingRequest) (*models.VenueBooking, error) {
	return mutate(ctx, v.base, func() (*models.VenueBooking, error) { return v.r.client.VenueBookings.Create(ctx, in) }, TagVenueBookings)
}

func (v *VenueBookings) UpdateStatus(ctx context.Context, id int64, status models.VenueBookingStatus) (*models.VenueBooking, error) {
	return mutate(ctx, v.base, func() (*models.VenueBooking, error) {
		return v.r.client.VenueBookings.UpdateStatus(ctx, id, status)
	}, TagVenueBookings)
}

func (v *VenueBookings) Delete(ctx context.Context, id int64) error {
	return mutateErr(ctx, v.base, func() error { return v.r.client.VenueBookings.Delete(ctx, id) }, TagVenueBookings)
}
