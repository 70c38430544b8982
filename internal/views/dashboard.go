package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ticketkenya/internal/api"
	"ticketkenya/internal/cache"
	"ticketkenya/internal/models"
	"ticketkenya/internal/ticketqr"
)

var ErrVenueUnavailable = errors.New("venue is not available for that slot")

// ---------- my bookings ----------

type MyBookings struct {
	deps  Deps
	watch *cache.Watch[[]models.UserBooking]
	qr    *ticketqr.Generator
}

func NewMyBookings(deps Deps, qr *ticketqr.Generator) *MyBookings {
	return &MyBookings{
		deps:  deps,
		watch: cache.Subscribe(deps.Resources.Cache(), deps.Resources.Bookings.MeQuery()),
		qr:    qr,
	}
}

func (m *MyBookings) Rows(ctx context.Context) ([]models.UserBooking, error) {
	return m.watch.Get(ctx)
}

func (m *MyBookings) Reload(ctx context.Context) ([]models.UserBooking, error) {
	return m.watch.Refetch(ctx)
}

// Ticket renders the QR code of a confirmed booking for the terminal.
func (m *MyBookings) Ticket(ctx context.Context, bookingID int64) (string, error) {
	rows, err := m.Rows(ctx)
	if err != nil {
		return "", err
	}
	for _, b := range rows {
		if b.BookingID != bookingID {
			continue
		}
		p, err := ticketqr.FromBooking(b)
		if err != nil {
			return "", err
		}
		return m.qr.Terminal(p)
	}
	return "", fmt.Errorf("booking %d is not one of yours", bookingID)
}

func (m *MyBookings) Unmount() { m.watch.Release() }

// ---------- my payments ----------

type MyPayments struct {
	watch *cache.Watch[[]models.Payment]
}

func NewMyPayments(deps Deps) *MyPayments {
	return &MyPayments{watch: cache.Subscribe(deps.Resources.Cache(), deps.Resources.Payments.MeQuery())}
}

// Rows treats 404 as "no payments yet".
func (m *MyPayments) Rows(ctx context.Context) ([]models.Payment, error) {
	rows, err := m.watch.Get(ctx)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil
	}
	return rows, err
}

func (m *MyPayments) Reload(ctx context.Context) ([]models.Payment, error) {
	rows, err := m.watch.Refetch(ctx)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil
	}
	return rows, err
}

func (m *MyPayments) Unmount() { m.watch.Release() }

// ---------- support ----------

type MySupport struct {
	*Table[models.SupportTicket]
}

func NewMySupport(deps Deps) *MySupport {
	s := deps.Resources.Support
	return &MySupport{Table: newTable(deps, "support ticket", s.MeQuery(), s.Delete)}
}

func (m *MySupport) Create(ctx context.Context, subject, description string) (*models.SupportTicket, error) {
	subject, description = strings.TrimSpace(subject), strings.TrimSpace(description)
	if subject == "" || description == "" {
		return nil, validation("subject and description are required")
	}
	status := models.TicketOpen
	out, err := m.deps.Resources.Support.Create(ctx, models.SupportTicketInput{
		Subject:     &subject,
		Description: &description,
		Status:      &status,
	})
	return report(m.deps, out, err, "Ticket submitted", "We will get back to you soon.")
}

// ---------- profile ----------

type ProfileForm struct {
	Firstname    string
	Lastname     string
	ContactPhone string
	Address      string
}

func (f ProfileForm) Validate() error {
	if strings.TrimSpace(f.Firstname) == "" || strings.TrimSpace(f.Lastname) == "" {
		return validation("first and last name are required")
	}
	return nil
}

type Profile struct {
	deps   Deps
	userID int64
	watch  *cache.Watch[*models.User]
}

func NewProfile(deps Deps) (*Profile, error) {
	me := deps.Store.Auth().User
	if me == nil {
		return nil, api.ErrUnauthorized
	}
	return &Profile{
		deps:   deps,
		userID: me.UserID,
		watch:  cache.Subscribe(deps.Resources.Cache(), deps.Resources.Users.GetQuery(me.UserID)),
	}, nil
}

// Load reads the profile and copies it into the session user.
func (p *Profile) Load(ctx context.Context) (*models.User, error) {
	u, err := p.watch.Get(ctx)
	if err != nil {
		return nil, err
	}
	if p.deps.Session != nil {
		if err := p.deps.Session.SyncProfile(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Update saves the form and re-syncs the session user.
func (p *Profile) Update(ctx context.Context, f ProfileForm) (*models.User, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return p.save(ctx, models.UserUpdate{
		Firstname:    ptr(strings.TrimSpace(f.Firstname)),
		Lastname:     ptr(strings.TrimSpace(f.Lastname)),
		ContactPhone: ptr(strings.TrimSpace(f.ContactPhone)),
		Address:      ptr(strings.TrimSpace(f.Address)),
	})
}

// UploadAvatar uploads the image and stores its URL as the profile picture.
func (p *Profile) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.User, error) {
	if p.deps.Uploader == nil {
		return nil, errors.New("uploads are not configured")
	}
	url, err := p.deps.Uploader.Upload(ctx, filename, r)
	if err != nil {
		p.deps.notifier().Error("Upload failed", err.Error())
		return nil, err
	}
	return p.save(ctx, models.UserUpdate{ProfileURL: &url})
}

func (p *Profile) save(ctx context.Context, patch models.UserUpdate) (*models.User, error) {
	out, err := p.deps.Resources.Users.Update(ctx, p.userID, patch)
	if err != nil {
		p.deps.notifier().Error("Profile update failed", Describe(err))
		return nil, err
	}
	if out == nil || out.UserID == 0 {
		if out, err = p.watch.Refetch(ctx); err != nil {
			return nil, err
		}
	}
	if p.deps.Session != nil {
		if err := p.deps.Session.SyncProfile(ctx, out); err != nil {
			return nil, err
		}
	}
	p.deps.notifier().Success("Profile updated", "Your changes were saved.")
	return out, nil
}

func (p *Profile) Unmount() { p.watch.Release() }

// ---------- venue bookings ----------

type MyVenueBookings struct {
	*Table[models.VenueBooking]
	venues *cache.Watch[[]models.Venue]
}

func NewMyVenueBookings(deps Deps) *MyVenueBookings {
	v := deps.Resources.VenueBookings
	return &MyVenueBookings{
		Table:  newTable(deps, "venue booking", v.MeQuery(), v.Delete),
		venues: cache.Subscribe(deps.Resources.Cache(), deps.Resources.Venues.ListQuery()),
	}
}

func (m *MyVenueBookings) Venues(ctx context.Context) ([]models.Venue, error) {
	return m.venues.Get(ctx)
}

func validateSlot(req models.VenueBookingRequest) error {
	switch {
	case req.VenueID <= 0:
		return validation("pick a venue")
	case req.Date == "" || req.StartTime == "" || req.EndTime == "":
		return validation("date, start time and end time are required")
	case req.EndTime <= req.StartTime:
		return validation("end time must be after start time")
	}
	return nil
}

func (m *MyVenueBookings) CheckAvailability(ctx context.Context, req models.VenueBookingRequest) (*models.VenueAvailability, error) {
	if err := validateSlot(req); err != nil {
		return nil, err
	}
	return m.deps.Resources.VenueBookings.Availability(ctx, req)
}

// Book checks the slot first and only submits when it is free.
func (m *MyVenueBookings) Book(ctx context.Context, req models.VenueBookingRequest) (*models.VenueBooking, error) {
	if strings.TrimSpace(req.EventTitle) == "" {
		return nil, validation("event title is required")
	}
	avail, err := m.CheckAvailability(ctx, req)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		msg := avail.Message
		if msg == "" {
			msg = ErrVenueUnavailable.Error()
		}
		m.deps.notifier().Error("Venue unavailable", msg)
		return nil, ErrVenueUnavailable
	}
	out, err := m.deps.Resources.VenueBookings.Create(ctx, req)
	return report(m.deps, out, err, "Venue booked", "Your request is pending approval.")
}

func (m *MyVenueBookings) Unmount() {
	m.Table.Unmount()
	m.venues.Release()
}
