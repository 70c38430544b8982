package views

import (
	"context"
	"fmt"
	"strings"

	"ticketkenya/internal/models"
	"ticketkenya/internal/resources"
)

const notAvailable = "N/A"

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// ---------- bookings ----------

type AdminBookings struct {
	*Table[models.Booking]
	bookings *resources.Bookings
}

func NewAdminBookings(deps Deps) *AdminBookings {
	b := deps.Resources.Bookings
	return &AdminBookings{Table: newTable(deps, "booking", b.ListQuery(), b.Delete), bookings: b}
}

func (a *AdminBookings) Update(ctx context.Context, id int64, patch models.BookingUpdate) (*models.Booking, error) {
	out, err := a.bookings.Update(ctx, id, patch)
	return report(a.deps, out, err, "Booking updated", fmt.Sprintf("Booking #%d saved.", id))
}

func (a *AdminBookings) ConfirmBooking(ctx context.Context, id int64) (*models.Booking, error) {
	status := models.BookingConfirmed
	return a.Update(ctx, id, models.BookingUpdate{BookingStatus: &status})
}

type BookingRow struct {
	ID       int64
	Customer string
	Event    string
	Quantity int
	Amount   float64
	Status   string
	Payment  string
}

func BookingRows(list []models.Booking) []BookingRow {
	rows := make([]BookingRow, 0, len(list))
	for _, b := range list {
		row := BookingRow{
			ID:       b.BookingID,
			Customer: notAvailable,
			Event:    notAvailable,
			Quantity: b.Quantity,
			Amount:   b.TotalAmount,
			Status:   orNA(string(b.BookingStatus)),
			Payment:  notAvailable,
		}
		if b.User != nil {
			row.Customer = orNA(b.User.FullName())
		}
		if b.Event != nil {
			row.Event = orNA(b.Event.Title)
		}
		if b.Payment != nil {
			row.Payment = orNA(string(b.Payment.PaymentStatus))
		}
		rows = append(rows, row)
	}
	return rows
}

// ---------- payments ----------

type AdminPayments struct {
	*Table[models.Payment]
	payments *resources.Payments
}

func NewAdminPayments(deps Deps) *AdminPayments {
	p := deps.Resources.Payments
	return &AdminPayments{Table: newTable(deps, "payment", p.ListQuery(), p.Delete), payments: p}
}

func (a *AdminPayments) Update(ctx context.Context, id int64, patch models.PaymentInput) (*models.Payment, error) {
	out, err := a.payments.Update(ctx, id, patch)
	return report(a.deps, out, err, "Payment updated", fmt.Sprintf("Payment #%d saved.", id))
}

func (a *AdminPayments) ConfirmPayment(ctx context.Context, id int64) (*models.Payment, error) {
	status := models.PaymentConfirmed
	return a.Update(ctx, id, models.PaymentInput{PaymentStatus: &status})
}

type PaymentRow struct {
	ID          int64
	BookingID   int64
	Customer    string
	Email       string
	Event       string
	EventDate   string
	Amount      float64
	Method      string
	Status      string
	Transaction string
}

// PaymentRows flattens payments for display. The nested booking, and its
// user and event, may each be missing.
func PaymentRows(list []models.Payment) []PaymentRow {
	rows := make([]PaymentRow, 0, len(list))
	for _, p := range list {
		row := PaymentRow{
			ID:          p.PaymentID,
			BookingID:   p.BookingID,
			Customer:    notAvailable,
			Email:       notAvailable,
			Event:       notAvailable,
			EventDate:   notAvailable,
			Amount:      p.Amount,
			Method:      orNA(p.PaymentMethod),
			Status:      orNA(string(p.PaymentStatus)),
			Transaction: orNA(p.TransactionID),
		}
		if b := p.Booking; b != nil {
			if u := b.User; u != nil {
				row.Customer = orNA(u.FullName())
				row.Email = orNA(u.Email)
			}
			if e := b.Event; e != nil {
				row.Event = orNA(e.Title)
				row.EventDate = orNA(e.Date)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ---------- support ----------

type AdminSupport struct {
	*Table[models.SupportTicket]
	support *resources.Support
}

func NewAdminSupport(deps Deps) *AdminSupport {
	s := deps.Resources.Support
	return &AdminSupport{Table: newTable(deps, "support ticket", s.ListQuery(), s.Delete), support: s}
}

func (a *AdminSupport) Update(ctx context.Context, id int64, patch models.SupportTicketInput) (*models.SupportTicket, error) {
	out, err := a.support.Update(ctx, id, patch)
	return report(a.deps, out, err, "Ticket updated", fmt.Sprintf("Ticket #%d saved.", id))
}

// ResolveTicket marks the ticket resolved, attaching response if given.
func (a *AdminSupport) ResolveTicket(ctx context.Context, id int64, response string) (*models.SupportTicket, error) {
	status := models.TicketResolved
	patch := models.SupportTicketInput{Status: &status}
	if r := strings.TrimSpace(response); r != "" {
		patch.AdminResponse = &r
	}
	return a.Update(ctx, id, patch)
}

type TicketRow struct {
	ID       int64
	User     string
	Subject  string
	Status   string
	Response string
}

func TicketRows(list []models.SupportTicket) []TicketRow {
	rows := make([]TicketRow, 0, len(list))
	for _, t := range list {
		row := TicketRow{
			ID:       t.TicketID,
			User:     notAvailable,
			Subject:  orNA(t.Subject),
			Status:   orNA(string(t.Status)),
			Response: orNA(t.AdminResponse),
		}
		if t.User != nil {
			row.User = orNA(t.User.Email)
		}
		rows = append(rows, row)
	}
	return rows
}

// ---------- users ----------

type AdminUsers struct {
	*Table[models.User]
	users *resources.Users
}

func NewAdminUsers(deps Deps) *AdminUsers {
	u := deps.Resources.Users
	return &AdminUsers{Table: newTable(deps, "user", u.ListQuery(), u.Delete), users: u}
}

func (a *AdminUsers) Update(ctx context.Context, id int64, patch models.UserUpdate) (*models.User, error) {
	out, err := a.users.Update(ctx, id, patch)
	return report(a.deps, out, err, "User updated", fmt.Sprintf("User #%d saved.", id))
}

// ToggleRole flips user and admin. The signed-in admin cannot demote
// themselves here.
func (a *AdminUsers) ToggleRole(ctx context.Context, user models.User) (*models.User, error) {
	if me := a.deps.Store.Auth().User; me != nil && me.UserID == user.UserID {
		a.deps.notifier().Error("Role unchanged", ErrSelfRoleChange.Error())
		return nil, ErrSelfRoleChange
	}
	role := user.Role.Toggle()
	return a.Update(ctx, user.UserID, models.UserUpdate{Role: &role})
}

// ---------- events ----------

// EventForm backs both the create and the edit dialog.
type EventForm struct {
	Title        string
	Description  string
	Category     string
	VenueID      int64
	Date         string
	Time         string
	TicketPrice  float64
	TicketsTotal int
	Image        string
}

func EventFormFrom(e models.Event) EventForm {
	return EventForm{
		Title:        e.Title,
		Description:  e.Description,
		Category:     e.Category,
		VenueID:      e.VenueID,
		Date:         e.Date,
		Time:         e.Time,
		TicketPrice:  e.TicketPrice,
		TicketsTotal: e.TicketsTotal,
		Image:        e.Image,
	}
}

func (f EventForm) Validate() error {
	var missing []string
	for _, field := range [][2]string{{"title", f.Title}, {"category", f.Category}, {"date", f.Date}, {"time", f.Time}} {
		if strings.TrimSpace(field[1]) == "" {
			missing = append(missing, field[0])
		}
	}
	if len(missing) > 0 {
		return validation("%s required", strings.Join(missing, ", "))
	}
	switch {
	case f.VenueID <= 0:
		return validation("pick a venue")
	case f.TicketPrice < 0:
		return validation("ticket price cannot be negative")
	case f.TicketsTotal < 1:
		return validation("total tickets must be at least 1")
	}
	return nil
}

func (f EventForm) Input() models.EventInput {
	in := models.EventInput{
		Title:        ptr(strings.TrimSpace(f.Title)),
		Category:     ptr(strings.TrimSpace(f.Category)),
		VenueID:      ptr(f.VenueID),
		Date:         ptr(f.Date),
		Time:         ptr(f.Time),
		TicketPrice:  ptr(f.TicketPrice),
		TicketsTotal: ptr(f.TicketsTotal),
	}
	if f.Description != "" {
		in.Description = ptr(f.Description)
	}
	if f.Image != "" {
		in.Image = ptr(f.Image)
	}
	return in
}

type AdminEvents struct {
	*Table[models.Event]
	events *resources.Events
}

func NewAdminEvents(deps Deps) *AdminEvents {
	e := deps.Resources.Events
	return &AdminEvents{Table: newTable(deps, "event", e.ListQuery(models.EventFilters{}), e.Delete), events: e}
}

func (a *AdminEvents) Create(ctx context.Context, f EventForm) (*models.Event, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out, err := a.events.Create(ctx, f.Input())
	return report(a.deps, out, err, "Event created", fmt.Sprintf("%s is live.", f.Title))
}

func (a *AdminEvents) Edit(ctx context.Context, id int64, f EventForm) (*models.Event, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out, err := a.events.Update(ctx, id, f.Input())
	return report(a.deps, out, err, "Event updated", fmt.Sprintf("Event #%d saved.", id))
}

// ---------- venues ----------

type VenueForm struct {
	Name     string
	Address  string
	Capacity int
}

func (f VenueForm) Validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return validation("venue name required")
	case strings.TrimSpace(f.Address) == "":
		return validation("venue address required")
	case f.Capacity < 1:
		return validation("capacity must be at least 1")
	}
	return nil
}

func (f VenueForm) Input() models.VenueInput {
	return models.VenueInput{
		Name:     ptr(strings.TrimSpace(f.Name)),
		Address:  ptr(strings.TrimSpace(f.Address)),
		Capacity: ptr(f.Capacity),
	}
}

type AdminVenues struct {
	*Table[models.Venue]
	venues *resources.Venues
}

func NewAdminVenues(deps Deps) *AdminVenues {
	v := deps.Resources.Venues
	return &AdminVenues{Table: newTable(deps, "venue", v.ListQuery(), v.Delete), venues: v}
}

func (a *AdminVenues) Create(ctx context.Context, f VenueForm) (*models.Venue, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out, err := a.venues.Create(ctx, f.Input())
	return report(a.deps, out, err, "Venue created", fmt.Sprintf("%s added.", f.Name))
}

func (a *AdminVenues) Edit(ctx context.Context, id int64, f VenueForm) (*models.Venue, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out, err := a.venues.Update(ctx, id, f.Input())
	return report(a.deps, out, err, "Venue updated", fmt.Sprintf("Venue #%d saved.", id))
}

// ---------- venue bookings ----------

type AdminVenueBookings struct {
	*Table[models.VenueBooking]
	venueBookings *resources.VenueBookings
}

func NewAdminVenueBookings(deps Deps) *AdminVenueBookings {
	v := deps.Resources.VenueBookings
	return &AdminVenueBookings{Table: newTable(deps, "venue booking", v.ListQuery(), v.Delete), venueBookings: v}
}

func (a *AdminVenueBookings) setStatus(ctx context.Context, id int64, s models.VenueBookingStatus) (*models.VenueBooking, error) {
	out, err := a.venueBookings.UpdateStatus(ctx, id, s)
	return report(a.deps, out, err, "Venue booking "+strings.ToLower(string(s)), fmt.Sprintf("Venue booking #%d is now %s.", id, s))
}

func (a *AdminVenueBookings) Approve(ctx context.Context, id int64) (*models.VenueBooking, error) {
	return a.setStatus(ctx, id, models.VenueBookingConfirmed)
}

func (a *AdminVenueBookings) Reject(ctx context.Context, id int64) (*models.VenueBooking, error) {
	return a.setStatus(ctx, id, models.VenueBookingRejected)
}

type VenueBookingRow struct {
	ID     int64
	Venue  string
	Event  string
	When   string
	Status string
}

func VenueBookingRows(list []models.VenueBooking) []VenueBookingRow {
	rows := make([]VenueBookingRow, 0, len(list))
	for _, b := range list {
		row := VenueBookingRow{
			ID:     b.VenueBookingID,
			Venue:  fmt.Sprintf("#%d", b.VenueID),
			Event:  orNA(b.EventTitle),
			When:   notAvailable,
			Status: orNA(string(b.Status)),
		}
		if b.Date != "" {
			row.When = fmt.Sprintf("%s %s-%s", b.Date, b.StartTime, b.EndTime)
		}
		if b.Venue != nil && b.Venue.Name != "" {
			row.Venue = b.Venue.Name
		}
		rows = append(rows, row)
	}
	return rows
}

func ptr[T any](v T) *T { return &v }
