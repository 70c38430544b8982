package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ticketkenya/internal/models"
)

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	return out, err
}

func send[T any](ctx context.Context, c *Client, method, path string, in any) (T, error) {
	var out T
	err := c.do(ctx, method, path, nil, in, &out)
	return out, err
}

func del(ctx context.Context, c *Client, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ---------- auth ----------

type AuthService struct{ c *Client }

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return send[*models.AuthResponse](ctx, s.c, http.MethodPost, "auth/login", req)
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return send[*models.AuthResponse](ctx, s.c, http.MethodPost, "auth/register", req)
}

// ---------- users ----------

type UsersService struct{ c *Client }

func (s *UsersService) List(ctx context.Context) ([]models.User, error) {
	return get[[]models.User](ctx, s.c, "users", nil)
}

func (s *UsersService) Get(ctx context.Context, id int64) (*models.User, error) {
	return get[*models.User](ctx, s.c, idPath("users", id), nil)
}

func (s *UsersService) Me(ctx context.Context) (*models.User, error) {
	return get[*models.User](ctx, s.c, "users/me", nil)
}

func (s *UsersService) Update(ctx context.Context, id int64, patch models.UserUpdate) (*models.User, error) {
	return send[*models.User](ctx, s.c, http.MethodPut, idPath("users", id), patch)
}

func (s *UsersService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("users", id))
}

// ---------- events ----------

type EventsService struct{ c *Client }

// EventQuery serializes filters: the location filter travels as address and
// empty values are omitted.
func EventQuery(f models.EventFilters) url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(f.Category); v != "" {
		q.Set("category", v)
	}
	if v := strings.TrimSpace(f.Date); v != "" {
		q.Set("date", v)
	}
	if v := strings.TrimSpace(f.Location); v != "" {
		q.Set("address", v)
	}
	if f.UpcomingOnly {
		q.Set("upcomingOnly", "true")
	}
	return q
}

func (s *EventsService) List(ctx context.Context, f models.EventFilters) ([]models.Event, error) {
	return get[[]models.Event](ctx, s.c, "events", EventQuery(f))
}

func (s *EventsService) Get(ctx context.Context, id int64) (*models.Event, error) {
	return get[*models.Event](ctx, s.c, idPath("events", id), nil)
}

func (s *EventsService) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return get[*models.Event](ctx, s.c, "events/slug/"+url.PathEscape(slug), nil)
}

func (s *EventsService) Create(ctx context.Context, in models.EventInput) (*models.Event, error) {
	return send[*models.Event](ctx, s.c, http.MethodPost, "events", in)
}

func (s *EventsService) Update(ctx context.Context, id int64, in models.EventInput) (*models.Event, error) {
	return send[*models.Event](ctx, s.c, http.MethodPut, idPath("events", id), in)
}

func (s *EventsService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("events", id))
}

// ---------- venues ----------

type VenuesService struct{ c *Client }

func (s *VenuesService) List(ctx context.Context) ([]models.Venue, error) {
	return get[[]models.Venue](ctx, s.c, "venues", nil)
}

func (s *VenuesService) Get(ctx context.Context, id int64) (*models.Venue, error) {
	return get[*models.Venue](ctx, s.c, idPath("venues", id), nil)
}

func (s *VenuesService) Create(ctx context.Context, in models.VenueInput) (*models.Venue, error) {
	return send[*models.Venue](ctx, s.c, http.MethodPost, "venues", in)
}

func (s *VenuesService) Update(ctx context.Context, id int64, in models.VenueInput) (*models.Venue, error) {
	return send[*models.Venue](ctx, s.c, http.MethodPut, idPath("venues", id), in)
}

func (s *VenuesService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("venues", id))
}

// ---------- bookings ----------

type BookingsService struct{ c *Client }

func (s *BookingsService) List(ctx context.Context) ([]models.Booking, error) {
	return get[[]models.Booking](ctx, s.c, "bookings", nil)
}

func (s *BookingsService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return get[*models.Booking](ctx, s.c, idPath("bookings", id), nil)
}

func (s *BookingsService) Me(ctx context.Context) ([]models.UserBooking, error) {
	return get[[]models.UserBooking](ctx, s.c, "bookings/me", nil)
}

func (s *BookingsService) Create(ctx context.Context, in models.BookingRequest) (*models.BookingCreated, error) {
	return send[*models.BookingCreated](ctx, s.c, http.MethodPost, "bookings", in)
}

func (s *BookingsService) Update(ctx context.Context, id int64, in models.BookingUpdate) (*models.Booking, error) {
	return send[*models.Booking](ctx, s.c, http.MethodPut, idPath("bookings", id), in)
}

func (s *BookingsService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("bookings", id))
}

// ---------- payments ----------

type PaymentsService struct{ c *Client }

func (s *PaymentsService) List(ctx context.Context) ([]models.Payment, error) {
	return get[[]models.Payment](ctx, s.c, "payments", nil)
}

func (s *PaymentsService) Get(ctx context.Context, id int64) (*models.Payment, error) {
	return get[*models.Payment](ctx, s.c, idPath("payments", id), nil)
}

func (s *PaymentsService) Me(ctx context.Context) ([]models.Payment, error) {
	return get[[]models.Payment](ctx, s.c, "payments/me", nil)
}

func (s *PaymentsService) Create(ctx context.Context, in models.PaymentInput) (*models.Payment, error) {
	return send[*models.Payment](ctx, s.c, http.MethodPost, "payments", in)
}

func (s *PaymentsService) Update(ctx context.Context, id int64, in models.PaymentInput) (*models.Payment, error) {
	return send[*models.Payment](ctx, s.c, http.MethodPut, idPath("payments", id), in)
}

func (s *PaymentsService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("payments", id))
}

// ---------- mpesa ----------

type MpesaService struct{ c *Client }

func (s *MpesaService) StkPush(ctx context.Context, req models.StkPushRequest) (*models.StkPushResponse, error) {
	return send[*models.StkPushResponse](ctx, s.c, http.MethodPost, "mpesa/stkpush", req)
}

func (s *MpesaService) Status(ctx context.Context, bookingID int64) (models.GatewayStatus, error) {
	q := url.Values{"bookingId": {strconv.FormatInt(bookingID, 10)}}
	res, err := get[models.PaymentStatusResponse](ctx, s.c, "mpesa/status", q)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// ---------- support tickets ----------

type SupportService struct{ c *Client }

func (s *SupportService) List(ctx context.Context) ([]models.SupportTicket, error) {
	return get[[]models.SupportTicket](ctx, s.c, "support-tickets", nil)
}

func (s *SupportService) Get(ctx context.Context, id int64) (*models.SupportTicket, error) {
	return get[*models.SupportTicket](ctx, s.c, idPath("support-tickets", id), nil)
}

func (s *SupportService) Me(ctx context.Context) ([]models.SupportTicket, error) {
	return get[[]models.SupportTicket](ctx, s.c, "support-tickets/me", nil)
}

func (s *SupportService) Create(ctx context.Context, in models.SupportTicketInput) (*models.SupportTicket, error) {
	return send[*models.SupportTicket](ctx, s.c, http.MethodPost, "support-tickets", in)
}

func (s *SupportService) Update(ctx context.Context, id int64, in models.SupportTicketInput) (*models.SupportTicket, error) {
	return send[*models.SupportTicket](ctx, s.c, http.MethodPut, idPath("support-tickets", id), in)
}

func (s *SupportService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("support-tickets", id))
}

// ---------- sales ----------

type SalesService struct{ c *Client }

func (s *SalesService) Report(ctx context.Context) (*models.SalesReport, error) {
	return get[*models.SalesReport](ctx, s.c, "sales/report", nil)
}

// ---------- venue bookings ----------

type VenueBookingsService struct{ c *Client }

func (s *VenueBookingsService) List(ctx context.Context) ([]models.VenueBooking, error) {
	return get[[]models.VenueBooking](ctx, s.c, "venues/bookings", nil)
}

func (s *VenueBookingsService) Get(ctx context.Context, id int64) (*models.VenueBooking, error) {
	return get[*models.VenueBooking](ctx, s.c, idPath("venues/bookings", id), nil)
}

func (s *VenueBookingsService) Me(ctx context.Context) ([]models.VenueBooking, error) {
	return get[[]models.VenueBooking](ctx, s.c, "venues/bookings/me", nil)
}

func (s *VenueBookingsService) Create(ctx context.Context, in models.VenueBookingRequest) (*models.VenueBooking, error) {
	return send[*models.VenueBooking](ctx, s.c, http.MethodPost, "venues/bookings", in)
}

func (s *VenueBookingsService) UpdateStatus(ctx context.Context, id int64, status models.VenueBookingStatus) (*models.VenueBooking, error) {
	body := map[string]models.VenueBookingStatus{"status": status}
	return send[*models.VenueBooking](ctx, s.c, http.MethodPut, idPath("venues/bookings", id)+"/status", body)
}

func (s *VenueBookingsService) Delete(ctx context.Context, id int64) error {
	return del(ctx, s.c, idPath("venues/bookings", id))
}

func (s *VenueBookingsService) Availability(ctx context.Context, req models.VenueBookingRequest) (*models.VenueAvailability, error) {
	q := url.Values{
		"venueId":   {strconv.FormatInt(req.VenueID, 10)},
		"date":      {req.Date},
		"startTime": {req.StartTime},
		"endTime":   {req.EndTime},
	}
	return get[*models.VenueAvailability](ctx, s.c, "venues/availability", q)
}
