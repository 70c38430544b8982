package devserver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/api"
	"ticketkenya/internal/config"
	"ticketkenya/internal/models"
)

const (
	adminEmail = "admin@test.local"
	adminPass  = "admin-pass"
)

type harness struct {
	srv   *Server
	http  *httptest.Server
	token string
	api   *api.Client
}

func newHarness(t *testing.T, confirmAfter int) *harness {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	bdb, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })

	cfg := config.DevServerConfig{
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		ConfirmAfter: confirmAfter,
		AdminEmail:   adminEmail,
		AdminPass:    adminPass,
	}
	srv := New(&DB{Bun: bdb}, cfg, nil)
	require.NoError(t, srv.Setup(context.Background()))

	h := &harness{srv: srv, http: httptest.NewServer(srv.Router())}
	t.Cleanup(h.http.Close)
	h.api = api.New(h.http.URL+"/api", api.WithTokenSource(api.TokenFunc(func() string { return h.token })))
	return h
}

func (h *harness) login(t *testing.T, email, password string) *models.User {
	t.Helper()
	res, err := h.api.Auth.Login(context.Background(), models.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	h.token = res.Token
	return res.User
}

func (h *harness) registerAndLogin(t *testing.T, email string) *models.User {
	t.Helper()
	_, err := h.api.Auth.Register(context.Background(), models.RegisterRequest{
		Firstname: "Wanjiru",
		Lastname:  "Kamau",
		Email:     email,
		Password:  "secret1",
	})
	require.NoError(t, err)
	return h.login(t, email, "secret1")
}

// seedEvent creates a venue and an event as admin and returns the event.
func (h *harness) seedEvent(t *testing.T, total int, price float64) *models.Event {
	t.Helper()
	ctx := context.Background()
	h.login(t, adminEmail, adminPass)
	v, err := h.api.Venues.Create(ctx, models.VenueInput{Name: ptr("KICC"), Address: ptr("Nairobi CBD"), Capacity: ptr(500)})
	require.NoError(t, err)
	e, err := h.api.Events.Create(ctx, models.EventInput{
		Title:        ptr("Blankets & Wine"),
		Category:     ptr("Music"),
		Date:         ptr(time.Now().AddDate(0, 1, 0).Format("2006-01-02")),
		Time:         ptr("18:00"),
		VenueID:      ptr(v.VenueID),
		TicketPrice:  ptr(price),
		TicketsTotal: ptr(total),
	})
	require.NoError(t, err)
	return e
}

func ptr[T any](v T) *T { return &v }

func (h *harness) book(t *testing.T, u *models.User, e *models.Event, qty int) int64 {
	t.Helper()
	res, err := h.api.Bookings.Create(context.Background(), models.BookingRequest{
		UserID:      u.UserID,
		EventID:     e.EventID,
		Quantity:    qty,
		TotalAmount: e.TicketPrice * float64(qty),
	})
	require.NoError(t, err)
	id := res.Identifier()
	require.NotZero(t, id)
	return id
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.api.Auth.Login(context.Background(), models.LoginRequest{Email: adminEmail, Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.StatusCode(err))
	assert.Equal(t, "Invalid credentials", api.ServerMessage(err))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.api.Auth.Register(context.Background(), models.RegisterRequest{
		Firstname: "A", Lastname: "B", Email: adminEmail, Password: "secret1",
	})
	assert.Equal(t, http.StatusConflict, api.StatusCode(err))
}

func TestBookAndPayWithMpesa(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	e := h.seedEvent(t, 10, 1500)
	u := h.registerAndLogin(t, "buyer@test.local")

	bookingID := h.book(t, u, e, 2)
	_, err := h.api.Mpesa.StkPush(ctx, models.StkPushRequest{BookingID: bookingID, Amount: 3000, Phone: "0712345678"})
	require.NoError(t, err)

	status, err := h.api.Mpesa.Status(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayPending, status)

	status, err = h.api.Mpesa.Status(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewaySuccess, status)

	b, err := h.api.Bookings.Get(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.BookingStatus)

	payments, err := h.api.Payments.Me(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentConfirmed, payments[0].PaymentStatus)

	// settled payments keep answering Success
	status, err = h.api.Mpesa.Status(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewaySuccess, status)

	mine, err := h.api.Bookings.Me(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Blankets & Wine", mine[0].EventTitle)
	assert.Equal(t, "M-Pesa", mine[0].PaymentMethod)

	ev, err := h.api.Events.Get(ctx, e.EventID)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.TicketsSold)
}

func TestMpesaFailsForTestPhone(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	e := h.seedEvent(t, 10, 100)
	u := h.registerAndLogin(t, "broke@test.local")

	bookingID := h.book(t, u, e, 1)
	_, err := h.api.Mpesa.StkPush(ctx, models.StkPushRequest{BookingID: bookingID, Amount: 100, Phone: "254712345000"})
	require.NoError(t, err)

	status, err := h.api.Mpesa.Status(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayFailed, status)

	b, err := h.api.Bookings.Get(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.BookingStatus)
}

func TestStkPushRejectsWrongAmount(t *testing.T) {
	h := newHarness(t, 0)
	e := h.seedEvent(t, 10, 100)
	u := h.registerAndLogin(t, "a@test.local")
	bookingID := h.book(t, u, e, 1)

	_, err := h.api.Mpesa.StkPush(context.Background(), models.StkPushRequest{BookingID: bookingID, Amount: 1, Phone: "0712345678"})
	assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))
}

func TestBookingCannotOversell(t *testing.T) {
	h := newHarness(t, 0)
	e := h.seedEvent(t, 3, 50)
	u := h.registerAndLogin(t, "fan@test.local")

	h.book(t, u, e, 2)
	_, err := h.api.Bookings.Create(context.Background(), models.BookingRequest{
		UserID: u.UserID, EventID: e.EventID, Quantity: 2, TotalAmount: 100,
	})
	assert.Equal(t, http.StatusConflict, api.StatusCode(err))
}

func TestAdminRoutesNeedAdmin(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.api.Users.Me(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	h.registerAndLogin(t, "user@test.local")
	_, err = h.api.Users.List(ctx)
	assert.ErrorIs(t, err, api.ErrForbidden)
	_, err = h.api.Sales.Report(ctx)
	assert.ErrorIs(t, err, api.ErrForbidden)
}

func TestUserCannotPromoteThemselves(t *testing.T) {
	h := newHarness(t, 0)
	u := h.registerAndLogin(t, "sneaky@test.local")
	admin := models.RoleAdmin
	_, err := h.api.Users.Update(context.Background(), u.UserID, models.UserUpdate{Role: &admin})
	assert.ErrorIs(t, err, api.ErrForbidden)
}

func TestMyPaymentsIsNotFoundWhenEmpty(t *testing.T) {
	h := newHarness(t, 0)
	h.registerAndLogin(t, "new@test.local")
	_, err := h.api.Payments.Me(context.Background())
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestEventFilters(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	e := h.seedEvent(t, 10, 100)

	list, err := h.api.Events.List(ctx, models.EventFilters{Category: "Music", Location: "nairobi"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e.EventID, list[0].EventID)
	require.NotNil(t, list[0].Venue)

	list, err = h.api.Events.List(ctx, models.EventFilters{Category: "Sports"})
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := h.api.Events.GetBySlug(ctx, e.Slug)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, got.EventID)
}

func TestVenueSlotConflict(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	e := h.seedEvent(t, 10, 100)
	h.registerAndLogin(t, "organiser@test.local")

	req := models.VenueBookingRequest{VenueID: e.VenueID, EventTitle: "Launch", Date: "2030-01-10", StartTime: "10:00", EndTime: "12:00"}
	_, err := h.api.VenueBookings.Create(ctx, req)
	require.NoError(t, err)

	overlap := req
	overlap.StartTime, overlap.EndTime = "11:00", "13:00"
	avail, err := h.api.VenueBookings.Availability(ctx, overlap)
	require.NoError(t, err)
	assert.False(t, avail.Available)

	_, err = h.api.VenueBookings.Create(ctx, overlap)
	assert.Equal(t, http.StatusConflict, api.StatusCode(err))

	after := req
	after.StartTime, after.EndTime = "12:00", "14:00"
	avail, err = h.api.VenueBookings.Availability(ctx, after)
	require.NoError(t, err)
	assert.True(t, avail.Available)
}

func TestSupportTicketLifecycle(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.registerAndLogin(t, "help@test.local")

	tk, err := h.api.Support.Create(ctx, models.SupportTicketInput{Subject: ptr("Refund"), Description: ptr("Event moved")})
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, tk.Status)

	resolved := models.TicketResolved
	_, err = h.api.Support.Update(ctx, tk.TicketID, models.SupportTicketInput{Status: &resolved})
	assert.ErrorIs(t, err, api.ErrForbidden)

	h.login(t, adminEmail, adminPass)
	tk, err = h.api.Support.Update(ctx, tk.TicketID, models.SupportTicketInput{Status: &resolved, AdminResponse: ptr("Refunded")})
	require.NoError(t, err)
	assert.Equal(t, models.TicketResolved, tk.Status)
	assert.Equal(t, "Refunded", tk.AdminResponse)
}

func TestSalesReportCSV(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	e := h.seedEvent(t, 10, 250.5)
	u := h.registerAndLogin(t, "csv@test.local")
	bookingID := h.book(t, u, e, 2)
	_, err := h.api.Mpesa.StkPush(ctx, models.StkPushRequest{BookingID: bookingID, Amount: 501, Phone: "0712345678"})
	require.NoError(t, err)
	_, err = h.api.Mpesa.Status(ctx, bookingID)
	require.NoError(t, err)

	h.login(t, adminEmail, adminPass)
	report, err := h.api.Sales.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalBookings)
	assert.InDelta(t, 501.0, report.TotalRevenue, 0.001)
	require.Len(t, report.TopEvents, 1)
	assert.Equal(t, 2, report.TopEvents[0].TotalTicketsSold)

	var buf bytes.Buffer
	_, err = h.api.Sales.DownloadReport(ctx, models.ReportCSV, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Blankets & Wine,2,501.00")

	_, err = h.api.Sales.DownloadReport(ctx, models.ReportPDF, io.Discard)
	assert.Equal(t, http.StatusNotImplemented, api.StatusCode(err))
}

func TestUploadRoundTrip(t *testing.T) {
	h := newHarness(t, 0)
	h.registerAndLogin(t, "pic@test.local")
	png := []byte("\x89PNG\r\n\x1a\n0000000000000000")

	res, err := h.api.Uploads.Image(context.Background(), "me.png", bytes.NewReader(png))
	require.NoError(t, err)
	require.NotEmpty(t, res.Location())

	resp, err := http.Get(res.Location())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, 0)
	e := h.seedEvent(t, 10, 100)
	u := h.registerAndLogin(t, "m@test.local")
	h.book(t, u, e, 1)

	resp, err := http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bookings_created_total 1")
	assert.Contains(t, string(body), "http_requests_total")
}

func TestSlugify(t *testing.T) {
	s := Slugify("Sauti Sol: Live!")
	assert.True(t, strings.HasPrefix(s, "sauti-sol-live-"), s)
	assert.Len(t, s, len("sauti-sol-live-")+8)
}
