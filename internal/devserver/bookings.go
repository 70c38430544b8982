package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketkenya/internal/checkout"
	"ticketkenya/internal/models"
)

func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	claims := ClaimsFrom(ctx)
	if req.UserID == 0 {
		req.UserID = claims.UserID()
	}
	if !owns(ctx, req.UserID) {
		writeError(w, http.StatusForbidden, "you can only book for yourself")
		return
	}
	if req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}
	event, err := s.db.EventBy(ctx, "event_id", req.EventID)
	if s.fail(w, "event", err) {
		return
	}
	total := decimal.NewFromFloat(event.TicketPrice).Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
	if !total.Equal(decimal.NewFromFloat(req.TotalAmount).Round(2)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("totalAmount should be %s", total.StringFixed(2)))
		return
	}

	now := time.Now()
	b := &models.Booking{
		UserID:        req.UserID,
		EventID:       req.EventID,
		Quantity:      req.Quantity,
		TotalAmount:   total.InexactFloat64(),
		BookingStatus: models.BookingPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, ErrNotEnoughTickets) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.internal(w, "create booking", err)
		return
	}
	s.metrics.bookings.Inc()
	s.metrics.ticketsSold.Add(float64(b.Quantity))
	writeJSON(w, http.StatusCreated, models.BookingCreated{BookingID: b.BookingID, Booking: b, Message: "Booking created successfully"})
}

// ListBookings embeds user, event and latest payment; any of them may be
// missing when the referenced row was deleted.
func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.db.Bookings(ctx, 0)
	if s.fail(w, "bookings", err) {
		return
	}
	users, err := s.db.Users(ctx)
	if s.fail(w, "users", err) {
		return
	}
	events, err := s.db.Events(ctx, EventFilter{})
	if s.fail(w, "events", err) {
		return
	}
	payments, err := s.db.Payments(ctx)
	if s.fail(w, "payments", err) {
		return
	}

	userByID := make(map[int64]*models.User, len(users))
	for i := range users {
		userByID[users[i].UserID] = &users[i]
	}
	eventByID := make(map[int64]*models.Event, len(events))
	for i := range events {
		eventByID[events[i].EventID] = &events[i]
	}
	latest := latestPayments(payments)
	for i := range list {
		list[i].User = userByID[list[i].UserID]
		list[i].Event = eventByID[list[i].EventID]
		list[i].Payment = latest[list[i].BookingID]
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func latestPayments(payments []models.Payment) map[int64]*models.Payment {
	out := make(map[int64]*models.Payment, len(payments))
	for i := range payments {
		p := &payments[i]
		if cur, ok := out[p.BookingID]; !ok || p.PaymentID > cur.PaymentID {
			out[p.BookingID] = p
		}
	}
	return out
}

func (s *Server) MyBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.db.Bookings(ctx, ClaimsFrom(ctx).UserID())
	if s.fail(w, "bookings", err) {
		return
	}
	events, err := s.db.Events(ctx, EventFilter{})
	if s.fail(w, "events", err) {
		return
	}
	ids := make([]int64, 0, len(list))
	for _, b := range list {
		ids = append(ids, b.BookingID)
	}
	payments, err := s.db.PaymentsForBookings(ctx, ids)
	if s.fail(w, "payments", err) {
		return
	}

	eventByID := make(map[int64]models.Event, len(events))
	for _, e := range events {
		eventByID[e.EventID] = e
	}
	latest := latestPayments(payments)
	rows := make([]models.UserBooking, 0, len(list))
	for _, b := range list {
		row := models.UserBooking{
			BookingID:     b.BookingID,
			Quantity:      b.Quantity,
			TotalAmount:   b.TotalAmount,
			BookingStatus: string(b.BookingStatus),
			CreatedAt:     b.CreatedAt.Format(time.RFC3339),
		}
		if e, ok := eventByID[b.EventID]; ok {
			row.EventTitle, row.EventDate = e.Title, e.Date
		}
		if p := latest[b.BookingID]; p != nil {
			row.PaymentMethod, row.PaymentStatus = p.PaymentMethod, string(p.PaymentStatus)
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	b, err := s.db.BookingByID(r.Context(), id)
	if s.fail(w, "booking", err) {
		return
	}
	if !owns(r.Context(), b.UserID) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in models.BookingUpdate
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	b, err := s.db.BookingByID(ctx, id)
	if s.fail(w, "booking", err) {
		return
	}
	if in.Quantity != nil {
		b.Quantity = *in.Quantity
	}
	if in.TotalAmount != nil {
		b.TotalAmount = *in.TotalAmount
	}
	if in.BookingStatus != nil {
		switch *in.BookingStatus {
		case models.BookingPending, models.BookingConfirmed, models.BookingCancelled:
			b.BookingStatus = *in.BookingStatus
		default:
			writeError(w, http.StatusBadRequest, "bookingStatus must be Pending, Confirmed or Cancelled")
			return
		}
	}
	b.UpdatedAt = time.Now()
	if err := s.db.UpdateBooking(ctx, b); err != nil {
		s.internal(w, "update booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if s.fail(w, "booking", s.db.DeleteBooking(r.Context(), id)) {
		return
	}
	writeMessage(w, "Booking deleted successfully")
}

// ---------- payments ----------

func (s *Server) ListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.Payments(r.Context())
	if s.fail(w, "payments", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// MyPayments answers 404 when the user has none, as the hosted API does.
func (s *Server) MyPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookings, err := s.db.Bookings(ctx, ClaimsFrom(ctx).UserID())
	if s.fail(w, "bookings", err) {
		return
	}
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.BookingID)
	}
	list, err := s.db.PaymentsForBookings(ctx, ids)
	if s.fail(w, "payments", err) {
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusNotFound, "No payments found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	p, err := s.db.PaymentByID(ctx, id)
	if s.fail(w, "payment", err) {
		return
	}
	var owner int64
	if b, err := s.db.BookingByID(ctx, p.BookingID); err == nil {
		owner = b.UserID
	}
	if !owns(ctx, owner) {
		writeError(w, http.StatusForbidden, "not your payment")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var in models.PaymentInput
	if !decode(w, r, &in) {
		return
	}
	if in.BookingID == nil || in.Amount == nil {
		writeError(w, http.StatusBadRequest, "bookingId and amount are required")
		return
	}
	ctx := r.Context()
	if _, err := s.db.BookingByID(ctx, *in.BookingID); s.fail(w, "booking", err) {
		return
	}
	now := time.Now()
	p := &models.Payment{
		BookingID:     *in.BookingID,
		Amount:        *in.Amount,
		PaymentMethod: "Cash",
		PaymentStatus: models.PaymentPending,
		TransactionID: GenerateTransactionID(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyPayment(p, in)
	if err := s.db.CreatePayment(ctx, p); err != nil {
		s.internal(w, "create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func applyPayment(p *models.Payment, in models.PaymentInput) {
	if in.Amount != nil {
		p.Amount = *in.Amount
	}
	setString(&p.PaymentMethod, in.PaymentMethod)
	setString(&p.TransactionID, in.TransactionID)
}

// UpdatePayment confirms the booking too when the payment becomes Confirmed.
func (s *Server) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in models.PaymentInput
	if !decode(w, r, &in) {
		return
	}
	if in.PaymentStatus != nil {
		switch *in.PaymentStatus {
		case models.PaymentPending, models.PaymentConfirmed, models.PaymentFailed:
		default:
			writeError(w, http.StatusBadRequest, "paymentStatus must be Pending, Confirmed or Failed")
			return
		}
	}
	ctx := r.Context()
	p, err := s.db.PaymentByID(ctx, id)
	if s.fail(w, "payment", err) {
		return
	}
	applyPayment(p, in)
	p.UpdatedAt = time.Now()
	if err := s.db.UpdatePayment(ctx, p); err != nil {
		s.internal(w, "update payment", err)
		return
	}
	if in.PaymentStatus != nil && *in.PaymentStatus != p.PaymentStatus {
		if err := s.db.SettlePayment(ctx, p, *in.PaymentStatus); err != nil {
			s.internal(w, "settle payment", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if s.fail(w, "payment", s.db.DeletePayment(r.Context(), id)) {
		return
	}
	writeMessage(w, "Payment deleted successfully")
}

// ---------- M-Pesa simulation ----------

// gateway answers Pending for the first confirmAfter status checks of a
// push and then Success, or Failed for phone numbers ending in 000.
type gateway struct {
	confirmAfter int

	mu     sync.Mutex
	pushes map[int64]*push
}

type push struct {
	phone  string
	checks int
}

func newGateway(confirmAfter int) *gateway {
	if confirmAfter < 0 {
		confirmAfter = 0
	}
	return &gateway{confirmAfter: confirmAfter, pushes: make(map[int64]*push)}
}

func (g *gateway) start(bookingID int64, phone string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes[bookingID] = &push{phone: phone}
}

func (g *gateway) check(bookingID int64) (models.GatewayStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pushes[bookingID]
	if !ok {
		return models.GatewayPending, false
	}
	p.checks++
	if p.checks <= g.confirmAfter {
		return models.GatewayPending, true
	}
	delete(g.pushes, bookingID)
	if strings.HasSuffix(p.phone, "000") {
		return models.GatewayFailed, true
	}
	return models.GatewaySuccess, true
}

func (s *Server) StkPush(w http.ResponseWriter, r *http.Request) {
	var req models.StkPushRequest
	if !decode(w, r, &req) {
		return
	}
	phone, err := checkout.NormalizePhone(req.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	b, err := s.db.BookingByID(ctx, req.BookingID)
	if s.fail(w, "booking", err) {
		return
	}
	if !owns(ctx, b.UserID) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}
	if b.BookingStatus == models.BookingConfirmed {
		writeError(w, http.StatusBadRequest, "Booking is already paid")
		return
	}
	if !decimal.NewFromFloat(req.Amount).Round(2).Equal(decimal.NewFromFloat(b.TotalAmount).Round(2)) {
		writeError(w, http.StatusBadRequest, "amount does not match the booking total")
		return
	}

	now := time.Now()
	p := &models.Payment{
		BookingID:     b.BookingID,
		Amount:        b.TotalAmount,
		PaymentMethod: "M-Pesa",
		PaymentStatus: models.PaymentPending,
		TransactionID: GenerateTransactionID(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.CreatePayment(ctx, p); err != nil {
		s.internal(w, "create payment", err)
		return
	}
	s.gateway.start(b.BookingID, phone)
	s.logger.LogPayment("STK_PUSH", b.BookingID, fmt.Sprintf("%s to %s", decimal.NewFromFloat(p.Amount).StringFixed(2), phone))

	writeJSON(w, http.StatusOK, models.StkPushResponse{
		MerchantRequestID:   uuid.NewString(),
		CheckoutRequestID:   "ws_CO_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	})
}

func (s *Server) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.ParseInt(r.URL.Query().Get("bookingId"), 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusBadRequest, "bookingId is required")
		return
	}
	ctx := r.Context()
	s.metrics.statusPolls.Inc()

	b, err := s.db.BookingByID(ctx, bookingID)
	if s.fail(w, "booking", err) {
		return
	}
	if !owns(ctx, b.UserID) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}
	p, err := s.db.LatestPayment(ctx, bookingID)
	if isNoRows(err) {
		writeJSON(w, http.StatusOK, models.PaymentStatusResponse{Status: models.GatewayPending})
		return
	}
	if s.fail(w, "payment", err) {
		return
	}
	switch p.PaymentStatus {
	case models.PaymentConfirmed:
		writeJSON(w, http.StatusOK, models.PaymentStatusResponse{Status: models.GatewaySuccess})
		return
	case models.PaymentFailed:
		writeJSON(w, http.StatusOK, models.PaymentStatusResponse{Status: models.GatewayFailed})
		return
	}

	status, _ := s.gateway.check(bookingID)
	if status.Terminal() {
		settled := models.PaymentConfirmed
		if status == models.GatewayFailed {
			settled = models.PaymentFailed
		}
		if err := s.db.SettlePayment(ctx, p, settled); err != nil {
			s.internal(w, "settle payment", err)
			return
		}
		s.metrics.stkPushes.WithLabelValues(string(status)).Inc()
		s.logger.LogPayment(strings.ToUpper(string(status)), bookingID, p.TransactionID)
	}
	writeJSON(w, http.StatusOK, models.PaymentStatusResponse{Status: status})
}
