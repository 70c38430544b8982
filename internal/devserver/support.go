package devserver

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketkenya/internal/models"
)

// ---------- support tickets ----------

func (s *Server) ListTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.db.Tickets(ctx, 0)
	if s.fail(w, "support tickets", err) {
		return
	}
	users, err := s.db.Users(ctx)
	if s.fail(w, "users", err) {
		return
	}
	byID := make(map[int64]*models.User, len(users))
	for i := range users {
		byID[users[i].UserID] = &users[i]
	}
	for i := range list {
		list[i].User = byID[list[i].UserID]
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) MyTickets(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.Tickets(r.Context(), ClaimsFrom(r.Context()).UserID())
	if s.fail(w, "support tickets", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) ownTicket(w http.ResponseWriter, r *http.Request) (*models.SupportTicket, bool) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return nil, false
	}
	t, err := s.db.TicketByID(r.Context(), id)
	if s.fail(w, "support ticket", err) {
		return nil, false
	}
	if !owns(r.Context(), t.UserID) {
		writeError(w, http.StatusForbidden, "not your support ticket")
		return nil, false
	}
	return t, true
}

func (s *Server) GetTicket(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.ownTicket(w, r); ok {
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var in models.SupportTicketInput
	if !decode(w, r, &in) {
		return
	}
	now := time.Now()
	t := &models.SupportTicket{
		UserID:    ClaimsFrom(r.Context()).UserID(),
		Status:    models.TicketOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	setString(&t.Subject, in.Subject)
	setString(&t.Description, in.Description)
	if t.Subject == "" || t.Description == "" {
		writeError(w, http.StatusBadRequest, "subject and description are required")
		return
	}
	if err := s.db.CreateTicket(r.Context(), t); err != nil {
		s.internal(w, "create support ticket", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTicket lets owners edit the text; status and responses are admin only.
func (s *Server) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownTicket(w, r)
	if !ok {
		return
	}
	var in models.SupportTicketInput
	if !decode(w, r, &in) {
		return
	}
	admin := ClaimsFrom(r.Context()).Role == models.RoleAdmin
	if !admin && (in.Status != nil || in.AdminResponse != nil) {
		writeError(w, http.StatusForbidden, "only admins can resolve tickets")
		return
	}
	setString(&t.Subject, in.Subject)
	setString(&t.Description, in.Description)
	setString(&t.AdminResponse, in.AdminResponse)
	if in.Status != nil {
		if *in.Status != models.TicketOpen && *in.Status != models.TicketResolved {
			writeError(w, http.StatusBadRequest, "status must be Open or Resolved")
			return
		}
		t.Status = *in.Status
	}
	t.UpdatedAt = time.Now()
	if err := s.db.UpdateTicket(r.Context(), t); err != nil {
		s.internal(w, "update support ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownTicket(w, r)
	if !ok {
		return
	}
	if s.fail(w, "support ticket", s.db.DeleteTicket(r.Context(), t.TicketID)) {
		return
	}
	writeMessage(w, "Support ticket deleted successfully")
}

// ---------- venue bookings ----------

func validSlot(req models.VenueBookingRequest) string {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return "date must be YYYY-MM-DD"
	}
	start, err1 := time.Parse("15:04", req.StartTime)
	end, err2 := time.Parse("15:04", req.EndTime)
	switch {
	case err1 != nil || err2 != nil:
		return "startTime and endTime must be HH:MM"
	case !end.After(start):
		return "endTime must be after startTime"
	}
	return ""
}

func (s *Server) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	venueID, err := strconv.ParseInt(q.Get("venueId"), 10, 64)
	if err != nil || venueID <= 0 {
		writeError(w, http.StatusBadRequest, "venueId is required")
		return
	}
	req := models.VenueBookingRequest{VenueID: venueID, Date: q.Get("date"), StartTime: q.Get("startTime"), EndTime: q.Get("endTime")}
	if msg := validSlot(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if _, err := s.db.VenueByID(r.Context(), venueID); s.fail(w, "venue", err) {
		return
	}
	taken, err := s.db.SlotTaken(r.Context(), venueID, req.Date, req.StartTime, req.EndTime)
	if s.fail(w, "venue bookings", err) {
		return
	}
	if taken {
		writeJSON(w, http.StatusOK, models.VenueAvailability{Available: false, Message: "Venue is already booked for that time"})
		return
	}
	writeJSON(w, http.StatusOK, models.VenueAvailability{Available: true, Message: "Venue is available"})
}

func (s *Server) withVenues(r *http.Request, list []models.VenueBooking) error {
	venues, err := s.db.Venues(r.Context())
	if err != nil {
		return err
	}
	byID := make(map[int64]*models.Venue, len(venues))
	for i := range venues {
		byID[venues[i].VenueID] = &venues[i]
	}
	for i := range list {
		list[i].Venue = byID[list[i].VenueID]
	}
	return nil
}

func (s *Server) ListVenueBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.VenueBookings(r.Context(), 0)
	if err == nil {
		err = s.withVenues(r, list)
	}
	if s.fail(w, "venue bookings", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) MyVenueBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.VenueBookings(r.Context(), ClaimsFrom(r.Context()).UserID())
	if err == nil {
		err = s.withVenues(r, list)
	}
	if s.fail(w, "venue bookings", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) ownVenueBooking(w http.ResponseWriter, r *http.Request) (*models.VenueBooking, bool) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return nil, false
	}
	b, err := s.db.VenueBookingByID(r.Context(), id)
	if s.fail(w, "venue booking", err) {
		return nil, false
	}
	if !owns(r.Context(), b.UserID) {
		writeError(w, http.StatusForbidden, "not your venue booking")
		return nil, false
	}
	return b, true
}

func (s *Server) GetVenueBooking(w http.ResponseWriter, r *http.Request) {
	if b, ok := s.ownVenueBooking(w, r); ok {
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) CreateVenueBooking(w http.ResponseWriter, r *http.Request) {
	var req models.VenueBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.EventTitle) == "" {
		writeError(w, http.StatusBadRequest, "eventTitle is required")
		return
	}
	if msg := validSlot(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	ctx := r.Context()
	if _, err := s.db.VenueByID(ctx, req.VenueID); s.fail(w, "venue", err) {
		return
	}
	taken, err := s.db.SlotTaken(ctx, req.VenueID, req.Date, req.StartTime, req.EndTime)
	if s.fail(w, "venue bookings", err) {
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "Venue is already booked for that time")
		return
	}
	now := time.Now()
	b := &models.VenueBooking{
		UserID:     ClaimsFrom(ctx).UserID(),
		VenueID:    req.VenueID,
		EventTitle: strings.TrimSpace(req.EventTitle),
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Status:     models.VenueBookingPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.CreateVenueBooking(ctx, b); err != nil {
		s.internal(w, "create venue booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) SetVenueBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status models.VenueBookingStatus `json:"status"`
	}
	if !decode(w, r, &body) {
		return
	}
	switch body.Status {
	case models.VenueBookingPending, models.VenueBookingConfirmed, models.VenueBookingRejected:
	default:
		writeError(w, http.StatusBadRequest, "status must be Pending, Confirmed or Rejected")
		return
	}
	ctx := r.Context()
	if s.fail(w, "venue booking", s.db.SetVenueBookingStatus(ctx, id, body.Status)) {
		return
	}
	b, err := s.db.VenueBookingByID(ctx, id)
	if s.fail(w, "venue booking", err) {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) DeleteVenueBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ownVenueBooking(w, r)
	if !ok {
		return
	}
	if s.fail(w, "venue booking", s.db.DeleteVenueBooking(r.Context(), b.VenueBookingID)) {
		return
	}
	writeMessage(w, "Venue booking deleted successfully")
}

// ---------- sales ----------

// salesReport totals confirmed bookings per event.
func (s *Server) salesReport(r *http.Request) (*models.SalesReport, error) {
	ctx := r.Context()
	bookings, err := s.db.Bookings(ctx, 0)
	if err != nil {
		return nil, err
	}
	events, err := s.db.Events(ctx, EventFilter{})
	if err != nil {
		return nil, err
	}
	titles := make(map[int64]string, len(events))
	for _, e := range events {
		titles[e.EventID] = e.Title
	}

	type agg struct {
		sold    int
		revenue decimal.Decimal
	}
	per := make(map[int64]*agg)
	total := decimal.Zero
	report := &models.SalesReport{}
	for _, b := range bookings {
		if b.BookingStatus != models.BookingConfirmed {
			continue
		}
		report.TotalBookings++
		amount := decimal.NewFromFloat(b.TotalAmount)
		total = total.Add(amount)
		a := per[b.EventID]
		if a == nil {
			a = &agg{revenue: decimal.Zero}
			per[b.EventID] = a
		}
		a.sold += b.Quantity
		a.revenue = a.revenue.Add(amount)
	}
	report.TotalRevenue = total.InexactFloat64()
	report.TopEvents = make([]models.TopEvent, 0, len(per))
	for id, a := range per {
		report.TopEvents = append(report.TopEvents, models.TopEvent{
			EventID:          id,
			Title:            titles[id],
			TotalTicketsSold: a.sold,
			TotalRevenue:     a.revenue.InexactFloat64(),
		})
	}
	sort.Slice(report.TopEvents, func(i, j int) bool {
		if report.TopEvents[i].TotalRevenue != report.TopEvents[j].TotalRevenue {
			return report.TopEvents[i].TotalRevenue > report.TopEvents[j].TotalRevenue
		}
		return report.TopEvents[i].EventID < report.TopEvents[j].EventID
	})
	return report, nil
}

func (s *Server) SalesReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.salesReport(r)
	if s.fail(w, "sales report", err) {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) SalesReportFile(w http.ResponseWriter, r *http.Request) {
	switch models.ReportFormat(chi.URLParam(r, "format")) {
	case models.ReportCSV:
	case models.ReportPDF:
		writeError(w, http.StatusNotImplemented, "PDF reports are not available on the dev backend")
		return
	default:
		writeError(w, http.StatusNotFound, "unknown report format")
		return
	}
	report, err := s.salesReport(r)
	if s.fail(w, "sales report", err) {
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"eventId", "title", "ticketsSold", "revenue"})
	for _, e := range report.TopEvents {
		_ = cw.Write([]string{
			strconv.FormatInt(e.EventID, 10),
			e.Title,
			strconv.Itoa(e.TotalTicketsSold),
			decimal.NewFromFloat(e.TotalRevenue).StringFixed(2),
		})
	}
	_ = cw.Write([]string{"", "TOTAL", strconv.Itoa(report.TotalBookings), decimal.NewFromFloat(report.TotalRevenue).StringFixed(2)})
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.internal(w, "write csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-report.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// ---------- uploads ----------

type upload struct {
	contentType string
	data        []byte
}

const maxUploadBytes = 5 << 20

func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image is larger than 5 MB")
		return
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		writeError(w, http.StatusBadRequest, "only images can be uploaded")
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	s.uploadsMu.Lock()
	s.uploads[name] = upload{contentType: ct, data: data}
	s.uploadsMu.Unlock()

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/api/uploads/%s", scheme, r.Host, name)
	writeJSON(w, http.StatusCreated, models.UploadResult{URL: url, SecureURL: url, PublicID: name})
}

func (s *Server) ServeUpload(w http.ResponseWriter, r *http.Request) {
	s.uploadsMu.RLock()
	u, ok := s.uploads[chi.URLParam(r, "name")]
	s.uploadsMu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	w.Header().Set("Content-Type", u.contentType)
	_, _ = w.Write(u.data)
}
