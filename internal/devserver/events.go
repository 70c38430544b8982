package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ticketkenya/internal/models"
)

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := EventFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Date:     strings.TrimSpace(q.Get("date")),
		Address:  strings.TrimSpace(q.Get("address")),
	}
	if q.Get("upcomingOnly") == "true" {
		f.Upcoming = time.Now().Format("2006-01-02")
	}
	list, err := s.db.Events(r.Context(), f)
	if s.fail(w, "events", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	e, err := s.db.EventBy(r.Context(), "event_id", id)
	if s.fail(w, "event", err) {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) GetEventBySlug(w http.ResponseWriter, r *http.Request) {
	e, err := s.db.EventBy(r.Context(), "slug", chi.URLParam(r, "slug"))
	if s.fail(w, "event", err) {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// applyEvent copies the set fields of in onto e and validates the result.
func applyEvent(e *models.Event, in models.EventInput) string {
	setString(&e.Title, in.Title)
	setString(&e.Slug, in.Slug)
	setString(&e.Description, in.Description)
	setString(&e.Category, in.Category)
	setString(&e.Date, in.Date)
	setString(&e.Time, in.Time)
	setString(&e.Image, in.Image)
	if in.VenueID != nil {
		e.VenueID = *in.VenueID
	}
	if in.TicketPrice != nil {
		e.TicketPrice = *in.TicketPrice
	}
	if in.TicketsTotal != nil {
		e.TicketsTotal = *in.TicketsTotal
	}

	switch {
	case e.Title == "":
		return "title is required"
	case e.Date == "":
		return "date is required"
	case e.VenueID <= 0:
		return "venueId is required"
	case e.TicketPrice < 0:
		return "ticketPrice cannot be negative"
	case e.TicketsTotal < e.TicketsSold || e.TicketsTotal < 1:
		return "ticketsTotal must be at least 1 and not below tickets already sold"
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return "date must be YYYY-MM-DD"
	}
	return ""
}

func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	now := time.Now()
	e := &models.Event{CreatedAt: now, UpdatedAt: now}
	if msg := applyEvent(e, in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if _, err := s.db.VenueByID(ctx, e.VenueID); s.fail(w, "venue", err) {
		return
	}
	if e.Slug == "" {
		e.Slug = Slugify(e.Title)
	}
	if err := s.db.CreateEvent(ctx, e); err != nil {
		s.internal(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in models.EventInput
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	e, err := s.db.EventBy(ctx, "event_id", id)
	if s.fail(w, "event", err) {
		return
	}
	if msg := applyEvent(e, in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	e.UpdatedAt = time.Now()
	if err := s.db.UpdateEvent(ctx, e); err != nil {
		s.internal(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if s.fail(w, "event", s.db.DeleteEvent(r.Context(), id)) {
		return
	}
	writeMessage(w, "Event deleted successfully")
}

// ---------- venues ----------

func (s *Server) ListVenues(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.Venues(r.Context())
	if s.fail(w, "venues", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) GetVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	v, err := s.db.VenueByID(r.Context(), id)
	if s.fail(w, "venue", err) {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func applyVenue(v *models.Venue, in models.VenueInput) string {
	setString(&v.Name, in.Name)
	setString(&v.Address, in.Address)
	if in.Capacity != nil {
		v.Capacity = *in.Capacity
	}
	switch {
	case v.Name == "":
		return "name is required"
	case v.Address == "":
		return "address is required"
	case v.Capacity < 1:
		return "capacity must be at least 1"
	}
	return ""
}

func (s *Server) CreateVenue(w http.ResponseWriter, r *http.Request) {
	var in models.VenueInput
	if !decode(w, r, &in) {
		return
	}
	now := time.Now()
	v := &models.Venue{CreatedAt: now, UpdatedAt: now}
	if msg := applyVenue(v, in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.db.CreateVenue(r.Context(), v); err != nil {
		s.internal(w, "create venue", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) UpdateVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in models.VenueInput
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	v, err := s.db.VenueByID(ctx, id)
	if s.fail(w, "venue", err) {
		return
	}
	if msg := applyVenue(v, in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	v.UpdatedAt = time.Now()
	if err := s.db.UpdateVenue(ctx, v); err != nil {
		s.internal(w, "update venue", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) DeleteVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if s.fail(w, "venue", s.db.DeleteVenue(r.Context(), id)) {
		return
	}
	writeMessage(w, "Venue deleted successfully")
}
