// Package devserver is a local stand-in for the TicketKenya REST API. It
// serves every endpoint the client uses from a bun database (in-memory
// SQLite by default) and simulates the M-Pesa gateway.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ticketkenya/internal/config"
	"ticketkenya/internal/logger"
)

type Server struct {
	db      *DB
	tokens  tokenIssuer
	logger  *logger.Logger
	metrics *Metrics
	gateway *gateway
	cfg     config.DevServerConfig

	uploadsMu sync.RWMutex
	uploads   map[string]upload
}

func New(db *DB, cfg config.DevServerConfig, l *logger.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Server{
		db:      db,
		tokens:  tokenIssuer{secret: []byte(cfg.JWTSecret), ttl: ttl},
		logger:  l,
		metrics: NewMetrics(),
		gateway: newGateway(cfg.ConfirmAfter),
		cfg:     cfg,
		uploads: make(map[string]upload),
	}
}

// Setup migrates the schema and seeds the admin account.
func (s *Server) Setup(ctx context.Context) error {
	if err := Migrate(ctx, s.db.Bun); err != nil {
		return err
	}
	admin, created, err := s.db.SeedAdmin(ctx, s.cfg.AdminEmail, s.cfg.AdminPass)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		s.logger.Info("DATABASE", fmt.Sprintf("Seeded admin user %s (id %d)", admin.Email, admin.UserID))
	}
	return nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Instrument)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { writeMessage(w, "ok") })
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)

		r.Get("/events", s.ListEvents)
		r.Get("/events/{id}", s.GetEvent)
		r.Get("/events/slug/{slug}", s.GetEventBySlug)
		r.Get("/venues", s.ListVenues)
		r.Get("/uploads/{name}", s.ServeUpload)

		r.Group(func(r chi.Router) {
			r.Use(s.Authenticated)

			r.Get("/users/me", s.Me)
			r.Get("/users/{id}", s.GetUser)
			r.Put("/users/{id}", s.UpdateUser)

			r.Get("/bookings/me", s.MyBookings)
			r.Get("/bookings/{id}", s.GetBooking)
			r.Post("/bookings", s.CreateBooking)

			r.Get("/payments/me", s.MyPayments)
			r.Get("/payments/{id}", s.GetPayment)
			r.Post("/mpesa/stkpush", s.StkPush)
			r.Get("/mpesa/status", s.PaymentStatus)

			r.Get("/support-tickets/me", s.MyTickets)
			r.Get("/support-tickets/{id}", s.GetTicket)
			r.Post("/support-tickets", s.CreateTicket)
			r.Put("/support-tickets/{id}", s.UpdateTicket)
			r.Delete("/support-tickets/{id}", s.DeleteTicket)

			r.Get("/venues/availability", s.Availability)
			r.Get("/venues/bookings/me", s.MyVenueBookings)
			r.Get("/venues/bookings/{id}", s.GetVenueBooking)
			r.Post("/venues/bookings", s.CreateVenueBooking)
			r.Delete("/venues/bookings/{id}", s.DeleteVenueBooking)

			r.Post("/uploads/images", s.UploadImage)

			r.Group(func(r chi.Router) {
				r.Use(s.AdminOnly)

				r.Get("/users", s.ListUsers)
				r.Delete("/users/{id}", s.DeleteUser)

				r.Post("/events", s.CreateEvent)
				r.Put("/events/{id}", s.UpdateEvent)
				r.Delete("/events/{id}", s.DeleteEvent)

				r.Get("/venues/{id}", s.GetVenue)
				r.Post("/venues", s.CreateVenue)
				r.Put("/venues/{id}", s.UpdateVenue)
				r.Delete("/venues/{id}", s.DeleteVenue)

				r.Get("/bookings", s.ListBookings)
				r.Put("/bookings/{id}", s.UpdateBooking)
				r.Delete("/bookings/{id}", s.DeleteBooking)

				r.Get("/payments", s.ListPayments)
				r.Post("/payments", s.CreatePayment)
				r.Put("/payments/{id}", s.UpdatePayment)
				r.Delete("/payments/{id}", s.DeletePayment)

				r.Get("/support-tickets", s.ListTickets)

				r.Get("/venues/bookings", s.ListVenueBookings)
				r.Put("/venues/bookings/{id}/status", s.SetVenueBookingStatus)

				r.Get("/sales/report", s.SalesReport)
				r.Get("/sales/report/{format}", s.SalesReportFile)
			})
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(ww.Status()), time.Since(start))
	})
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("APP", fmt.Sprintf("Dev backend listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("APP", "Dev backend shutdown complete")
	return nil
}
