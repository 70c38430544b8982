package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"ticketkenya/internal/models"
)

// credential keeps password hashes out of the user rows the API returns.
type credential struct {
	bun.BaseModel `bun:"table:credentials"`

	UserID       int64  `bun:"user_id,pk"`
	PasswordHash string `bun:"password_hash,notnull"`
}

// Open connects to Postgres for postgres:// URLs and to SQLite otherwise.
func Open(dsn string) (*bun.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := sqldb.Ping(); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection so an in-memory database is shared by every query
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate creates every table that does not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.User)(nil),
		(*credential)(nil),
		(*models.Venue)(nil),
		(*models.Event)(nil),
		(*models.Booking)(nil),
		(*models.Payment)(nil),
		(*models.SupportTicket)(nil),
		(*models.VenueBooking)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// DB is the query layer of the dev backend.
type DB struct {
	Bun *bun.DB
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ---------- users ----------

func (d *DB) CreateUser(ctx context.Context, u *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(u).Returning("*").Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&credential{UserID: u.UserID, PasswordHash: string(hash)}).Exec(ctx)
		return err
	})
}

// Authenticate returns the user for email when password matches.
func (d *DB) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := d.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var c credential
	if err := d.Bun.NewSelect().Model(&c).Where("user_id = ?", u.UserID).Scan(ctx); err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (d *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("LOWER(email) = LOWER(?)", email).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := d.Bun.NewSelect().Model(&u).Where("user_id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) Users(ctx context.Context) ([]models.User, error) {
	var list []models.User
	err := d.Bun.NewSelect().Model(&list).Order("user_id ASC").Scan(ctx)
	return list, err
}

func (d *DB) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := d.Bun.NewUpdate().Model(u).
		Column("firstname", "lastname", "email", "contact_phone", "address", "profile_url", "role", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*credential)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		return deleteByID(ctx, tx, (*models.User)(nil), "user_id", id)
	})
}

// SeedAdmin creates the admin account once.
func (d *DB) SeedAdmin(ctx context.Context, email, password string) (*models.User, bool, error) {
	if u, err := d.UserByEmail(ctx, email); err == nil {
		return u, false, nil
	} else if !isNoRows(err) {
		return nil, false, err
	}
	u := &models.User{Firstname: "Admin", Lastname: "TicketKenya", Email: email, Role: models.RoleAdmin}
	if err := d.CreateUser(ctx, u, password); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// ---------- venues ----------

func (d *DB) Venues(ctx context.Context) ([]models.Venue, error) {
	var list []models.Venue
	err := d.Bun.NewSelect().Model(&list).Order("venue_id ASC").Scan(ctx)
	return list, err
}

func (d *DB) VenueByID(ctx context.Context, id int64) (*models.Venue, error) {
	var v models.Venue
	if err := d.Bun.NewSelect().Model(&v).Where("venue_id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *DB) CreateVenue(ctx context.Context, v *models.Venue) error {
	_, err := d.Bun.NewInsert().Model(v).Returning("*").Exec(ctx)
	return err
}

func (d *DB) UpdateVenue(ctx context.Context, v *models.Venue) error {
	_, err := d.Bun.NewUpdate().Model(v).Column("name", "address", "capacity", "updated_at").WherePK().Exec(ctx)
	return err
}

func (d *DB) DeleteVenue(ctx context.Context, id int64) error {
	return deleteByID(ctx, d.Bun, (*models.Venue)(nil), "venue_id", id)
}

// ---------- events ----------

// EventFilter mirrors the query string of GET events.
type EventFilter struct {
	Category string
	Date     string
	Address  string
	Upcoming string
}

func (d *DB) Events(ctx context.Context, f EventFilter) ([]models.Event, error) {
	var list []models.Event
	q := d.Bun.NewSelect().Model(&list).Order("date ASC", "event_id ASC")
	if f.Category != "" {
		q = q.Where("LOWER(category) = LOWER(?)", f.Category)
	}
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	if f.Upcoming != "" {
		q = q.Where("date >= ?", f.Upcoming)
	}
	if f.Address != "" {
		like := "%" + strings.ToLower(f.Address) + "%"
		q = q.Where("venue_id IN (?)",
			d.Bun.NewSelect().Model((*models.Venue)(nil)).Column("venue_id").
				Where("LOWER(address) LIKE ? OR LOWER(name) LIKE ?", like, like))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return list, d.attachVenues(ctx, list)
}

func (d *DB) attachVenues(ctx context.Context, events []models.Event) error {
	venues, err := d.Venues(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]models.Venue, len(venues))
	for _, v := range venues {
		byID[v.VenueID] = v
	}
	for i := range events {
		if v, ok := byID[events[i].VenueID]; ok {
			events[i].Venue = &models.EventVenue{Name: v.Name, Address: v.Address}
		}
	}
	return nil
}

func (d *DB) EventBy(ctx context.Context, column string, value any) (*models.Event, error) {
	var e models.Event
	if err := d.Bun.NewSelect().Model(&e).Where("? = ?", bun.Ident(column), value).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	list := []models.Event{e}
	if err := d.attachVenues(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (d *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := d.Bun.NewInsert().Model(e).Returning("*").Exec(ctx)
	return err
}

func (d *DB) UpdateEvent(ctx context.Context, e *models.Event) error {
	_, err := d.Bun.NewUpdate().Model(e).
		Column("slug", "title", "description", "category", "venue_id", "date", "time", "ticket_price", "tickets_total", "image", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) DeleteEvent(ctx context.Context, id int64) error {
	return deleteByID(ctx, d.Bun, (*models.Event)(nil), "event_id", id)
}

// ---------- bookings ----------

var ErrNotEnoughTickets = errors.New("not enough tickets available")

// CreateBooking reserves the tickets and inserts a pending booking in one
// transaction.
func (d *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*models.Event)(nil)).
			Set("tickets_sold = tickets_sold + ?", b.Quantity).
			Where("event_id = ?", b.EventID).
			Where("tickets_sold + ? <= tickets_total", b.Quantity).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotEnoughTickets
		}
		_, err = tx.NewInsert().Model(b).Returning("*").Exec(ctx)
		return err
	})
}

func (d *DB) Bookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	var list []models.Booking
	q := d.Bun.NewSelect().Model(&list).Order("booking_id ASC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Scan(ctx)
	return list, err
}

func (d *DB) BookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	if err := d.Bun.NewSelect().Model(&b).Where("booking_id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DB) UpdateBooking(ctx context.Context, b *models.Booking) error {
	_, err := d.Bun.NewUpdate().Model(b).Column("quantity", "total_amount", "booking_status", "updated_at").WherePK().Exec(ctx)
	return err
}

func (d *DB) DeleteBooking(ctx context.Context, id int64) error {
	return deleteByID(ctx, d.Bun, (*models.Booking)(nil), "booking_id", id)
}

// ---------- payments ----------

func (d *DB) Payments(ctx context.Context) ([]models.Payment, error) {
	var list []models.Payment
	err := d.Bun.NewSelect().Model(&list).Order("payment_id ASC").Scan(ctx)
	return list, err
}

func (d *DB) PaymentsForBookings(ctx context.Context, bookingIDs []int64) ([]models.Payment, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	var list []models.Payment
	err := d.Bun.NewSelect().Model(&list).Where("booking_id IN (?)", bun.In(bookingIDs)).Order("payment_id ASC").Scan(ctx)
	return list, err
}

func (d *DB) PaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	if err := d.Bun.NewSelect().Model(&p).Where("payment_id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestPayment returns the newest payment of a booking.
func (d *DB) LatestPayment(ctx context.Context, bookingID int64) (*models.Payment, error) {
	var p models.Payment
	err := d.Bun.NewSelect().Model(&p).Where("booking_id = ?", bookingID).Order("payment_id DESC").Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := d.Bun.NewInsert().Model(p).Returning("*").Exec(ctx)
	return err
}

func (d *DB) UpdatePayment(ctx context.Context, p *models.Payment) error {
	_, err := d.Bun.NewUpdate().Model(p).
		Column("amount", "payment_method", "payment_status", "transaction_id", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// SettlePayment records the gateway outcome on the payment and, when paid,
// confirms the booking.
func (d *DB) SettlePayment(ctx context.Context, p *models.Payment, status models.PaymentStatus) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		p.PaymentStatus = status
		_, err := tx.NewUpdate().Model(p).Column("payment_status", "updated_at").WherePK().Exec(ctx)
		if err != nil || status != models.PaymentConfirmed {
			return err
		}
		_, err = tx.NewUpdate().Model((*models.Booking)(nil)).
			Set("booking_status = ?", models.BookingConfirmed).
			Where("booking_id = ?", p.BookingID).
			Exec(ctx)
		return err
	})
}

func (d *DB) DeletePayment(ctx context.Context, id int64) error {
	return deleteByID(ctx, d.Bun, (*models.Payment)(nil), "payment_id", id)
}

// ---------- support tickets ----------

func (d *DB) Tickets(ctx context.Context, userID int64) ([]models.SupportTicket, error) {
	var list []models.SupportTicket
	q := d.Bun.NewSelect().Model(&list).Order("ticket_id ASC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Scan(ctx)
	return list, err
}

func (d *DB) TicketByID(ctx context.Context, id int64) (*models.SupportTicket, error) {
	var t models.SupportTicket
	if err := d.Bun.NewSelect().Model(&t).Where("ticket_id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) CreateTicket(ctx context.Context, t *models.SupportTicket) error {
	_, err := d.Bun.NewInsert().Model(t).Returning("*").Exec(ctx)
	return err
}

func (d *DB) UpdateTicket(ctx context.Context, t *models.SupportTicket) error {
	_, err := d.Bun.NewUpdate().Model(t).Column("subject", "description", "status", "admin_response", "updated_at").WherePK().Exec(ctx)
	return err
}

func (d *DB) DeleteTicket(ctx context.Context, id int64) error {
	return deleteByID(ctx, d.Bun, (*models.SupportTicket)(nil), "ticket_id", id)
}

// ---------- venue bookings ----------

func (d *DB) VenueBookings(ctx context.Context, userID int64) ([]models.VenueBooking, error) {
	var list []models.VenueBooking
	q := d.Bun.NewSelect().Model(&list).Order("venue_booking_id ASC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Scan(ctx)
	return list, err
}

func (d *DB) VenueBookingByID(ctx context.Context, id int64) (*models.VenueBooking, error) {
	var b models.VenueBooking
	if err := d.Bun.NewSelect().Model(&b).Where("venue_booking_id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

// SlotTaken reports whether a non-rejected booking of the venue overlaps
// [start, end) on date. Times are HH:MM so they compare as strings.
func (d *DB) SlotTaken(ctx context.Context, venueID int64, date, start, end string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.VenueBooking)(nil)).
		Where("venue_id = ?", venueID).
		Where("date = ?", date).
		Where("status != ?", models.VenueBookingRejected).
		Where("start_time < ?", end).
		Where("end_time > ?", start).
		Exists(ctx)
}

func (d *DB) CreateVenueBooking(ctx context.Context, b *models.VenueBooking) error {
	_, err := d.Bun.NewInsert().Model(b).Returning("*").Exec(ctx)
	return err
}

func (d *DB) SetVenueBookingStatus(ctx context.Context, id int64, status models.VenueBookingStatus) error {
	res, err := d.Bun.NewUpdate().Model((*models.VenueBooking)(nil)).
		Set("status = ?", status).
		Where("venue_booking_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (d *DB) DeleteVenueBooking(ctx context.Context, id int64) error {
	return deleteByID(ctx, d.Bun, (*models.VenueBooking)(nil), "venue_booking_id", id)
}

func deleteByID(ctx context.Context, db bun.IDB, model any, column string, id int64) error {
	res, err := db.NewDelete().Model(model).Where("? = ?", bun.Ident(column), id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
