package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID     int64         `json:"bookingId" bun:"booking_id,pk,autoincrement"`
	UserID        int64         `json:"userId" bun:"user_id"`
	EventID       int64         `json:"eventId" bun:"event_id"`
	Quantity      int           `json:"quantity" bun:"quantity"`
	TotalAmount   float64       `json:"totalAmount" bun:"total_amount"`
	BookingStatus BookingStatus `json:"bookingStatus" bun:"booking_status"`
	User          *User         `json:"user,omitempty" bun:"-"`
	Event         *Event        `json:"event,omitempty" bun:"-"`
	Payment       *Payment      `json:"payment,omitempty" bun:"-"`
	CreatedAt     time.Time     `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time     `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// BookingRequest is what the event page submits to POST bookings.
type BookingRequest struct {
	UserID      int64   `json:"userId"`
	EventID     int64   `json:"eventId"`
	Quantity    int     `json:"quantity"`
	TotalAmount float64 `json:"totalAmount"`
}

type BookingUpdate struct {
	Quantity      *int           `json:"quantity,omitempty"`
	TotalAmount   *float64       `json:"totalAmount,omitempty"`
	BookingStatus *BookingStatus `json:"bookingStatus,omitempty"`
}

// BookingCreated covers the response shapes seen from POST bookings: the id
// may come back as bookingId, id, or inside a nested booking.
type BookingCreated struct {
	BookingID int64    `json:"bookingId"`
	ID        int64    `json:"id"`
	Booking   *Booking `json:"booking,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// Identifier returns 0 when the backend did not return one.
func (b *BookingCreated) Identifier() int64 {
	switch {
	case b == nil:
		return 0
	case b.BookingID != 0:
		return b.BookingID
	case b.ID != 0:
		return b.ID
	case b.Booking != nil:
		return b.Booking.BookingID
	}
	return 0
}

// UserBooking is a row of GET bookings/me.
type UserBooking struct {
	BookingID     int64   `json:"bookingId"`
	Quantity      int     `json:"quantity"`
	TotalAmount   float64 `json:"totalAmount"`
	BookingStatus string  `json:"bookingStatus"`
	CreatedAt     string  `json:"createdAt"`
	EventTitle    string  `json:"eventTitle"`
	EventDate     string  `json:"eventDate"`
	PaymentMethod string  `json:"paymentMethod"`
	PaymentStatus string  `json:"paymentStatus"`
}
