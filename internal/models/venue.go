package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	VenueID   int64     `json:"venueId" bun:"venue_id,pk,autoincrement"`
	Name      string    `json:"name" bun:"name,notnull"`
	Address   string    `json:"address" bun:"address,notnull"`
	Capacity  int       `json:"capacity" bun:"capacity"`
	CreatedAt time.Time `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type VenueInput struct {
	Name     *string `json:"name,omitempty"`
	Address  *string `json:"address,omitempty"`
	Capacity *int    `json:"capacity,omitempty"`
}

type VenueBookingStatus string

const (
	VenueBookingPending   VenueBookingStatus = "Pending"
	VenueBookingConfirmed VenueBookingStatus = "Confirmed"
	VenueBookingRejected  VenueBookingStatus = "Rejected"
)

type VenueBooking struct {
	bun.BaseModel `bun:"table:venue_bookings"`

	VenueBookingID int64              `json:"venueBookingId" bun:"venue_booking_id,pk,autoincrement"`
	UserID         int64              `json:"userId" bun:"user_id"`
	VenueID        int64              `json:"venueId" bun:"venue_id"`
	EventTitle     string             `json:"eventTitle" bun:"event_title"`
	Date           string             `json:"date" bun:"date"`
	StartTime      string             `json:"startTime" bun:"start_time"`
	EndTime        string             `json:"endTime" bun:"end_time"`
	Status         VenueBookingStatus `json:"status" bun:"status"`
	Venue          *Venue             `json:"venue,omitempty" bun:"-"`
	CreatedAt      time.Time          `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time          `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type VenueBookingRequest struct {
	VenueID    int64  `json:"venueId"`
	EventTitle string `json:"eventTitle"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

type VenueAvailability struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}
