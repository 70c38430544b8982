package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventVenue is the slice of a venue the backend embeds in event payloads.
type EventVenue struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	EventID      int64       `json:"eventId" bun:"event_id,pk,autoincrement"`
	Slug         string      `json:"slug" bun:"slug,unique"`
	Title        string      `json:"title" bun:"title,notnull"`
	Description  string      `json:"description,omitempty" bun:"description"`
	Category     string      `json:"category,omitempty" bun:"category"`
	VenueID      int64       `json:"venueId" bun:"venue_id"`
	Venue        *EventVenue `json:"venue,omitempty" bun:"-"`
	Date         string      `json:"date" bun:"date"`
	Time         string      `json:"time" bun:"time"`
	TicketPrice  float64     `json:"ticketPrice" bun:"ticket_price"`
	TicketsTotal int         `json:"ticketsTotal" bun:"tickets_total"`
	TicketsSold  int         `json:"ticketsSold" bun:"tickets_sold"`
	Image        string      `json:"image,omitempty" bun:"image"`
	CreatedAt    time.Time   `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time   `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// TicketsAvailable never goes below zero even if the backend oversold.
func (e *Event) TicketsAvailable() int {
	if e == nil || e.TicketsSold >= e.TicketsTotal {
		return 0
	}
	return e.TicketsTotal - e.TicketsSold
}

func (e *Event) SoldOut() bool {
	return e == nil || e.TicketsSold >= e.TicketsTotal
}

// Location is the venue address when the backend embedded one.
func (e *Event) Location() string {
	if e == nil || e.Venue == nil {
		return ""
	}
	if e.Venue.Address != "" {
		return e.Venue.Address
	}
	return e.Venue.Name
}

// EventInput is used for both POST events and PUT events/:id.
type EventInput struct {
	Title        *string  `json:"title,omitempty"`
	Slug         *string  `json:"slug,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Category     *string  `json:"category,omitempty"`
	VenueID      *int64   `json:"venueId,omitempty"`
	Date         *string  `json:"date,omitempty"`
	Time         *string  `json:"time,omitempty"`
	TicketPrice  *float64 `json:"ticketPrice,omitempty"`
	TicketsTotal *int     `json:"ticketsTotal,omitempty"`
	Image        *string  `json:"image,omitempty"`
}

// EventFilters is the committed search triple plus the upcoming toggle used
// by the home page.
type EventFilters struct {
	Category     string `json:"category"`
	Date         string `json:"date"`
	Location     string `json:"location"`
	UpcomingOnly bool   `json:"-"`
}

func (f EventFilters) Empty() bool {
	return f.Category == "" && f.Date == "" && f.Location == "" && !f.UpcomingOnly
}
