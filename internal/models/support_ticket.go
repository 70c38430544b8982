package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketOpen     TicketStatus = "Open"
	TicketResolved TicketStatus = "Resolved"
)

type SupportTicket struct {
	bun.BaseModel `bun:"table:support_tickets"`

	TicketID      int64        `json:"ticketId" bun:"ticket_id,pk,autoincrement"`
	UserID        int64        `json:"userId" bun:"user_id"`
	Subject       string       `json:"subject" bun:"subject,notnull"`
	Description   string       `json:"description" bun:"description"`
	Status        TicketStatus `json:"status" bun:"status"`
	AdminResponse string       `json:"adminResponse,omitempty" bun:"admin_response"`
	User          *User        `json:"user,omitempty" bun:"-"`
	CreatedAt     time.Time    `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time    `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type SupportTicketInput struct {
	Subject       *string       `json:"subject,omitempty"`
	Description   *string       `json:"description,omitempty"`
	Status        *TicketStatus `json:"status,omitempty"`
	AdminResponse *string       `json:"adminResponse,omitempty"`
}
