package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentConfirmed PaymentStatus = "Confirmed"
	PaymentFailed    PaymentStatus = "Failed"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID     int64         `json:"paymentId" bun:"payment_id,pk,autoincrement"`
	BookingID     int64         `json:"bookingId" bun:"booking_id"`
	Amount        float64       `json:"amount" bun:"amount"`
	PaymentMethod string        `json:"paymentMethod" bun:"payment_method"`
	PaymentStatus PaymentStatus `json:"paymentStatus" bun:"payment_status"`
	TransactionID string        `json:"transactionId,omitempty" bun:"transaction_id"`
	Booking       *Booking      `json:"booking,omitempty" bun:"-"`
	CreatedAt     time.Time     `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time     `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type PaymentInput struct {
	BookingID     *int64         `json:"bookingId,omitempty"`
	Amount        *float64       `json:"amount,omitempty"`
	PaymentMethod *string        `json:"paymentMethod,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
	TransactionID *string        `json:"transactionId,omitempty"`
}

// GatewayStatus is what mpesa/status reports for a booking.
type GatewayStatus string

const (
	GatewayPending GatewayStatus = "Pending"
	GatewaySuccess GatewayStatus = "Success"
	GatewayFailed  GatewayStatus = "Failed"
)

func (s GatewayStatus) Terminal() bool {
	return s == GatewaySuccess || s == GatewayFailed
}

type StkPushRequest struct {
	BookingID int64   `json:"bookingId"`
	Amount    float64 `json:"amount"`
	Phone     string  `json:"phone"`
}

// StkPushResponse keeps the gateway's own field names.
type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID,omitempty"`
	CheckoutRequestID   string `json:"CheckoutRequestID,omitempty"`
	ResponseCode        string `json:"ResponseCode,omitempty"`
	ResponseDescription string `json:"ResponseDescription,omitempty"`
	CustomerMessage     string `json:"CustomerMessage,omitempty"`
}

type PaymentStatusResponse struct {
	Status GatewayStatus `json:"status"`
}
