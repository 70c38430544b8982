package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketkenya/internal/logger"
	"ticketkenya/internal/models"
)

const DefaultPollInterval = 3 * time.Second

var (
	ErrPollTimeout   = errors.New("payment confirmation timed out")
	ErrPollCancelled = errors.New("payment polling cancelled")
)

type StatusChecker interface {
	Status(ctx context.Context, bookingID int64) (models.GatewayStatus, error)
}

// Tick is reported after every status request.
type Tick struct {
	Attempt int
	Status  models.GatewayStatus
	Err     error
}

// Poller asks the gateway for a booking's status every Interval until it
// reports Success or Failed. MaxAttempts and Timeout bound the loop; zero
// disables the respective bound.
type Poller struct {
	Checker     StatusChecker
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	OnTick      func(Tick)
	Logger      *logger.Logger
}

// Poll blocks until a terminal status, a bound is hit, or ctx is done.
// Transient request errors count as an attempt and polling continues.
func (p *Poller) Poll(ctx context.Context, bookingID int64) (models.PaymentStatus, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := p.Logger
	if log == nil {
		log = logger.Nop()
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.LogPayment("POLL_START", bookingID, fmt.Sprintf("every %s", interval))
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return models.PaymentPending, p.stopReason(ctx, bookingID, log)
		case <-ticker.C:
		}

		status, err := p.Checker.Status(ctx, bookingID)
		if ctx.Err() != nil {
			return models.PaymentPending, p.stopReason(ctx, bookingID, log)
		}
		if p.OnTick != nil {
			p.OnTick(Tick{Attempt: attempt, Status: status, Err: err})
		}

		switch {
		case err != nil:
			log.Warn("PAYMENT", fmt.Sprintf("Status check %d for booking %d failed: %v", attempt, bookingID, err))
		case status == models.GatewaySuccess:
			log.LogPayment("CONFIRMED", bookingID, fmt.Sprintf("after %d checks", attempt))
			return models.PaymentConfirmed, nil
		case status == models.GatewayFailed:
			log.LogPayment("FAILED", bookingID, fmt.Sprintf("after %d checks", attempt))
			return models.PaymentFailed, nil
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			log.LogPayment("TIMEOUT", bookingID, fmt.Sprintf("no terminal status after %d checks", attempt))
			return models.PaymentPending, ErrPollTimeout
		}
	}
}

func (p *Poller) stopReason(ctx context.Context, bookingID int64, log *logger.Logger) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.LogPayment("TIMEOUT", bookingID, "deadline reached")
		return ErrPollTimeout
	}
	log.LogPayment("CANCELLED", bookingID, "polling stopped")
	return ErrPollCancelled
}
