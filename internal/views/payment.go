package views

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticketkenya/internal/cache"
	"ticketkenya/internal/checkout"
	"ticketkenya/internal/models"
)

var ErrPaymentInProgress = errors.New("a payment for this booking is already in progress")

type PaymentState string

const (
	PaymentIdle       PaymentState = "idle"
	PaymentInitiating PaymentState = "initiating"
	PaymentPolling    PaymentState = "polling"
	PaymentConfirmed  PaymentState = "confirmed"
	PaymentFailed     PaymentState = "failed"
	PaymentTimedOut   PaymentState = "timed_out"
	PaymentCancelled  PaymentState = "cancelled"
)

func (s PaymentState) busy() bool {
	return s == PaymentInitiating || s == PaymentPolling
}

// PollSettings bound the status loop of a payment page.
type PollSettings struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// PaymentPage initiates an STK push for one booking and polls the gateway
// in the background until a terminal status. The polling goroutine belongs
// to the page: Cancel stops it, Unmount stops it and waits for it.
type PaymentPage struct {
	deps      Deps
	bookingID int64
	watch     *cache.Watch[*models.Booking]

	// OnTick, when set, sees every status response.
	OnTick func(checkout.Tick)

	mu        sync.Mutex
	state     PaymentState
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
	unmounted bool
}

func NewPaymentPage(deps Deps, bookingID int64) *PaymentPage {
	return &PaymentPage{
		deps:      deps,
		bookingID: bookingID,
		watch:     cache.Subscribe(deps.Resources.Cache(), deps.Resources.Bookings.GetQuery(bookingID)),
		state:     PaymentIdle,
	}
}

func (p *PaymentPage) BookingID() int64 { return p.bookingID }

// Mount loads the booking; the amount charged is its totalAmount.
func (p *PaymentPage) Mount(ctx context.Context) (*models.Booking, error) {
	b, err := p.watch.Get(ctx)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("booking %d not found", p.bookingID)
	}
	return b, nil
}

// Pay sends the STK push and starts polling. It returns once the push was
// accepted; use Wait for the outcome.
func (p *PaymentPage) Pay(ctx context.Context, phone string) error {
	p.mu.Lock()
	switch {
	case p.unmounted:
		p.mu.Unlock()
		return errors.New("payment page is closed")
	case p.state.busy():
		p.mu.Unlock()
		return ErrPaymentInProgress
	}
	p.state, p.err = PaymentInitiating, nil
	p.mu.Unlock()

	msisdn, err := checkout.NormalizePhone(phone)
	if err != nil {
		p.setState(PaymentIdle, nil)
		return err
	}
	booking, err := p.Mount(ctx)
	if err != nil {
		p.setState(PaymentIdle, nil)
		return err
	}

	log := p.deps.logger()
	resp, err := p.deps.Resources.Payments.StkPush(ctx, models.StkPushRequest{
		BookingID: p.bookingID,
		Amount:    booking.TotalAmount,
		Phone:     msisdn,
	})
	if err != nil {
		log.LogPayment("STK_PUSH_FAILED", p.bookingID, err.Error())
		p.deps.notifier().Error("Payment failed", Describe(err))
		p.setState(PaymentIdle, nil)
		return fmt.Errorf("stk push: %w", err)
	}
	log.LogPayment("STK_PUSH", p.bookingID, fmt.Sprintf("checkout request %s", resp.CheckoutRequestID))
	msg := resp.CustomerMessage
	if msg == "" {
		msg = "Check your phone and enter your M-Pesa PIN."
	}
	p.deps.notifier().Info("Payment initiated", msg)

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	if p.unmounted {
		p.mu.Unlock()
		cancel()
		p.setState(PaymentCancelled, checkout.ErrPollCancelled)
		return checkout.ErrPollCancelled
	}
	p.state, p.cancel, p.done = PaymentPolling, cancel, done
	p.mu.Unlock()

	go p.poll(pollCtx, cancel, done)
	return nil
}

func (p *PaymentPage) poll(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	poller := checkout.Poller{
		Checker:     p.deps.Resources.Payments,
		Interval:    p.deps.Poll.Interval,
		MaxAttempts: p.deps.Poll.MaxAttempts,
		Timeout:     p.deps.Poll.Timeout,
		OnTick:      p.OnTick,
		Logger:      p.deps.logger(),
	}
	status, err := poller.Poll(ctx, p.bookingID)

	notify := p.deps.notifier()
	switch {
	case errors.Is(err, checkout.ErrPollTimeout):
		notify.Info("Payment pending", "No confirmation yet. Check My Payments later.")
		p.setState(PaymentTimedOut, err)
	case err != nil:
		p.setState(PaymentCancelled, err)
	case status == models.PaymentConfirmed:
		settle, stop := context.WithTimeout(ctx, 30*time.Second)
		p.deps.Resources.Payments.Settled(settle)
		stop()
		notify.Success("Payment successful!", fmt.Sprintf("Booking #%d is paid.", p.bookingID))
		p.setState(PaymentConfirmed, nil)
	default:
		notify.Error("Payment failed", "The M-Pesa payment was not completed.")
		p.setState(PaymentFailed, nil)
	}
}

func (p *PaymentPage) setState(s PaymentState, err error) {
	p.mu.Lock()
	p.state, p.err = s, err
	p.mu.Unlock()
}

func (p *PaymentPage) State() PaymentState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Wait blocks until the current poll finishes and returns its outcome.
func (p *PaymentPage) Wait(ctx context.Context) (PaymentState, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return p.State(), ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.err
}

// Cancel stops polling. The booking stays unpaid until the gateway says
// otherwise.
func (p *PaymentPage) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *PaymentPage) Unmount() {
	p.mu.Lock()
	p.unmounted = true
	done := p.done
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	if done != nil {
		<-done
	}
	p.watch.Release()
}
