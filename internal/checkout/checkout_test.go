package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/models"
)

// ---------- phone ----------

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"0712345678":      "254712345678",
		"0112345678":      "254112345678",
		"+254712345678":   "254712345678",
		"254 712-345-678": "254712345678",
		"712345678":       "254712345678",
	}
	for in, want := range valid {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "0812345678", "25471234567", "07123abc78", "+1 555 1234567", "254812345678"} {
		_, err := NormalizePhone(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}

// ---------- booking form ----------

func event(price float64, total, sold int) models.Event {
	return models.Event{EventID: 11, Title: "Blankets & Wine", TicketPrice: price, TicketsTotal: total, TicketsSold: sold}
}

func TestBookingFormClampsQuantity(t *testing.T) {
	f := NewBookingForm(event(1500, 10, 7))
	assert.Equal(t, 1, f.Quantity())
	assert.Equal(t, 3, f.SetQuantity(9))
	assert.Equal(t, 1, f.SetQuantity(-2))
	assert.True(t, f.Bookable())
}

func TestBookingFormSoldOut(t *testing.T) {
	for _, e := range []models.Event{event(100, 5, 5), event(100, 5, 6), event(100, 0, 0)} {
		f := NewBookingForm(e)
		assert.False(t, f.Bookable())
		assert.Equal(t, 0, f.Quantity())
		assert.Equal(t, 0, f.SetQuantity(2))
	}
}

func TestBookingFormTotalIsPriceTimesQuantity(t *testing.T) {
	for q := 1; q <= 4; q++ {
		f := NewBookingForm(event(999.99, 10, 0))
		f.SetQuantity(q)
		req := f.Request(3)
		assert.InDelta(t, 999.99*float64(q), req.TotalAmount, 0.001)
		assert.Equal(t, q, req.Quantity)
		assert.Equal(t, int64(3), req.UserID)
		assert.Equal(t, int64(11), req.EventID)
	}
	f := NewBookingForm(event(0.1, 10, 0))
	f.SetQuantity(3)
	assert.Equal(t, "0.3", f.Total().String())
}

// ---------- booker ----------

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) Create(ctx context.Context, req models.BookingRequest) (*models.BookingCreated, error) {
	args := m.Called(ctx, req)
	created, _ := args.Get(0).(*models.BookingCreated)
	return created, args.Error(1)
}

type staticAuth models.AuthState

func (a staticAuth) Auth() models.AuthState { return models.AuthState(a) }

var loggedIn = staticAuth{User: &models.User{UserID: 3}, Token: "t", IsAuthenticated: true, UserRole: models.RoleUser}

func TestSubmitSendsTotalAndReturnsID(t *testing.T) {
	creator := new(mockCreator)
	f := NewBookingForm(event(250, 10, 0))
	f.SetQuantity(4)

	creator.On("Create", mock.Anything, models.BookingRequest{UserID: 3, EventID: 11, Quantity: 4, TotalAmount: 1000}).
		Return(&models.BookingCreated{BookingID: 77}, nil).Once()

	id, err := NewBooker(creator, loggedIn, nil).Submit(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	creator.AssertExpectations(t)
}

func TestSubmitFallsBackToID(t *testing.T) {
	creator := new(mockCreator)
	creator.On("Create", mock.Anything, mock.Anything).Return(&models.BookingCreated{ID: 8}, nil)

	id, err := NewBooker(creator, loggedIn, nil).Submit(context.Background(), NewBookingForm(event(1, 2, 0)))
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
}

func TestSubmitWithoutIDIsAnError(t *testing.T) {
	creator := new(mockCreator)
	creator.On("Create", mock.Anything, mock.Anything).Return(&models.BookingCreated{Message: "created"}, nil)

	id, err := NewBooker(creator, loggedIn, nil).Submit(context.Background(), NewBookingForm(event(1, 2, 0)))
	assert.ErrorIs(t, err, ErrMissingBookingID)
	assert.Zero(t, id)
}

func TestSubmitPreconditions(t *testing.T) {
	creator := new(mockCreator)

	_, err := NewBooker(creator, staticAuth{}, nil).Submit(context.Background(), NewBookingForm(event(1, 2, 0)))
	assert.ErrorIs(t, err, ErrLoginRequired)

	_, err = NewBooker(creator, loggedIn, nil).Submit(context.Background(), NewBookingForm(event(1, 2, 2)))
	assert.ErrorIs(t, err, ErrSoldOut)

	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitWrapsBackendError(t *testing.T) {
	creator := new(mockCreator)
	boom := errors.New("boom")
	creator.On("Create", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := NewBooker(creator, loggedIn, nil).Submit(context.Background(), NewBookingForm(event(1, 2, 0)))
	assert.ErrorIs(t, err, boom)
}

type blockingCreator struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCreator) Create(ctx context.Context, req models.BookingRequest) (*models.BookingCreated, error) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release
	return &models.BookingCreated{BookingID: 1}, nil
}

func TestSubmitRejectsConcurrentDuplicate(t *testing.T) {
	creator := &blockingCreator{entered: make(chan struct{}, 1), release: make(chan struct{})}
	booker := NewBooker(creator, loggedIn, nil)
	form := NewBookingForm(event(1, 5, 0))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := booker.Submit(context.Background(), form)
		assert.NoError(t, err)
	}()
	<-creator.entered

	_, err := booker.Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(creator.release)
	wg.Wait()
	assert.EqualValues(t, 1, creator.calls.Load())

	creator.release = make(chan struct{})
	close(creator.release)
	_, err = booker.Submit(context.Background(), form)
	assert.NoError(t, err)
}

// ---------- poller ----------

type scriptedChecker struct {
	mu       sync.Mutex
	statuses []models.GatewayStatus
	errs     []error
	calls    int
}

func (s *scriptedChecker) Status(ctx context.Context, bookingID int64) (models.GatewayStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i >= len(s.statuses) {
		return models.GatewayPending, err
	}
	return s.statuses[i], err
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPollStopsOnSuccess(t *testing.T) {
	checker := &scriptedChecker{statuses: []models.GatewayStatus{models.GatewayPending, models.GatewayPending, models.GatewaySuccess, models.GatewayFailed}}
	p := &Poller{Checker: checker, Interval: time.Millisecond}

	status, err := p.Poll(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, status)
	assert.Equal(t, 3, checker.Calls())
}

func TestPollStopsOnFailed(t *testing.T) {
	checker := &scriptedChecker{statuses: []models.GatewayStatus{models.GatewayFailed}}
	var ticks []Tick
	p := &Poller{Checker: checker, Interval: time.Millisecond, OnTick: func(tk Tick) { ticks = append(ticks, tk) }}

	status, err := p.Poll(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, status)
	require.Len(t, ticks, 1)
	assert.Equal(t, 1, ticks[0].Attempt)
}

func TestPollSurvivesTransientErrors(t *testing.T) {
	checker := &scriptedChecker{
		statuses: []models.GatewayStatus{"", models.GatewaySuccess},
		errs:     []error{errors.New("502")},
	}
	status, err := (&Poller{Checker: checker, Interval: time.Millisecond}).Poll(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, status)
}

func TestPollMaxAttempts(t *testing.T) {
	checker := &scriptedChecker{}
	p := &Poller{Checker: checker, Interval: time.Millisecond, MaxAttempts: 4}

	status, err := p.Poll(context.Background(), 5)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, models.PaymentPending, status)
	assert.Equal(t, 4, checker.Calls())
}

func TestPollTimeout(t *testing.T) {
	p := &Poller{Checker: &scriptedChecker{}, Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}
	_, err := p.Poll(context.Background(), 5)
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestPollStopsWhenCancelled(t *testing.T) {
	checker := &scriptedChecker{}
	p := &Poller{Checker: checker, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(ctx, 5)
		done <- err
	}()
	require.Eventually(t, func() bool { return checker.Calls() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPollCancelled)
	case <-time.After(time.Second):
		t.Fatal("poll did not return after cancel")
	}
	calls := checker.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, checker.Calls(), "no requests after cancel")
}
