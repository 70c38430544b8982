package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/api"
	"ticketkenya/internal/cache"
	"ticketkenya/internal/models"
)

type hits struct {
	mu     sync.Mutex
	counts map[string]int
}

func (h *hits) add(k string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[k]++
}

func (h *hits) get(k string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[k]
}

func setup(t *testing.T) (*Resources, *hits) {
	h := &hits{counts: map[string]int{}}
	var sold int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.add(r.Method + " " + r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/events":
			_ = json.NewEncoder(w).Encode([]models.Event{{EventID: 1, TicketsTotal: 10, TicketsSold: sold}})
		case r.Method == http.MethodPost && r.URL.Path == "/bookings":
			var req models.BookingRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			sold += req.Quantity
			_ = json.NewEncoder(w).Encode(map[string]int64{"bookingId": 99})
		case r.Method == http.MethodGet && r.URL.Path == "/venues":
			_ = json.NewEncoder(w).Encode([]models.Venue{{VenueID: 7}})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return New(api.New(srv.URL), cache.New(), nil), h
}

func TestBookingCreateRefreshesSubscribedEvents(t *testing.T) {
	r, h := setup(t)
	ctx := context.Background()

	w := cache.Subscribe(r.Cache(), r.Events.ListQuery(models.EventFilters{}))
	defer w.Release()
	events, err := w.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, events[0].TicketsSold)

	created, err := r.Bookings.Create(ctx, models.BookingRequest{EventID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(99), created.Identifier())

	assert.Equal(t, 2, h.get("GET /events"), "subscribed list refetched once")
	events, err = w.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, events[0].TicketsSold)
	assert.Equal(t, 2, h.get("GET /events"), "served from cache after refetch")
}

func TestReadsAreCachedPerKey(t *testing.T) {
	r, h := setup(t)
	ctx := context.Background()

	_, err := r.Events.List(ctx, models.EventFilters{Category: "Music"})
	require.NoError(t, err)
	_, err = r.Events.List(ctx, models.EventFilters{Category: "Music"})
	require.NoError(t, err)
	_, err = r.Events.List(ctx, models.EventFilters{Category: "Sports"})
	require.NoError(t, err)

	assert.Equal(t, 2, h.get("GET /events"))
}

func TestDeleteInvalidatesVenues(t *testing.T) {
	r, h := setup(t)
	ctx := context.Background()

	_, err := r.Venues.List(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Venues.Delete(ctx, 7))
	assert.Equal(t, 1, h.get("DELETE /venues/7"))
	assert.False(t, r.Cache().Contains("venues"))
}

func TestFailedMutationDoesNotInvalidate(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	_, err := r.Venues.List(ctx)
	require.NoError(t, err)
	_, err = r.Venues.Update(ctx, 7, models.VenueInput{})
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.True(t, r.Cache().Contains("venues"))
}
