package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *atomic.Int32, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		n.Add(1)
		return value, nil
	}
}

func TestGetCachesUntilInvalidated(t *testing.T) {
	c := New(WithKeepUnusedFor(time.Minute))
	var calls atomic.Int32
	q := Query[string]{Key: "events", Tags: []string{"Events"}, Fetch: counter(&calls, "list")}

	for i := 0; i < 3; i++ {
		v, err := Get(context.Background(), c, q)
		require.NoError(t, err)
		assert.Equal(t, "list", v)
	}
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, c.Invalidate(context.Background(), "Events"))
	assert.False(t, c.Contains("events"), "unsubscribed entries are dropped")

	_, err := Get(context.Background(), c, q)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestConcurrentQueriesShareOneFetch(t *testing.T) {
	c := New()
	var calls atomic.Int32
	release := make(chan struct{})
	q := Query[int]{Key: "venues", Tags: []string{"Venues"}, Fetch: func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Get(context.Background(), c, q)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, []int{7, 7, 7, 7, 7}, results)
}

func TestInvalidateRefetchesSubscribed(t *testing.T) {
	c := New()
	var version atomic.Int32
	q := Query[int32]{Key: "payments", Tags: []string{"Payments"}, Fetch: func(context.Context) (int32, error) {
		return version.Add(1), nil
	}}

	w := Subscribe(c, q)
	defer w.Release()

	v, err := w.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	<-w.Updates()

	require.NoError(t, c.Invalidate(context.Background(), "Payments", "Unrelated"))

	select {
	case <-w.Updates():
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
	assert.True(t, c.Contains("payments"))
	v, err = w.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestInvalidateLeavesOtherTagsAlone(t *testing.T) {
	c := New()
	var calls atomic.Int32
	_, err := Get(context.Background(), c, Query[string]{Key: "users", Tags: []string{"Users"}, Fetch: counter(&calls, "u")})
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background(), "Events"))
	assert.True(t, c.Contains("users"))
}

func TestReleasedEntryIsEvictedAfterKeepUnusedFor(t *testing.T) {
	c := New(WithKeepUnusedFor(20 * time.Millisecond))
	var calls atomic.Int32
	w := Subscribe(c, Query[string]{Key: "bookings", Tags: []string{"Bookings"}, Fetch: counter(&calls, "b")})
	_, err := w.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Subscribers("bookings"))

	w.Release()
	w.Release()
	assert.Equal(t, 0, c.Subscribers("bookings"))
	assert.True(t, c.Contains("bookings"))

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestResubscribeCancelsEviction(t *testing.T) {
	c := New(WithKeepUnusedFor(30 * time.Millisecond))
	var calls atomic.Int32
	q := Query[string]{Key: "me", Tags: []string{"Users"}, Fetch: counter(&calls, "me")}

	first := Subscribe(c, q)
	_, err := first.Get(context.Background())
	require.NoError(t, err)
	first.Release()

	second := Subscribe(c, q)
	defer second.Release()
	time.Sleep(60 * time.Millisecond)

	assert.True(t, c.Contains("me"))
	_, err = second.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	fail := true
	q := Query[string]{Key: "report", Tags: []string{"Sales"}, Fetch: func(context.Context) (string, error) {
		if fail {
			return "", boom
		}
		return "ok", nil
	}}

	_, err := Get(context.Background(), c, q)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	fail = false
	v, err := Get(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRefetchBypassesCache(t *testing.T) {
	c := New()
	var calls atomic.Int32
	w := Subscribe(c, Query[string]{Key: "tickets", Tags: []string{"Support"}, Fetch: counter(&calls, "t")})
	defer w.Release()

	_, _ = w.Get(context.Background())
	_, err := w.Refetch(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestInFlightReadDoesNotOverwriteInvalidation(t *testing.T) {
	c := New()
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	w := Subscribe(c, Query[string]{Key: "payments", Tags: []string{"Payments"}, Fetch: func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "pending", nil
		}
		return "confirmed", nil
	}})
	defer w.Release()

	slow := make(chan string, 1)
	go func() {
		v, _ := w.Get(context.Background())
		slow <- v
	}()
	<-started

	require.NoError(t, c.Invalidate(context.Background(), "Payments"))
	close(release)
	assert.Equal(t, "pending", <-slow)

	v, err := w.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "confirmed", v)
	assert.EqualValues(t, 2, calls.Load())
}

func TestInFlightReadDoesNotOverwriteRefetch(t *testing.T) {
	c := New()
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	w := Subscribe(c, Query[int32]{Key: "bookings", Tags: []string{"Bookings"}, Fetch: func(context.Context) (int32, error) {
		n := calls.Add(1)
		if n == 1 {
			close(started)
			<-release
		}
		return n, nil
	}})
	defer w.Release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.Get(context.Background())
	}()
	<-started

	v, err := w.Refetch(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	close(release)
	<-done

	v, err = w.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestDroppedEntryIsNotRecreatedByInFlightRead(t *testing.T) {
	c := New(WithKeepUnusedFor(time.Minute))
	started := make(chan struct{})
	release := make(chan struct{})
	q := Query[string]{Key: "events", Tags: []string{"Events"}, Fetch: func(context.Context) (string, error) {
		close(started)
		<-release
		return "old", nil
	}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Get(context.Background(), c, q)
	}()
	<-started
	require.NoError(t, c.Invalidate(context.Background(), "Events"))
	close(release)
	<-done

	assert.False(t, c.Contains("events"))
}
