package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/models"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

func stubServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		calls = append(calls, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBearerHeaderOnlyWithToken(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, []models.Venue{})
	})

	token := ""
	c := New(srv.URL+"/api/", WithTokenSource(TokenFunc(func() string { return token })))

	_, err := c.Venues.List(context.Background())
	require.NoError(t, err)
	token = "abc"
	_, err = c.Venues.List(context.Background())
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, "", (*calls)[0].Auth)
	assert.Equal(t, "Bearer abc", (*calls)[1].Auth)
	assert.Equal(t, "/api/venues", (*calls)[1].Path)
}

func TestEventListQueryOmitsEmptyValues(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Event{{EventID: 1, Title: "Sauti Sol"}})
	})
	c := New(srv.URL)

	events, err := c.Events.List(context.Background(), models.EventFilters{Category: "Music", Location: " Nairobi "})
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "address=Nairobi&category=Music", (*calls)[0].Query)

	_, err = c.Events.List(context.Background(), models.EventFilters{UpcomingOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "upcomingOnly=true", (*calls)[1].Query)
}

func TestNon2xxBecomesTypedError(t *testing.T) {
	cases := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadGateway, ErrServer},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv, _ := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, map[string]string{"message": "nope"})
			})
			_, err := New(srv.URL).Users.Me(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel))
			assert.Equal(t, tc.status, StatusCode(err))
			assert.Equal(t, "nope", ServerMessage(err))
		})
	}
}

func TestErrorFallsBackToErrorField(t *testing.T) {
	srv, _ := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity too large"})
	})
	_, err := New(srv.URL).Bookings.Create(context.Background(), models.BookingRequest{})

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "quantity too large", apiErr.Message)
	assert.False(t, errors.Is(err, ErrServer))
}

func TestPaymentUpdateSendsPartialBody(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Payment{PaymentID: 42, PaymentStatus: models.PaymentConfirmed})
	})
	status := models.PaymentConfirmed
	p, err := New(srv.URL).Payments.Update(context.Background(), 42, models.PaymentInput{PaymentStatus: &status})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, p.PaymentStatus)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPut, call.Method)
	assert.Equal(t, "/payments/42", call.Path)
	assert.JSONEq(t, `{"paymentStatus":"Confirmed"}`, string(call.Body))
}

func TestMpesaStatus(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "Pending"})
	})
	status, err := New(srv.URL).Mpesa.Status(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayPending, status)
	assert.Equal(t, "bookingId=9", (*calls)[0].Query)
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, New(srv.URL).Venues.Delete(context.Background(), 7))
	assert.Equal(t, http.MethodDelete, (*calls)[0].Method)
	assert.Equal(t, "/venues/7", (*calls)[0].Path)
}

func TestDownloadReportCarriesBearer(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("eventId,title\n1,Gig\n"))
	})
	c := New(srv.URL, WithTokenSource(TokenFunc(func() string { return "tok" })))

	var buf bytes.Buffer
	n, err := c.Sales.DownloadReport(context.Background(), models.ReportCSV, &buf)
	require.NoError(t, err)
	assert.EqualValues(t, buf.Len(), n)
	assert.Equal(t, "Bearer tok", (*calls)[0].Auth)
	assert.Equal(t, "/sales/report/csv", (*calls)[0].Path)

	_, err = c.Sales.DownloadReport(context.Background(), "xlsx", &buf)
	assert.Error(t, err)
}

func TestUploadsImageMultipart(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "avatar.png", hdr.Filename)
		writeJSON(w, http.StatusCreated, map[string]string{"url": "http://cdn/avatar.png"})
	})
	c := New(srv.URL, WithTokenSource(TokenFunc(func() string { return "tok" })))

	res, err := c.Uploads.Image(context.Background(), "avatar.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/avatar.png", res.Location())
	assert.Equal(t, "Bearer tok", (*calls)[0].Auth)
}

func TestCloudinaryUploadDropsBearer(t *testing.T) {
	srv, calls := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "public", r.FormValue("upload_preset"))
		writeJSON(w, http.StatusOK, map[string]string{"secure_url": "https://res/x.png"})
	})
	c := New("http://unused", WithTokenSource(TokenFunc(func() string { return "tok" })))

	res, err := c.Uploads.cloudinaryAt(context.Background(), srv.URL+"/upload", "public", "x.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://res/x.png", res.Location())
	assert.Empty(t, (*calls)[0].Auth)
}

func TestBookingCreatedIdentifierShapes(t *testing.T) {
	for body, want := range map[string]int64{
		`{"bookingId": 5}`:              5,
		`{"id": 6}`:                     6,
		`{"booking": {"bookingId": 7}}`: 7,
		`{"message": "ok"}`:             0,
	} {
		srv, _ := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
		created, err := New(srv.URL).Bookings.Create(context.Background(), models.BookingRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, created.Identifier(), body)
	}
}
