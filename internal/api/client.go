package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketkenya/internal/logger"
)

// TokenSource yields the bearer token for the next request. An empty token
// means the request goes out without an Authorization header.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// Client talks to the TicketKenya REST backend. The resource families hang
// off it as fields.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *logger.Logger

	Auth          *AuthService
	Users         *UsersService
	Events        *EventsService
	Venues        *VenuesService
	Bookings      *BookingsService
	Payments      *PaymentsService
	Mpesa         *MpesaService
	Support       *SupportService
	Sales         *SalesService
	VenueBookings *VenueBookingsService
	Uploads       *UploadsService
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Auth = &AuthService{c}
	c.Users = &UsersService{c}
	c.Events = &EventsService{c}
	c.Venues = &VenuesService{c}
	c.Bookings = &BookingsService{c}
	c.Payments = &PaymentsService{c}
	c.Mpesa = &MpesaService{c}
	c.Support = &SupportService{c}
	c.Sales = &SalesService{c}
	c.VenueBookings = &VenueBookingsService{c}
	c.Uploads = &UploadsService{c}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send executes req and returns the response when it is 2xx. Anything else
// is drained into an *Error.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("API", fmt.Sprintf("%s %s failed: %v", req.Method, req.URL.Path, err))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.LogAPI(req.Method, req.URL.Path, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := newError(req.Method, req.URL.Path, resp.StatusCode, body)
		if resp.StatusCode >= 500 {
			c.logger.Error("API", apiErr.Error())
		}
		return nil, apiErr
	}
	return resp, nil
}

// do sends an optional JSON body and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Download streams a binary response to w with the bearer header attached.
func (c *Client) Download(ctx context.Context, path string, query url.Values, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.send(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", path, err)
	}
	return n, nil
}

// uploadFile posts a single-file multipart form to an absolute or relative
// URL. extra fields are written before the file part.
func (c *Client) uploadFile(ctx context.Context, target, field, filename string, r io.Reader, extra map[string]string, withAuth bool, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	var req *http.Request
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-Request-ID", uuid.NewString())
	} else {
		req, err = c.newRequest(ctx, http.MethodPost, target, nil, &buf)
		if err != nil {
			return err
		}
	}
	if !withAuth {
		req.Header.Del("Authorization")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	return nil
}

func idPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}
