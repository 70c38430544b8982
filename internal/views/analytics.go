package views

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ticketkenya/internal/cache"
	"ticketkenya/internal/models"
)

// Summary is the admin analytics card set, aggregated client side.
type Summary struct {
	TotalBookings     int
	ConfirmedBookings int
	ConfirmedPayments int
	PendingPayments   int
	FailedPayments    int
	Revenue           decimal.Decimal
	UniqueCustomers   int
}

// Aggregate counts statuses case-insensitively; revenue only includes
// confirmed payments.
func Aggregate(bookings []models.Booking, payments []models.Payment) Summary {
	s := Summary{TotalBookings: len(bookings), Revenue: decimal.Zero}
	customers := make(map[int64]struct{})
	for _, b := range bookings {
		if strings.EqualFold(string(b.BookingStatus), string(models.BookingConfirmed)) {
			s.ConfirmedBookings++
		}
		if b.UserID != 0 {
			customers[b.UserID] = struct{}{}
		}
	}
	s.UniqueCustomers = len(customers)

	for _, p := range payments {
		switch {
		case strings.EqualFold(string(p.PaymentStatus), string(models.PaymentConfirmed)):
			s.ConfirmedPayments++
			s.Revenue = s.Revenue.Add(decimal.NewFromFloat(p.Amount))
		case strings.EqualFold(string(p.PaymentStatus), string(models.PaymentFailed)):
			s.FailedPayments++
		default:
			s.PendingPayments++
		}
	}
	return s
}

type Analytics struct {
	bookings *cache.Watch[[]models.Booking]
	payments *cache.Watch[[]models.Payment]
}

func NewAnalytics(deps Deps) *Analytics {
	c := deps.Resources.Cache()
	return &Analytics{
		bookings: cache.Subscribe(c, deps.Resources.Bookings.ListQuery()),
		payments: cache.Subscribe(c, deps.Resources.Payments.ListQuery()),
	}
}

func (a *Analytics) Summary(ctx context.Context) (Summary, error) {
	var (
		bookings []models.Booking
		payments []models.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bookings, err = a.bookings.Get(gctx)
		return err
	})
	g.Go(func() (err error) {
		payments, err = a.payments.Get(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Aggregate(bookings, payments), nil
}

func (a *Analytics) Unmount() {
	a.bookings.Release()
	a.payments.Release()
}

// ---------- sales report ----------

type SalesPage struct {
	deps  Deps
	watch *cache.Watch[*models.SalesReport]
}

func NewSalesPage(deps Deps) *SalesPage {
	return &SalesPage{deps: deps, watch: cache.Subscribe(deps.Resources.Cache(), deps.Resources.Sales.ReportQuery())}
}

func (s *SalesPage) Report(ctx context.Context) (*models.SalesReport, error) {
	return s.watch.Get(ctx)
}

// Download streams the report to path with the bearer token attached. If
// path is a directory the file is named sales-report.<format> inside it. A
// partial file is removed on failure.
func (s *SalesPage) Download(ctx context.Context, format models.ReportFormat, path string) (string, error) {
	if !format.Valid() {
		return "", validation("unknown report format %q", format)
	}
	if path == "" {
		path = "."
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, "sales-report."+string(format))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	_, err = s.deps.Resources.Client().Sales.DownloadReport(ctx, format, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		s.deps.notifier().Error("Download failed", Describe(err))
		return "", err
	}
	s.deps.notifier().Success("Report downloaded", path)
	return path, nil
}

func (s *SalesPage) Unmount() { s.watch.Release() }
