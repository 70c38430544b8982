package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ticketkenya/internal/checkout"
	"ticketkenya/internal/models"
	"ticketkenya/internal/views"
)

func money(v float64) string {
	return "KES " + decimal.NewFromFloat(v).StringFixed(2)
}

func id64(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", s)
	}
	return id, nil
}

func (c *cli) eventsCmd() *cobra.Command {
	var (
		category, date, location string
		upcoming, clear          bool
	)
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"browse"},
		Short:   "List events, optionally filtered",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			page := views.NewEventsPage(c.app.deps, upcoming)
			defer page.Unmount()

			var (
				list []views.EventCard
				err  error
			)
			f := cmd.Flags()
			switch {
			case clear:
				list, err = page.Clear(ctx)
			case f.Changed("category") || f.Changed("date") || f.Changed("location"):
				page.SetCategory(category)
				page.SetDate(date)
				page.SetLocation(location)
				list, err = page.Apply(ctx)
			default:
				list, err = page.Events(ctx)
			}
			if err != nil {
				return err
			}
			c.renderEvents(list)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&category, "category", "c", "", "category, e.g. Music")
	f.StringVarP(&date, "date", "d", "", "date (YYYY-MM-DD)")
	f.StringVarP(&location, "location", "l", "", "venue address or name")
	f.BoolVarP(&upcoming, "upcoming", "u", false, "only events from today on")
	f.BoolVar(&clear, "clear", false, "reset all filters")
	return cmd
}

func (c *cli) renderEvents(list []views.EventCard) {
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		avail := strconv.Itoa(e.Available)
		if !e.Bookable {
			avail = "Sold out"
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.EventID, 10),
			e.Title,
			e.Category,
			strings.TrimSpace(e.Date + " " + e.Time),
			e.Location(),
			money(e.TicketPrice),
			avail,
		})
	}
	c.ui.table([]string{"ID", "TITLE", "CATEGORY", "WHEN", "WHERE", "PRICE", "LEFT"}, rows)
}

func (c *cli) eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Show or book a single event",
	}
	cmd.AddCommand(c.eventShowCmd(), c.eventBookCmd())
	return cmd
}

func (c *cli) eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|slug>",
		Short: "Show event details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := views.NewEventDetailPage(c.app.deps, args[0])
			defer page.Unmount()
			e, err := page.Load(cmd.Context())
			if err != nil {
				return err
			}
			status := fmt.Sprintf("%d of %d left", e.TicketsAvailable(), e.TicketsTotal)
			if !page.CanPurchase() {
				status = "Sold out"
			}
			c.ui.fields(e.Title,
				[2]string{"Category", e.Category},
				[2]string{"When", strings.TrimSpace(e.Date + " " + e.Time)},
				[2]string{"Where", e.Location()},
				[2]string{"Price", money(e.TicketPrice)},
				[2]string{"Tickets", status},
				[2]string{"About", e.Description},
			)
			return nil
		},
	}
}

func (c *cli) eventBookCmd() *cobra.Command {
	var (
		quantity int
		phone    string
	)
	cmd := &cobra.Command{
		Use:   "book <id|slug>",
		Short: "Book tickets, then optionally pay right away",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			page := views.NewEventDetailPage(c.app.deps, args[0])
			defer page.Unmount()
			e, err := page.Load(ctx)
			if err != nil {
				return err
			}
			if !page.CanPurchase() {
				return checkout.ErrSoldOut
			}
			if got := page.SetQuantity(quantity); got != quantity {
				c.ui.Info("Quantity adjusted", fmt.Sprintf("%d ticket(s), the most available for %s.", got, e.Title))
			}
			c.ui.fields("", [2]string{"Total", "KES " + page.Form().Total().StringFixed(2)})

			path, err := page.Book(ctx)
			if err != nil {
				return err
			}
			bookingID, err := id64(path[strings.LastIndex(path, "/")+1:])
			if err != nil {
				return err
			}
			if phone == "" {
				fmt.Fprintf(c.ui.out, "Pay with: ticketkenya pay %d --phone 07XXXXXXXX\n", bookingID)
				return nil
			}
			return c.pay(ctx, bookingID, phone)
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "number of tickets")
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "M-Pesa number to pay from immediately")
	return cmd
}

func (c *cli) payCmd() *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "pay <bookingId>",
		Short: "Pay a booking with M-Pesa and wait for confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := id64(args[0])
			if err != nil {
				return err
			}
			if phone == "" {
				if phone, err = c.ui.prompt("M-Pesa phone number"); err != nil {
					return err
				}
			}
			return c.pay(cmd.Context(), bookingID, phone)
		},
	}
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "Safaricom number, e.g. 0712345678")
	return cmd
}

// pay drives the payment page until the poll settles. Interrupting the
// command unmounts the page, which stops polling.
func (c *cli) pay(ctx context.Context, bookingID int64, phone string) error {
	if err := c.app.enter(views.PaymentPath(bookingID)); err != nil {
		return err
	}
	page := views.NewPaymentPage(c.app.deps, bookingID)
	defer page.Unmount()

	b, err := page.Mount(ctx)
	if err != nil {
		return err
	}
	if b.BookingStatus == models.BookingConfirmed {
		c.ui.Info("Already paid", fmt.Sprintf("Booking #%d is confirmed.", bookingID))
		return nil
	}
	c.ui.fields(fmt.Sprintf("Booking #%d", bookingID),
		[2]string{"Tickets", strconv.Itoa(b.Quantity)},
		[2]string{"Amount", money(b.TotalAmount)},
	)
	page.OnTick = func(t checkout.Tick) {
		status := string(t.Status)
		if t.Err != nil {
			status = "error: " + views.Describe(t.Err)
		}
		fmt.Fprintln(c.ui.err, faintStyle.Render(fmt.Sprintf("  check %d: %s", t.Attempt, status)))
	}
	if err := page.Pay(ctx, phone); err != nil {
		return err
	}

	state, err := page.Wait(ctx)
	switch state {
	case views.PaymentConfirmed:
		fmt.Fprintf(c.ui.out, "Show your ticket with: ticketkenya me bookings --ticket %d\n", bookingID)
		return nil
	case views.PaymentFailed:
		return fmt.Errorf("payment for booking %d failed", bookingID)
	case views.PaymentTimedOut:
		return nil
	}
	return err
}
