package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"ticketkenya/internal/models"
	"ticketkenya/internal/ticketqr"
	"ticketkenya/internal/views"
)

const mePath = "/dashboard/me"

// guarded wraps run with the route guard for path.
func (c *cli) guarded(path string, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := c.app.enter(path); err != nil {
			return err
		}
		return run(cmd, args)
	}
}

func (c *cli) meCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Your dashboard: bookings, payments, support, profile",
	}
	cmd.AddCommand(
		c.myBookingsCmd(),
		c.myPaymentsCmd(),
		c.mySupportCmd(),
		c.profileCmd(),
		c.myVenuesCmd(),
	)
	return cmd
}

func (c *cli) myBookingsCmd() *cobra.Command {
	var (
		ticket int64
		png    string
	)
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List your bookings or show a ticket QR code",
		Args:  cobra.NoArgs,
		RunE: c.guarded(mePath+"/bookings", func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			page := views.NewMyBookings(c.app.deps, c.app.qr)
			defer page.Unmount()

			if ticket != 0 && png == "" {
				qr, err := page.Ticket(ctx, ticket)
				if err != nil {
					return err
				}
				fmt.Fprint(c.ui.out, qr)
				return nil
			}
			rows, err := page.Rows(ctx)
			if err != nil {
				return err
			}
			if ticket != 0 {
				return c.writeTicketPNG(rows, ticket, png)
			}
			out := make([][]string, 0, len(rows))
			for _, b := range rows {
				out = append(out, []string{
					strconv.FormatInt(b.BookingID, 10),
					b.EventTitle,
					b.EventDate,
					strconv.Itoa(b.Quantity),
					money(b.TotalAmount),
					b.BookingStatus,
					b.PaymentStatus,
				})
			}
			c.ui.table([]string{"ID", "EVENT", "DATE", "QTY", "TOTAL", "STATUS", "PAYMENT"}, out)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&ticket, "ticket", 0, "show the QR ticket of a confirmed booking")
	cmd.Flags().StringVar(&png, "png", "", "with --ticket, write the QR code to this PNG file instead")
	return cmd
}

func (c *cli) writeTicketPNG(rows []models.UserBooking, bookingID int64, path string) error {
	for _, b := range rows {
		if b.BookingID != bookingID {
			continue
		}
		p, err := ticketqr.FromBooking(b)
		if err != nil {
			return err
		}
		img, err := c.app.qr.PNG(p, 256)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(path), img, 0o644); err != nil {
			return err
		}
		c.ui.Success("Ticket saved", path)
		return nil
	}
	return fmt.Errorf("booking %d is not one of yours", bookingID)
}

func (c *cli) myPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "List your payments",
		Args:  cobra.NoArgs,
		RunE: c.guarded(mePath+"/payments", func(cmd *cobra.Command, _ []string) error {
			page := views.NewMyPayments(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderPayments(views.PaymentRows(list))
			return nil
		}),
	}
}

func (c *cli) renderPayments(rows []views.PaymentRow) {
	out := make([][]string, 0, len(rows))
	for _, p := range rows {
		out = append(out, []string{
			strconv.FormatInt(p.ID, 10),
			strconv.FormatInt(p.BookingID, 10),
			money(p.Amount),
			p.Method,
			p.Status,
			p.Transaction,
		})
	}
	c.ui.table([]string{"ID", "BOOKING", "AMOUNT", "METHOD", "STATUS", "TRANSACTION"}, out)
}

func (c *cli) mySupportCmd() *cobra.Command {
	path := mePath + "/support"
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Your support tickets",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewMySupport(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderTickets(views.TicketRows(list))
			return nil
		}),
	}

	var subject, description string
	create := &cobra.Command{
		Use:   "new",
		Short: "Open a support ticket",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewMySupport(c.app.deps)
			defer page.Unmount()
			t, err := page.Create(cmd.Context(), subject, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.ui.out, "Ticket #%d opened.\n", t.TicketID)
			return nil
		}),
	}
	create.Flags().StringVarP(&subject, "subject", "s", "", "subject")
	create.Flags().StringVarP(&description, "description", "d", "", "what went wrong")

	remove := &cobra.Command{
		Use:   "delete <ticketId>",
		Short: "Delete one of your tickets",
		Args:  cobra.ExactArgs(1),
		RunE: c.guarded(path, func(cmd *cobra.Command, args []string) error {
			id, err := id64(args[0])
			if err != nil {
				return err
			}
			page := views.NewMySupport(c.app.deps)
			defer page.Unmount()
			_, err = page.Delete(cmd.Context(), id)
			return err
		}),
	}
	cmd.AddCommand(create, remove)
	return cmd
}

func (c *cli) renderTickets(rows []views.TicketRow) {
	out := make([][]string, 0, len(rows))
	for _, t := range rows {
		out = append(out, []string{strconv.FormatInt(t.ID, 10), t.User, t.Subject, t.Status, t.Response})
	}
	c.ui.table([]string{"ID", "USER", "SUBJECT", "STATUS", "RESPONSE"}, out)
}

func (c *cli) profileCmd() *cobra.Command {
	path := mePath + "/profile"
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page, err := views.NewProfile(c.app.deps)
			if err != nil {
				return err
			}
			defer page.Unmount()
			u, err := page.Load(cmd.Context())
			if err != nil {
				return err
			}
			c.renderUser(u)
			return nil
		}),
	}

	var form views.ProfileForm
	update := &cobra.Command{
		Use:   "update",
		Short: "Edit your name, phone or address",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page, err := views.NewProfile(c.app.deps)
			if err != nil {
				return err
			}
			defer page.Unmount()
			ctx := cmd.Context()
			current, err := page.Load(ctx)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			next := views.ProfileForm{
				Firstname:    pick(f.Changed("first-name"), form.Firstname, current.Firstname),
				Lastname:     pick(f.Changed("last-name"), form.Lastname, current.Lastname),
				ContactPhone: pick(f.Changed("phone"), form.ContactPhone, current.ContactPhone),
				Address:      pick(f.Changed("address"), form.Address, current.Address),
			}
			u, err := page.Update(ctx, next)
			if err != nil {
				return err
			}
			c.renderUser(u)
			return nil
		}),
	}
	uf := update.Flags()
	uf.StringVar(&form.Firstname, "first-name", "", "first name")
	uf.StringVar(&form.Lastname, "last-name", "", "last name")
	uf.StringVar(&form.ContactPhone, "phone", "", "contact phone")
	uf.StringVar(&form.Address, "address", "", "address")

	avatar := &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: c.guarded(path, func(cmd *cobra.Command, args []string) error {
			page, err := views.NewProfile(c.app.deps)
			if err != nil {
				return err
			}
			defer page.Unmount()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			u, err := page.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			c.renderUser(u)
			return nil
		}),
	}
	cmd.AddCommand(update, avatar)
	return cmd
}

func pick(changed bool, flag, current string) string {
	if changed {
		return flag
	}
	return current
}

func (c *cli) renderUser(u *models.User) {
	c.ui.fields(u.FullName(),
		[2]string{"Email", u.Email},
		[2]string{"Phone", u.ContactPhone},
		[2]string{"Address", u.Address},
		[2]string{"Role", string(u.Role)},
		[2]string{"Avatar", u.ProfileURL},
	)
}

func (c *cli) myVenuesCmd() *cobra.Command {
	path := mePath + "/venue-bookings"
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "Your venue bookings",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewMyVenueBookings(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderVenueBookings(views.VenueBookingRows(list))
			return nil
		}),
	}

	var req models.VenueBookingRequest
	slotFlags := func(sub *cobra.Command) {
		f := sub.Flags()
		f.Int64Var(&req.VenueID, "venue", 0, "venue id")
		f.StringVar(&req.Date, "date", "", "date (YYYY-MM-DD)")
		f.StringVar(&req.StartTime, "start", "", "start time (HH:MM)")
		f.StringVar(&req.EndTime, "end", "", "end time (HH:MM)")
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Check whether a venue is free",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewMyVenueBookings(c.app.deps)
			defer page.Unmount()
			avail, err := page.CheckAvailability(cmd.Context(), req)
			if err != nil {
				return err
			}
			if avail.Available {
				c.ui.Success("Available", avail.Message)
			} else {
				c.ui.Error("Unavailable", avail.Message)
			}
			return nil
		}),
	}
	slotFlags(check)

	book := &cobra.Command{
		Use:   "book",
		Short: "Request a venue for your event",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewMyVenueBookings(c.app.deps)
			defer page.Unmount()
			b, err := page.Book(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.ui.out, "Venue booking #%d is %s.\n", b.VenueBookingID, b.Status)
			return nil
		}),
	}
	slotFlags(book)
	book.Flags().StringVar(&req.EventTitle, "title", "", "event title")

	list := &cobra.Command{
		Use:   "list-venues",
		Short: "List venues you can book",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewMyVenueBookings(c.app.deps)
			defer page.Unmount()
			venues, err := page.Venues(cmd.Context())
			if err != nil {
				return err
			}
			c.renderVenues(venues)
			return nil
		}),
	}

	cancel := &cobra.Command{
		Use:   "cancel <venueBookingId>",
		Short: "Cancel a venue booking",
		Args:  cobra.ExactArgs(1),
		RunE: c.guarded(path, func(cmd *cobra.Command, args []string) error {
			id, err := id64(args[0])
			if err != nil {
				return err
			}
			page := views.NewMyVenueBookings(c.app.deps)
			defer page.Unmount()
			_, err = page.Delete(cmd.Context(), id)
			return err
		}),
	}
	cmd.AddCommand(check, book, list, cancel)
	return cmd
}

func (c *cli) renderVenueBookings(rows []views.VenueBookingRow) {
	out := make([][]string, 0, len(rows))
	for _, b := range rows {
		out = append(out, []string{strconv.FormatInt(b.ID, 10), b.Venue, b.Event, b.When, b.Status})
	}
	c.ui.table([]string{"ID", "VENUE", "EVENT", "WHEN", "STATUS"}, out)
}

func (c *cli) renderVenues(list []models.Venue) {
	out := make([][]string, 0, len(list))
	for _, v := range list {
		out = append(out, []string{strconv.FormatInt(v.VenueID, 10), v.Name, v.Address, strconv.Itoa(v.Capacity)})
	}
	c.ui.table([]string{"ID", "NAME", "ADDRESS", "CAPACITY"}, out)
}
