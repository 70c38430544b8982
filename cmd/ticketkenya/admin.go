package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ticketkenya/internal/models"
	"ticketkenya/internal/views"
)

const adminPath = "/dashboard/admin"

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin dashboard",
	}
	cmd.AddCommand(
		c.adminUsersCmd(),
		c.adminEventsCmd(),
		c.adminVenuesCmd(),
		c.adminBookingsCmd(),
		c.adminPaymentsCmd(),
		c.adminSupportCmd(),
		c.adminVenueBookingsCmd(),
		c.analyticsCmd(),
		c.salesCmd(),
	)
	return cmd
}

// idAction builds "<verb> <id>" subcommands that share a page.
func (c *cli) idAction(path, use, short string, run func(ctx context.Context, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: c.guarded(path, func(cmd *cobra.Command, args []string) error {
			id, err := id64(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), id)
		}),
	}
}

// ---------- users ----------

func (c *cli) adminUsersCmd() *cobra.Command {
	path := adminPath + "/users"
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminUsers(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, u := range list {
				rows = append(rows, []string{strconv.FormatInt(u.UserID, 10), u.FullName(), u.Email, u.ContactPhone, string(u.Role)})
			}
			c.ui.table([]string{"ID", "NAME", "EMAIL", "PHONE", "ROLE"}, rows)
			return nil
		}),
	}
	cmd.AddCommand(
		c.idAction(path, "toggle-role", "Switch a user between user and admin", func(ctx context.Context, id int64) error {
			page := views.NewAdminUsers(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(ctx)
			if err != nil {
				return err
			}
			for _, u := range list {
				if u.UserID == id {
					_, err := page.ToggleRole(ctx, u)
					return err
				}
			}
			return fmt.Errorf("user %d not found", id)
		}),
		c.idAction(path, "delete", "Delete a user", func(ctx context.Context, id int64) error {
			page := views.NewAdminUsers(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

// ---------- events ----------

func eventFormFlags(f *pflag.FlagSet, form *views.EventForm) {
	f.StringVar(&form.Title, "title", "", "title")
	f.StringVar(&form.Description, "description", "", "description")
	f.StringVar(&form.Category, "category", "", "category")
	f.Int64Var(&form.VenueID, "venue", 0, "venue id")
	f.StringVar(&form.Date, "date", "", "date (YYYY-MM-DD)")
	f.StringVar(&form.Time, "time", "", "time (HH:MM)")
	f.Float64Var(&form.TicketPrice, "price", 0, "ticket price in KES")
	f.IntVar(&form.TicketsTotal, "tickets", 0, "total tickets")
	f.StringVar(&form.Image, "image", "", "image URL")
}

// mergeEventForm overlays the flags the user set onto base.
func mergeEventForm(f *pflag.FlagSet, base, in views.EventForm) views.EventForm {
	if f.Changed("title") {
		base.Title = in.Title
	}
	if f.Changed("description") {
		base.Description = in.Description
	}
	if f.Changed("category") {
		base.Category = in.Category
	}
	if f.Changed("venue") {
		base.VenueID = in.VenueID
	}
	if f.Changed("date") {
		base.Date = in.Date
	}
	if f.Changed("time") {
		base.Time = in.Time
	}
	if f.Changed("price") {
		base.TicketPrice = in.TicketPrice
	}
	if f.Changed("tickets") {
		base.TicketsTotal = in.TicketsTotal
	}
	if f.Changed("image") {
		base.Image = in.Image
	}
	return base
}

func (c *cli) adminEventsCmd() *cobra.Command {
	path := adminPath + "/events"
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List all events",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminEvents(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderEvents(views.Cards(list))
			return nil
		}),
	}

	var createForm views.EventForm
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminEvents(c.app.deps)
			defer page.Unmount()
			e, err := page.Create(cmd.Context(), createForm)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.ui.out, "Event #%d created (%s).\n", e.EventID, e.Slug)
			return nil
		}),
	}
	eventFormFlags(create.Flags(), &createForm)

	var editForm views.EventForm
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an event; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: c.guarded(path, func(cmd *cobra.Command, args []string) error {
			id, err := id64(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			page := views.NewAdminEvents(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(ctx)
			if err != nil {
				return err
			}
			for _, e := range list {
				if e.EventID == id {
					_, err := page.Edit(ctx, id, mergeEventForm(cmd.Flags(), views.EventFormFrom(e), editForm))
					return err
				}
			}
			return fmt.Errorf("event %d not found", id)
		}),
	}
	eventFormFlags(edit.Flags(), &editForm)

	cmd.AddCommand(create, edit,
		c.idAction(path, "delete", "Delete an event", func(ctx context.Context, id int64) error {
			page := views.NewAdminEvents(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

// ---------- venues ----------

func (c *cli) adminVenuesCmd() *cobra.Command {
	path := adminPath + "/venues"
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "List venues",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminVenues(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderVenues(list)
			return nil
		}),
	}

	var form views.VenueForm
	flags := func(f *pflag.FlagSet) {
		f.StringVar(&form.Name, "name", "", "venue name")
		f.StringVar(&form.Address, "address", "", "address")
		f.IntVar(&form.Capacity, "capacity", 0, "capacity")
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a venue",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminVenues(c.app.deps)
			defer page.Unmount()
			v, err := page.Create(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.ui.out, "Venue #%d created.\n", v.VenueID)
			return nil
		}),
	}
	flags(create.Flags())

	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a venue; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: c.guarded(path, func(cmd *cobra.Command, args []string) error {
			id, err := id64(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			page := views.NewAdminVenues(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(ctx)
			if err != nil {
				return err
			}
			for _, v := range list {
				if v.VenueID != id {
					continue
				}
				f := cmd.Flags()
				next := views.VenueForm{Name: v.Name, Address: v.Address, Capacity: v.Capacity}
				if f.Changed("name") {
					next.Name = form.Name
				}
				if f.Changed("address") {
					next.Address = form.Address
				}
				if f.Changed("capacity") {
					next.Capacity = form.Capacity
				}
				_, err := page.Edit(ctx, id, next)
				return err
			}
			return fmt.Errorf("venue %d not found", id)
		}),
	}
	flags(edit.Flags())

	cmd.AddCommand(create, edit,
		c.idAction(path, "delete", "Delete a venue", func(ctx context.Context, id int64) error {
			page := views.NewAdminVenues(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

// ---------- bookings & payments ----------

func (c *cli) adminBookingsCmd() *cobra.Command {
	path := adminPath + "/bookings"
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List all bookings",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminBookings(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, b := range views.BookingRows(list) {
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10), b.Customer, b.Event,
					strconv.Itoa(b.Quantity), money(b.Amount), b.Status, b.Payment,
				})
			}
			c.ui.table([]string{"ID", "CUSTOMER", "EVENT", "QTY", "TOTAL", "STATUS", "PAYMENT"}, rows)
			return nil
		}),
	}
	cmd.AddCommand(
		c.idAction(path, "confirm", "Mark a booking confirmed", func(ctx context.Context, id int64) error {
			page := views.NewAdminBookings(c.app.deps)
			defer page.Unmount()
			_, err := page.ConfirmBooking(ctx, id)
			return err
		}),
		c.idAction(path, "delete", "Delete a booking", func(ctx context.Context, id int64) error {
			page := views.NewAdminBookings(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

func (c *cli) adminPaymentsCmd() *cobra.Command {
	path := adminPath + "/payments"
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List all payments",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminPayments(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, p := range views.PaymentRows(list) {
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10), p.Customer, p.Email, p.Event, p.EventDate,
					money(p.Amount), p.Method, p.Status, p.Transaction,
				})
			}
			c.ui.table([]string{"ID", "CUSTOMER", "EMAIL", "EVENT", "DATE", "AMOUNT", "METHOD", "STATUS", "TRANSACTION"}, rows)
			return nil
		}),
	}
	cmd.AddCommand(
		c.idAction(path, "confirm", "Mark a payment confirmed", func(ctx context.Context, id int64) error {
			page := views.NewAdminPayments(c.app.deps)
			defer page.Unmount()
			_, err := page.ConfirmPayment(ctx, id)
			return err
		}),
		c.idAction(path, "delete", "Delete a payment", func(ctx context.Context, id int64) error {
			page := views.NewAdminPayments(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

// ---------- support ----------

func (c *cli) adminSupportCmd() *cobra.Command {
	path := adminPath + "/support"
	cmd := &cobra.Command{
		Use:   "support",
		Short: "List all support tickets",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminSupport(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderTickets(views.TicketRows(list))
			return nil
		}),
	}

	var response string
	resolve := c.idAction(path, "resolve", "Resolve a ticket", func(ctx context.Context, id int64) error {
		page := views.NewAdminSupport(c.app.deps)
		defer page.Unmount()
		_, err := page.ResolveTicket(ctx, id, response)
		return err
	})
	resolve.Flags().StringVarP(&response, "response", "r", "", "reply shown to the user")

	cmd.AddCommand(resolve,
		c.idAction(path, "delete", "Delete a ticket", func(ctx context.Context, id int64) error {
			page := views.NewAdminSupport(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

// ---------- venue bookings ----------

func (c *cli) adminVenueBookingsCmd() *cobra.Command {
	path := adminPath + "/venue-bookings"
	cmd := &cobra.Command{
		Use:   "venue-bookings",
		Short: "Moderate venue booking requests",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewAdminVenueBookings(c.app.deps)
			defer page.Unmount()
			list, err := page.Rows(cmd.Context())
			if err != nil {
				return err
			}
			c.renderVenueBookings(views.VenueBookingRows(list))
			return nil
		}),
	}
	moderate := func(use, short string, fn func(*views.AdminVenueBookings, context.Context, int64) (*models.VenueBooking, error)) *cobra.Command {
		return c.idAction(path, use, short, func(ctx context.Context, id int64) error {
			page := views.NewAdminVenueBookings(c.app.deps)
			defer page.Unmount()
			_, err := fn(page, ctx, id)
			return err
		})
	}
	cmd.AddCommand(
		moderate("approve", "Approve a venue booking", (*views.AdminVenueBookings).Approve),
		moderate("reject", "Reject a venue booking", (*views.AdminVenueBookings).Reject),
		c.idAction(path, "delete", "Delete a venue booking", func(ctx context.Context, id int64) error {
			page := views.NewAdminVenueBookings(c.app.deps)
			defer page.Unmount()
			_, err := page.Delete(ctx, id)
			return err
		}),
	)
	return cmd
}

// ---------- analytics & sales ----------

func (c *cli) analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Booking and payment totals",
		Args:  cobra.NoArgs,
		RunE: c.guarded(adminPath+"/analytics", func(cmd *cobra.Command, _ []string) error {
			page := views.NewAnalytics(c.app.deps)
			defer page.Unmount()
			s, err := page.Summary(cmd.Context())
			if err != nil {
				return err
			}
			c.ui.fields("Analytics",
				[2]string{"Bookings", strconv.Itoa(s.TotalBookings)},
				[2]string{"Confirmed bookings", strconv.Itoa(s.ConfirmedBookings)},
				[2]string{"Confirmed payments", strconv.Itoa(s.ConfirmedPayments)},
				[2]string{"Pending payments", strconv.Itoa(s.PendingPayments)},
				[2]string{"Failed payments", strconv.Itoa(s.FailedPayments)},
				[2]string{"Revenue", "KES " + s.Revenue.StringFixed(2)},
				[2]string{"Customers", strconv.Itoa(s.UniqueCustomers)},
			)
			return nil
		}),
	}
}

func (c *cli) salesCmd() *cobra.Command {
	path := adminPath + "/sales"
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Sales report",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewSalesPage(c.app.deps)
			defer page.Unmount()
			r, err := page.Report(cmd.Context())
			if err != nil {
				return err
			}
			c.ui.fields("Sales",
				[2]string{"Revenue", money(r.TotalRevenue)},
				[2]string{"Bookings", strconv.Itoa(r.TotalBookings)},
			)
			rows := make([][]string, 0, len(r.TopEvents))
			for _, e := range r.TopEvents {
				rows = append(rows, []string{strconv.FormatInt(e.EventID, 10), e.Title, strconv.Itoa(e.TotalTicketsSold), money(e.TotalRevenue)})
			}
			c.ui.table([]string{"ID", "EVENT", "SOLD", "REVENUE"}, rows)
			return nil
		}),
	}

	var (
		format string
		out    string
	)
	download := &cobra.Command{
		Use:   "download",
		Short: "Download the report as CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: c.guarded(path, func(cmd *cobra.Command, _ []string) error {
			page := views.NewSalesPage(c.app.deps)
			defer page.Unmount()
			_, err := page.Download(cmd.Context(), models.ReportFormat(format), out)
			return err
		}),
	}
	download.Flags().StringVarP(&format, "format", "f", string(models.ReportCSV), "csv or pdf")
	download.Flags().StringVarP(&out, "out", "o", ".", "file or directory to write to")
	cmd.AddCommand(download)
	return cmd
}
