// Command ticketkenya is the terminal client for TicketKenya: browse
// events, book and pay with M-Pesa, and run the admin dashboard.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ticketkenya/internal/config"
	"ticketkenya/internal/views"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ui := newTerminal(os.Stdin, os.Stdout, os.Stderr)
	err := newRootCmd(ui).ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.Error("Error", views.Describe(err))
		os.Exit(1)
	}
}

// cli carries the lazily built app to every command.
type cli struct {
	ui  *terminal
	app *app
}

func newRootCmd(ui *terminal) *cobra.Command {
	c := &cli{ui: ui}
	var envFile string

	root := &cobra.Command{
		Use:           "ticketkenya",
		Short:         "Book Kenyan events and pay with M-Pesa",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ui.out, ui.err = cmd.OutOrStdout(), cmd.ErrOrStderr()
			ui.in = cmd.InOrStdin()
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			c.app, err = newApp(cmd.Context(), cfg, ui)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().BoolVarP(&ui.assume, "yes", "y", false, "answer yes to confirmation prompts")
	root.PersistentFlags().BoolVar(&ui.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.eventsCmd(),
		c.eventCmd(),
		c.payCmd(),
		c.meCmd(),
		c.adminCmd(),
	)
	return root
}
