package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ticketkenya/internal/guard"
	"ticketkenya/internal/models"
)

func (c *cli) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = c.ui.prompt("Email"); err != nil {
					return err
				}
			}
			password, err := c.ui.password("Password")
			if err != nil {
				return err
			}
			res, err := c.app.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			name := email
			if res.User != nil {
				name = res.User.FullName()
			}
			c.ui.Success("Login successful!", fmt.Sprintf("Welcome back, %s.", name))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.ui.password("Password")
			if err != nil {
				return err
			}
			again, err := c.ui.password("Confirm password")
			if err != nil {
				return err
			}
			if password != again {
				return errors.New("passwords do not match")
			}
			req.Password = password
			msg, err := c.app.session.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.ui.Success(msg, "You can now log in.")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Firstname, "first-name", "", "first name")
	f.StringVar(&req.Lastname, "last-name", "", "last name")
	f.StringVarP(&req.Email, "email", "e", "", "email")
	f.StringVar(&req.ContactPhone, "phone", "", "contact phone")
	f.StringVar(&req.Address, "address", "", "address")
	for _, name := range []string{"first-name", "last-name", "email"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.session.Logout(cmd.Context()); err != nil {
				return err
			}
			c.ui.Success("Logged out", "")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.enter(guard.UserDashboardPath); err != nil {
				return err
			}
			auth := c.app.store.Auth()
			c.ui.fields("Signed in",
				[2]string{"Name", auth.User.FullName()},
				[2]string{"Email", auth.User.Email},
				[2]string{"Role", string(auth.UserRole)},
				[2]string{"API", c.app.client.BaseURL()},
			)
			return nil
		},
	}
}
