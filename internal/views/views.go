// Package views holds the page controllers of the client. Each controller
// owns the state one screen needs: local form fields, mounted cache
// subscriptions and background work such as payment polling. Rendering is
// left to the caller.
package views

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ticketkenya/internal/api"
	"ticketkenya/internal/checkout"
	"ticketkenya/internal/logger"
	"ticketkenya/internal/resources"
	"ticketkenya/internal/session"
	"ticketkenya/internal/store"
	"ticketkenya/internal/upload"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrSelfRoleChange = errors.New("you cannot change your own role from the users table")
)

// Confirmer asks the user a blocking yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, title, text string) (bool, error)
}

// Notifier shows toasts.
type Notifier interface {
	Success(title, message string)
	Error(title, message string)
	Info(title, message string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string, string) {}
func (nopNotifier) Error(string, string)   {}
func (nopNotifier) Info(string, string)    {}

// Deps is what every page controller is built from.
type Deps struct {
	Resources *resources.Resources
	Store     *store.Store
	Session   *session.Manager
	Booker    *checkout.Booker
	Uploader  upload.Uploader
	Notifier  Notifier
	Confirmer Confirmer
	Logger    *logger.Logger
	Poll      PollSettings
}

func (d Deps) notifier() Notifier {
	if d.Notifier == nil {
		return nopNotifier{}
	}
	return d.Notifier
}

func (d Deps) logger() *logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

// Describe turns an error into the message shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, api.ErrUnauthorized):
		return "Your session has expired. Please log in again."
	case errors.Is(err, api.ErrForbidden):
		return "You do not have permission to view this."
	case api.StatusCode(err) == http.StatusInternalServerError:
		return "Server error. Please try again later."
	case errors.Is(err, api.ErrServer):
		return "The server is unavailable. Please try again later."
	}
	return api.ServerMessage(err)
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
