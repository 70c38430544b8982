// Package guard decides whether a route may be shown for the local
// session. It never calls the network and is a convenience only; the
// backend re-checks roles on every request.
package guard

import (
	"strings"

	"ticketkenya/internal/models"
)

const (
	LoginPath         = "/login"
	UserDashboardPath = "/dashboard/me"
	AdminPrefix       = "/dashboard/admin"
)

type Decision struct {
	Allow    bool
	Redirect string
	// From is the originally requested path when redirecting to login.
	From string
}

func Check(path string, auth models.AuthState) Decision {
	if auth.User == nil {
		return Decision{Redirect: LoginPath, From: path}
	}
	if underAdmin(path) && auth.UserRole != models.RoleAdmin {
		return Decision{Redirect: UserDashboardPath}
	}
	return Decision{Allow: true}
}

func underAdmin(path string) bool {
	path = "/" + strings.Trim(path, "/")
	return path == AdminPrefix || strings.HasPrefix(path, AdminPrefix+"/")
}
