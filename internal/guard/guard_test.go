package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ticketkenya/internal/models"
)

func TestCheck(t *testing.T) {
	user := models.AuthState{User: &models.User{UserID: 1}, Token: "t", IsAuthenticated: true, UserRole: models.RoleUser}
	admin := models.AuthState{User: &models.User{UserID: 2}, Token: "t", IsAuthenticated: true, UserRole: models.RoleAdmin}

	tests := []struct {
		name string
		path string
		auth models.AuthState
		want Decision
	}{
		{"anonymous goes to login", "/dashboard/me/bookings", models.AuthState{}, Decision{Redirect: LoginPath, From: "/dashboard/me/bookings"}},
		{"token without user is anonymous", "/dashboard/me", models.AuthState{Token: "t"}, Decision{Redirect: LoginPath, From: "/dashboard/me"}},
		{"user on own dashboard", "/dashboard/me/payments", user, Decision{Allow: true}},
		{"user on admin subtree", "/dashboard/admin/payments", user, Decision{Redirect: UserDashboardPath}},
		{"user on admin root", "/dashboard/admin/", user, Decision{Redirect: UserDashboardPath}},
		{"prefix lookalike is not admin", "/dashboard/administrator", user, Decision{Allow: true}},
		{"admin on admin subtree", "/dashboard/admin/users", admin, Decision{Allow: true}},
		{"admin on user dashboard", "/dashboard/me", admin, Decision{Allow: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.path, tt.auth))
		})
	}
}
