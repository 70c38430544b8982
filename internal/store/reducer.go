package store

import (
	"strings"

	"ticketkenya/internal/models"
)

// AppState is the whole client state. Auth is persisted, Filters is not.
type AppState struct {
	Auth    models.AuthState
	Filters models.EventFilters
}

type Action interface {
	action()
}

type SetCredentials struct {
	User  *models.User
	Token string
	Role  models.Role
}

type ClearCredentials struct{}

// SetUser replaces the profile after a self-fetch or profile update.
type SetUser struct {
	User *models.User
}

type SetFilters struct {
	Filters models.EventFilters
}

type SetLocationFilter struct {
	Location string
}

type ClearFilters struct{}

func (SetCredentials) action()    {}
func (ClearCredentials) action()  {}
func (SetUser) action()           {}
func (SetFilters) action()        {}
func (SetLocationFilter) action() {}
func (ClearFilters) action()      {}

func Reduce(s AppState, a Action) AppState {
	s.Auth = reduceAuth(s.Auth, a)
	s.Filters = reduceFilters(s.Filters, a)
	return s
}

func reduceAuth(s models.AuthState, a Action) models.AuthState {
	switch a := a.(type) {
	case SetCredentials:
		role := a.Role
		if role == "" && a.User != nil {
			role = a.User.Role
		}
		if role == "" {
			role = models.RoleUser
		}
		return models.AuthState{
			User:            cloneUser(a.User),
			Token:           a.Token,
			IsAuthenticated: a.Token != "",
			UserRole:        role,
		}
	case ClearCredentials:
		return models.AuthState{}
	case SetUser:
		if a.User == nil {
			return s
		}
		s.User = cloneUser(a.User)
		if a.User.Role != "" {
			s.UserRole = a.User.Role
		}
		return s
	}
	return s
}

func reduceFilters(s models.EventFilters, a Action) models.EventFilters {
	switch a := a.(type) {
	case SetFilters:
		return models.EventFilters{
			Category:     strings.TrimSpace(a.Filters.Category),
			Date:         strings.TrimSpace(a.Filters.Date),
			Location:     strings.TrimSpace(a.Filters.Location),
			UpcomingOnly: a.Filters.UpcomingOnly,
		}
	case SetLocationFilter:
		s.Location = strings.TrimSpace(a.Location)
		return s
	case ClearFilters:
		return models.EventFilters{}
	}
	return s
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
