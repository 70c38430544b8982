package devserver

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"ticketkenya/internal/models"
)

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if strings.TrimSpace(req.Firstname) == "" || strings.TrimSpace(req.Lastname) == "" {
		writeError(w, http.StatusBadRequest, "first and last name are required")
		return
	}
	if _, err := s.db.UserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "User already exists")
		return
	} else if !isNoRows(err) {
		s.internal(w, "lookup user", err)
		return
	}

	now := time.Now()
	u := &models.User{
		Firstname:    strings.TrimSpace(req.Firstname),
		Lastname:     strings.TrimSpace(req.Lastname),
		Email:        req.Email,
		ContactPhone: req.ContactPhone,
		Address:      req.Address,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateUser(r.Context(), u, req.Password); err != nil {
		s.internal(w, "create user", err)
		return
	}
	s.logger.LogSecurity("REGISTER", fmt.Sprintf("user %d registered", u.UserID))
	writeJSON(w, http.StatusCreated, models.AuthResponse{User: u, Message: "User registered successfully"})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := s.db.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if isNoRows(err) {
			s.logger.LogSecurity("LOGIN_FAILED", req.Email)
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.internal(w, "authenticate", err)
		return
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		s.internal(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{User: u, Token: token, Role: u.Role, Message: "Login successful"})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	u, err := s.db.UserByID(r.Context(), ClaimsFrom(r.Context()).UserID())
	if s.fail(w, "user", err) {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.Users(r.Context())
	if s.fail(w, "users", err) {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if !owns(r.Context(), id) {
		writeError(w, http.StatusForbidden, "you can only view your own profile")
		return
	}
	u, err := s.db.UserByID(r.Context(), id)
	if s.fail(w, "user", err) {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	if !owns(ctx, id) {
		writeError(w, http.StatusForbidden, "you can only edit your own profile")
		return
	}
	var patch models.UserUpdate
	if !decode(w, r, &patch) {
		return
	}
	u, err := s.db.UserByID(ctx, id)
	if s.fail(w, "user", err) {
		return
	}
	if patch.Role != nil && *patch.Role != u.Role {
		if ClaimsFrom(ctx).Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "only admins can change roles")
			return
		}
		if *patch.Role != models.RoleAdmin && *patch.Role != models.RoleUser {
			writeError(w, http.StatusBadRequest, "role must be user or admin")
			return
		}
		u.Role = *patch.Role
		s.logger.LogSecurity("ROLE_CHANGE", fmt.Sprintf("user %d is now %s", id, u.Role))
	}
	setString(&u.Firstname, patch.Firstname)
	setString(&u.Lastname, patch.Lastname)
	setString(&u.Email, patch.Email)
	setString(&u.ContactPhone, patch.ContactPhone)
	setString(&u.Address, patch.Address)
	setString(&u.ProfileURL, patch.ProfileURL)
	u.UpdatedAt = time.Now()

	if err := s.db.UpdateUser(ctx, u); err != nil {
		s.internal(w, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if ClaimsFrom(r.Context()).UserID() == id {
		writeError(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}
	if s.fail(w, "user", s.db.DeleteUser(r.Context(), id)) {
		return
	}
	writeMessage(w, "User deleted successfully")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// fail writes 404 for missing rows and 500 otherwise. It reports whether
// err was non-nil.
func (s *Server) fail(w http.ResponseWriter, what string, err error) bool {
	switch {
	case err == nil:
		return false
	case isNoRows(err):
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", what))
	default:
		s.internal(w, what, err)
	}
	return true
}

func (s *Server) internal(w http.ResponseWriter, what string, err error) {
	s.logger.Error("DATABASE", fmt.Sprintf("%s: %v", what, err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// nonNil makes empty lists encode as [] instead of null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
