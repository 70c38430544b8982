package models

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Firstname    string `json:"firstname"`
	Lastname     string `json:"lastname"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ContactPhone string `json:"contactPhone,omitempty"`
	Address      string `json:"address,omitempty"`
}

// AuthResponse is the body of auth/login and auth/register. Older backend
// builds report the role as userType, newer ones as role.
type AuthResponse struct {
	User     *User  `json:"user,omitempty"`
	Token    string `json:"token,omitempty"`
	Message  string `json:"message,omitempty"`
	UserType Role   `json:"userType,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// ResolvedRole picks the first role the backend reported.
func (r *AuthResponse) ResolvedRole() Role {
	switch {
	case r == nil:
		return ""
	case r.UserType != "":
		return r.UserType
	case r.Role != "":
		return r.Role
	case r.User != nil && r.User.Role != "":
		return r.User.Role
	}
	return RoleUser
}

// AuthState is the auth slice of the application store.
type AuthState struct {
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	UserRole        Role   `json:"userRole"`
}

func (a AuthState) IsAdmin() bool {
	return a.User != nil && a.UserRole == RoleAdmin
}

// MessageResponse is the generic {message} body.
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadResult is the subset of an image upload response the client reads.
type UploadResult struct {
	URL       string `json:"url,omitempty"`
	SecureURL string `json:"secure_url,omitempty"`
	PublicID  string `json:"public_id,omitempty"`
}

func (u *UploadResult) Location() string {
	if u == nil {
		return ""
	}
	if u.SecureURL != "" {
		return u.SecureURL
	}
	return u.URL
}
