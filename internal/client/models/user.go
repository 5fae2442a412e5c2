// Package models defines the directory's client-side data: users, student
// profiles, skills and the auth payloads exchanged with the backend.
package models

// User is the authenticated account snapshot kept in the identity store.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenPair is the JWT pair issued on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// LoginRequest is the body of POST /accounts/login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /accounts/login/.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RegisterRequest is the body of POST /accounts/register/.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Nama      string `json:"nama,omitempty"`
	NIM       string `json:"nim,omitempty"`
	Prodi     string `json:"prodi,omitempty"`
}

// RefreshRequest is the body of POST /accounts/token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries a new access token and, when the backend rotates
// refresh tokens, a new refresh token.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// AdminCheck is returned by GET /accounts/admin/check/.
type AdminCheck struct {
	IsAdmin bool `json:"is_admin"`
}
