package auth

import "github.com/sensorgrid/devicehub-backend/internal/users"

// SignupRequest is the public self-registration payload.
type SignupRequest struct {
	Name  string
	Phone string
	Email *string
}

// LoginRequest completes an OTP login.
type LoginRequest struct {
	Phone string
	OTP   string
}

// ClientInfo is recorded for elevated logins.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResponse carries the issued credentials.
type LoginResponse struct {
	AccessToken  string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// TokenPair is returned from a refresh.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}
