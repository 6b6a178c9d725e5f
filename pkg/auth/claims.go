package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Phone  string
	Name   string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients. The role claim
// is informational; middleware re-reads the stored role on every request.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Phone  string     `json:"phone"`
	Name   string     `json:"name"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}
