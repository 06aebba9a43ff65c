package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  int64
	Role    enums.UserRole
	StoreID *int64
	JTI     string
}

// AccessTokenClaims represents the typed JWT presented by clients.
type AccessTokenClaims struct {
	UserID  int64          `json:"user_id"`
	Role    enums.UserRole `json:"role"`
	StoreID *int64         `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}
