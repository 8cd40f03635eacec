package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/pos-checkout/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Role   enums.OperatorRole
	JTI    string
}

// AccessTokenClaims represents the operator JWT presented to the checkout API.
type AccessTokenClaims struct {
	UserID int64              `json:"user_id"`
	Role   enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
