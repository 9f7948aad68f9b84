package utils // package utils provides helper functions for token creation

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are short-lived and encoded
// in the Authorization header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a community member.
// It takes the signing secret, the member name, the member's role
// (MEMBER or ADMIN), and a TTL in minutes.  The JWT includes standard
// claims: subject (sub), role, expiration (exp) and issued at (iat).
// Tokens are normally minted by the community's identity service; this
// helper exists for local operation and tests.
func NewAccessToken(secret, member, role string, ttlMin int) (AccessToken, error) {
	// Calculate the expiration time by adding the TTL to the current UTC time.
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  member,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	// Create a new token object specifying the signing method (HS256) and
	// include the claims.
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// Sign the token with the provided secret and obtain the string form.  If
	// signing fails, return the error and a zero AccessToken.
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
