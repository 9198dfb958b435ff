package chat

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the local participant as encoded in the auth token.
type Identity struct {
	UserID string
	Phone  string
	Name   string
}

// Participant returns the identifier used for conversation addressing.
func (i Identity) Participant() string {
	if i.UserID != "" {
		return i.UserID
	}
	return i.Phone
}

// IdentityFromToken decodes the bearer token's payload without verifying the
// signature: the server is the verifier, the client only needs to learn who
// it is acting as.
func IdentityFromToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	id := Identity{
		UserID: stringClaim(claims, "id", "_id", "userId", "sub"),
		Phone:  stringClaim(claims, "phone"),
		Name:   stringClaim(claims, "name"),
	}
	if id.UserID == "" && id.Phone == "" {
		return Identity{}, errors.New("token carries no user identity")
	}
	return id, nil
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}
