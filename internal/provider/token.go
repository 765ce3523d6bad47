package provider

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// MeetingToken mints a self-signed join token scoped to one room, signed
// with the provider API secret. This token, not the client-side guard, is
// the real access control for the room.
func (c *Client) MeetingToken(room, userName string, isOwner bool, ttl time.Duration) (string, error) {
	if c.cfg.APISecret == "" {
		return "", errors.New("provider API secret is not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"r":   room,
		"u":   userName,
		"o":   isOwner,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.cfg.APISecret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign meeting token")
	}
	return signed, nil
}
