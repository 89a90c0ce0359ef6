package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned by [Decode] when a token cannot be parsed structurally.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the identity and expiry view of an access token payload.
type Claims struct {
	SubjectID   string
	DisplayName string
	FullName    string
	Email       string
	ExpiresAt   int64
}

// Expired reports whether exp is strictly before now (one-second precision).
func (c *Claims) Expired(now time.Time) bool {
	if c == nil {
		return true
	}
	return c.ExpiresAt < now.Unix()
}

type payloadClaims struct {
	UserID   subjectID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	FullName string    `json:"full_name,omitempty"`
	Email    string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// subjectID accepts both string and numeric user_id claims.
type subjectID string

func (s *subjectID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = subjectID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*s = subjectID(num.String())
	return nil
}

var unverifiedParser = jwt.NewParser()

// Decode parses the payload of tokenStr without verifying its signature.
//
// The token must have three dot-separated segments and a base64url JSON
// payload with an exp claim. The header and signature are not inspected. Any
// other shape fails with [ErrMalformedToken].
func Decode(tokenStr string) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	raw, err := unverifiedParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	var payload payloadClaims
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	if payload.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}

	claims := &Claims{
		SubjectID:   string(payload.UserID),
		DisplayName: payload.Username,
		FullName:    payload.FullName,
		Email:       payload.Email,
		ExpiresAt:   payload.ExpiresAt.Unix(),
	}
	if claims.SubjectID == "" {
		claims.SubjectID = payload.Subject
	}
	if claims.DisplayName == "" {
		claims.DisplayName = payload.FullName
	}

	return claims, nil
}

// IsExpired reports whether tokenStr should be renewed before use at now.
// Tokens that fail to decode count as expired.
func IsExpired(tokenStr string, now time.Time) bool {
	claims, err := Decode(tokenStr)
	if err != nil {
		return true
	}
	return claims.Expired(now)
}
