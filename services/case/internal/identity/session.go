package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// Claims is the session token payload.
type Claims struct {
	UserID string     `json:"user_id"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewSessionIssuer creates a session issuer.
func NewSessionIssuer(secret, issuer string, ttl time.Duration, clk clock.Clock) *SessionIssuer {
	if clk == nil {
		clk = clock.System{}
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, clock: clk}
}

// Issue signs a token for user and returns it with its expiry.
func (s *SessionIssuer) Issue(user model.User) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns the user it was issued to.
func (s *SessionIssuer) Verify(tokenString string) (model.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return model.User{}, apperrors.Wrap(err, apperrors.CodeUnauthorized, "invalid or expired session")
	}
	if !token.Valid || !claims.Role.Valid() {
		return model.User{}, apperrors.Unauthorized("invalid session")
	}

	return model.User{ID: claims.UserID, Name: claims.Name, Role: claims.Role}, nil
}
