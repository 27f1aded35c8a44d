package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the fixed validity window of a seller session token.
const SessionTTL = 7 * 24 * time.Hour

// SessionClaims is the identity carried by a session token.
type SessionClaims struct {
	SellerID int64
	Email    string
	IssuedAt time.Time
	Expires  time.Time
}

type sessionJWTClaims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionIssuer issues and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer builds an issuer. ttl <= 0 selects SessionTTL.
func NewSessionIssuer(secret []byte, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = SessionTTL
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &SessionIssuer{secret: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the token lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the seller.
func (s *SessionIssuer) Issue(sellerID int64, email string) (string, error) {
	if sellerID <= 0 {
		return "", errors.New("seller id required")
	}
	now := s.now().UTC()
	claims := sessionJWTClaims{
		UserID: sellerID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sellerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry. Any failure reports false.
func (s *SessionIssuer) Verify(token string) (SessionClaims, bool) {
	token = strings.TrimSpace(token)
	if s == nil || token == "" {
		return SessionClaims{}, false
	}
	claims := sessionJWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return SessionClaims{}, false
	}
	sellerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || sellerID <= 0 || sellerID != claims.UserID {
		return SessionClaims{}, false
	}
	out := SessionClaims{
		SellerID: sellerID,
		Email:    claims.Email,
		Expires:  claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, true
}
