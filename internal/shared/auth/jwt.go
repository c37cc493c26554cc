package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "workforce-backend"

	audienceSession = "session"
	audienceFile    = "file"
	audienceVerify  = "verify-email"

	devSecret = "dev-secret"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims identify an authenticated user. The JSON names match the
// cookie/bearer tokens issued by earlier clients.
type SessionClaims struct {
	UserID    string `json:"userID"`
	CompanyID string `json:"companyId,omitempty"`
	jwt.RegisteredClaims
}

// FileClaims authorize a single object-store read for the local backend.
type FileClaims struct {
	Key      string `json:"key"`
	Filename string `json:"filename,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens for every token purpose.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner builds a Signer. An empty secret falls back to a development key
// unless production is true.
func NewSigner(secret string, ttl time.Duration, production bool) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if production {
			return nil, errors.New("jwt secret not configured: JWT_SECRET required in production")
		}
		secret = devSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of s that reads time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	out := *s
	out.now = now
	return &out
}

// TTL is the lifetime of session tokens.
func (s *Signer) TTL() time.Duration { return s.ttl }

// IssueSession signs a session token for the user.
func (s *Signer) IssueSession(userID, companyID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := SessionClaims{
		UserID:           userID,
		CompanyID:        companyID,
		RegisteredClaims: s.registered(userID, audienceSession, now, exp),
	}
	tok, err := s.sign(claims)
	return tok, exp, err
}

// VerifySession validates signature, audience and expiry of a session token.
func (s *Signer) VerifySession(token string) (SessionClaims, error) {
	var claims SessionClaims
	if err := s.parse(token, audienceSession, &claims); err != nil {
		return SessionClaims{}, err
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return SessionClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// IssueFileToken signs a short-lived read grant for a storage key.
func (s *Signer) IssueFileToken(key, filename string, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := FileClaims{
		Key:              key,
		Filename:         filename,
		RegisteredClaims: s.registered(key, audienceFile, now, exp),
	}
	tok, err := s.sign(claims)
	return tok, exp, err
}

// VerifyFileToken validates a read grant.
func (s *Signer) VerifyFileToken(token string) (FileClaims, error) {
	var claims FileClaims
	if err := s.parse(token, audienceFile, &claims); err != nil {
		return FileClaims{}, err
	}
	if claims.Key == "" {
		return FileClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// IssueVerification signs an e-mail verification token for the user.
func (s *Signer) IssueVerification(userID string, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	return s.sign(s.registered(userID, audienceVerify, now, now.Add(ttl)))
}

// VerifyVerification returns the user id carried by a verification token.
func (s *Signer) VerifyVerification(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := s.parse(token, audienceVerify, &claims); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *Signer) registered(subject, audience string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (s *Signer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Signer) parse(token, audience string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
