package store

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const jwtIssuer = "pairchat"

// JWTSessionStore issues and validates HS256 tokens. Stateless except
// for an in-process revocation set consulted until token expiry.
type JWTSessionStore struct {
	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // token -> expiry
}

// NewJWTSessionStore builds a JWT-backed session store.
func NewJWTSessionStore(secret string, ttl time.Duration) *JWTSessionStore {
	return &JWTSessionStore{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: make(map[string]time.Time),
	}
}

// NewSession signs a token carrying the user id as subject.
func (s *JWTSessionStore) NewSession(userID int64) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    jwtIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// GetUserIDByToken validates the token and returns its subject.
func (s *JWTSessionStore) GetUserIDByToken(token string) (int64, bool, error) {
	if s.isRevoked(token) {
		return 0, false, nil
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(jwtIssuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenMalformed) ||
			errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenInvalidIssuer) {
			return 0, false, nil
		}
		return 0, false, err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

// DeleteSession blocks the token until its natural expiry.
func (s *JWTSessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.revoked[token] = time.Now().UTC().Add(s.ttl)
	return nil
}

func (s *JWTSessionStore) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	_, ok := s.revoked[token]
	return ok
}

func (s *JWTSessionStore) pruneLocked() {
	now := time.Now().UTC()
	for tok, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, tok)
		}
	}
}
