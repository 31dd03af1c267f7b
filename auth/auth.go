package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("invalid session token")

type sessionClaims struct {
	UserID uint `json:"userId"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens for local users. Peer
// banks never use these, their trust comes from envelope signatures.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    24 * time.Hour,
	}
}

func (s *Sessions) Issue(userID uint) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) Verify(token string) (uint, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrUnauthorized
	}

	return claims.UserID, nil
}

type ctxKey struct{}

// UserID returns the authenticated user id put in the context by Middleware.
func UserID(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(ctxKey{}).(uint)
	return id, ok
}

// Middleware rejects requests without a valid bearer session token.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing session token")
			return
		}

		userID, err := s.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid session token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
