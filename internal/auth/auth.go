// Package auth verifies bearer tokens and guards routes by role.
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

// Role is the access level carried in a token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleAnalyst || r == RoleViewer
}

// Claims are the JWT claims issued to back office users.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

var (
	ErrMissingToken = errors.New("authorization token not provided")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrForbidden    = errors.New("insufficient role")
)

type contextKey struct{}

// Authenticator issues and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New creates an Authenticator. The secret must not be empty.
func New(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for subject with the given role and lifetime.
func (a *Authenticator) Issue(subject string, role Role, ttl time.Duration) (string, error) {
	if !role.IsValid() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it carries.
func (a *Authenticator) Verify(tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if !claims.Role.IsValid() || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		identity, err := a.Verify(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole allows only callers holding one of roles. It must run after
// Middleware.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, ErrForbidden)
		})
	}
}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
