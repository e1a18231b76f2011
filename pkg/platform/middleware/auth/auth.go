// Package auth authenticates agents from HS256 bearer tokens and enforces
// the role each route requires.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dgtt/pkg/requestcontext"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

var knownRoles = []requestcontext.Role{
	requestcontext.RoleSAF,
	requestcontext.RoleSEV,
	requestcontext.RoleSTIAS,
	requestcontext.RoleDGTT,
	requestcontext.RoleAdmin,
}

// Claims carried by agent tokens. Subject is the agent identifier.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator signs and verifies agent tokens.
type Validator struct {
	key    []byte
	issuer string
}

func NewValidator(signingKey, issuer string) *Validator {
	return &Validator{key: []byte(signingKey), issuer: issuer}
}

// Issue mints a token for an agent. Used by tooling and tests.
func (v *Validator) Issue(agentID string, role requestcontext.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns the principal it names.
func (v *Validator) Validate(token string) (requestcontext.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return requestcontext.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return requestcontext.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := requestcontext.Role(claims.Role)
	if !slices.Contains(knownRoles, role) {
		return requestcontext.Principal{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return requestcontext.Principal{ID: claims.Subject, Role: role}, nil
}

// TokenValidator is satisfied by *Validator.
type TokenValidator interface {
	Validate(token string) (requestcontext.Principal, error)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated principal as the request actor.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}
			principal, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, principal)))
		})
	}
}

// RequireRole allows the listed roles. ADMIN always passes.
func RequireRole(roles ...requestcontext.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := requestcontext.Actor(r.Context())
			if actor.Role != requestcontext.RoleAdmin && !slices.Contains(roles, actor.Role) {
				writeJSONError(w, http.StatusForbidden, "forbidden", "Role not permitted for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
