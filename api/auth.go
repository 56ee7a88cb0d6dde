package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/frontdesk/cashdesk"
)

// =============================================================================
// AUTH - Bearer JWT issued for a staff member
// =============================================================================
// The identity provider is external. The service only verifies tokens signed
// with the shared secret: sub is the staff id, role is staff or manager.

var ErrInvalidToken = errors.New("invalid token")

// AuthConfig holds the token signing settings.
type AuthConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims are the JWT claims carried by every request.
type Claims struct {
	Name string        `json:"name,omitempty"`
	Role cashdesk.Role `json:"role"`
	jwt.RegisteredClaims
}

// StaffID returns the subject as a staff id.
func (c *Claims) StaffID() cashdesk.StaffID {
	return cashdesk.StaffID(c.Subject)
}

func (c *Claims) IsManager() bool { return c.Role == cashdesk.RoleManager }

// IssueToken signs an access token for s.
func IssueToken(cfg AuthConfig, s cashdesk.Staff) (string, error) {
	now := time.Now()
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	claims := Claims{
		Name: s.Name,
		Role: s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(s.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken verifies a signed token and returns its claims.
func ParseToken(cfg AuthConfig, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type claimsKey struct{}

// AuthRequired validates the bearer token and stores the claims on the
// request context.
func AuthRequired(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header", nil)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization format", nil)
				return
			}
			claims, err := ParseToken(cfg, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token", nil)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose role is not in allowed.
// Must be mounted after AuthRequired.
func RequireRole(allowed ...cashdesk.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			for _, a := range allowed {
				if claims.Role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeErrorCode(w, http.StatusForbidden, "forbidden", "operation requires a manager", nil)
		})
	}
}

// ClaimsFrom returns the authenticated claims, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
