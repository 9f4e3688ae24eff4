package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gym-membership/internal/infra/logging"
	"gym-membership/internal/usecase"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// Principal is the caller as asserted by the identity provider's token.
type Principal struct {
	UserID string
	Email  string
	Admin  bool
}

func (p *Principal) Actor() usecase.Actor {
	return usecase.Actor{UserID: p.UserID, Admin: p.Admin}
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Authenticator validates HS256 tokens minted by the identity provider. Sessions
// live there; this service only reads sub, the email claim and role.
type Authenticator struct {
	secret     []byte
	issuer     string
	adminRole  string
	emailClaim string
}

func NewAuthenticator(secret, issuer, adminRole, emailClaim string) *Authenticator {
	if adminRole == "" {
		adminRole = "admin"
	}
	if emailClaim == "" {
		emailClaim = "email"
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, adminRole: adminRole, emailClaim: emailClaim}
}

func (a *Authenticator) ParseFromRequest(r *http.Request) (*Principal, error) {
	hdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *Authenticator) parse(tok string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errInvalidToken
	}
	p := &Principal{UserID: sub}
	p.Email, _ = claims[a.emailClaim].(string)
	p.Admin = hasRole(claims["role"], a.adminRole)
	return p, nil
}

// hasRole accepts a single role string or a list of roles.
func hasRole(v any, role string) bool {
	switch rv := v.(type) {
	case string:
		return rv == role
	case []any:
		for _, x := range rv {
			if s, ok := x.(string); ok && s == role {
				return true
			}
		}
	}
	return false
}

// RequireMember rejects requests without a valid token.
func (a *Authenticator) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		ctx := logging.WithUserID(withPrincipal(r.Context(), p), p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin runs after RequireMember.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		if !p.Admin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Optional attaches the principal when a valid token is present and lets
// anonymous requests through.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := a.ParseFromRequest(r); err == nil {
			r = r.WithContext(withPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// CronGuard checks the shared scheduler secret. An empty secret disables the route.
func CronGuard(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "cron endpoint disabled"})
				return
			}
			hdr := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			got := strings.TrimSpace(hdr[7:])
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
