package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/infra/logging"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller authenticated by Auth, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey{}).(*model.Principal)
	return p
}

func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return strings.TrimSpace(hdr[7:])
	}
	return ""
}

// Auth resolves the bearer token into a principal. The user id comes from the identity
// provider only, never from the request path or body.
func Auth(verifier adapter.IdentityVerifier, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			p, err := verifier.Verify(r.Context(), tok)
			if err != nil {
				logging.With(r.Context(), logger).Debug().Err(err).Msg("authentication failed")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := logging.WithUserID(withPrincipal(r.Context(), p), p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := PrincipalFrom(r.Context()); p == nil || !p.IsAdmin {
				writeError(w, http.StatusForbidden, "admin only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
