package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goSession/session"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [RequireSession].
func IdentityFromContext(ctx context.Context) (*session.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*session.Identity)
	return id, ok && id != nil
}

// RequireSession serves next only when view has an identity.
//
// While the session is resolving it answers 503 with Retry-After so the
// caller can show a loading state. Anonymous requests are redirected with 303
// to loginPath, carrying the original path in a "next" query parameter.
func RequireSession(view session.View, loginPath string) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if view == nil {
				redirectToLogin(w, r, loginPath)
				return
			}

			switch view.Phase() {
			case session.PhaseResolving:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session resolving", http.StatusServiceUnavailable)
				return
			case session.PhaseAnonymous:
				redirectToLogin(w, r, loginPath)
				return
			}

			id := view.CurrentIdentity()
			if id == nil {
				redirectToLogin(w, r, loginPath)
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	target := loginPath
	if r.URL.Path != "" && r.URL.Path != loginPath {
		target += "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
