package auth

import "net/http"

// RequireAuthenticated is a handler-level guard for routes that must never
// render without a user. The request gate normally redirects first; this
// catches routes mounted outside its protected prefixes.
//
//	r.With(auth.RequireAuthenticated(loginRedirect)).Get("/account", account)
//
// When onDenied is nil a plain 401 is written.
func RequireAuthenticated(onDenied http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsAuthenticated(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			if onDenied != nil {
				onDenied.ServeHTTP(w, r)
				return
			}
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		})
	}
}
