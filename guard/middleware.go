package guard

import (
	"context"
	"net/http"

	"github.com/MrEthical07/sessionguard/route"
)

type matchContextKey struct{}

// RouteFromContext returns the route resolved by Middleware.
func RouteFromContext(ctx context.Context) (route.Match, bool) {
	m, ok := ctx.Value(matchContextKey{}).(route.Match)
	return m, ok
}

// Middleware guards every request whose path resolves in table. Redirects are
// answered with 302 Found; paths unknown to the table pass through untouched.
func Middleware(g *Guard, table *route.Table) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m, ok := table.Resolve(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			d := g.Check(r.Context(), m.Route)
			if !d.Allowed() {
				http.Redirect(w, r, d.Location, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), matchContextKey{}, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
