package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

var (
	// ErrInvalidRoute is returned by NewTable for descriptors that cannot be registered.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrDuplicateRoute is returned by NewTable when a name or path is registered twice.
	ErrDuplicateRoute = errors.New("duplicate route")
)

// Route describes one navigable view.
type Route struct {
	Path     string
	Name     string
	View     string
	Requires Requirements
}

// Match is the result of resolving a concrete path against a Table.
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
}

// Table is an immutable, ordered set of routes. Paths may contain gorilla/mux
// variables such as /projects/{id}.
type Table struct {
	routes []Route
	byName map[string]int
	router *mux.Router
}

// NewTable validates the descriptors and builds the matcher. Order matters:
// the first route whose path template matches wins.
func NewTable(routes ...Route) (*Table, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: table has no routes", ErrInvalidRoute)
	}

	t := &Table{
		routes: make([]Route, 0, len(routes)),
		byName: make(map[string]int, len(routes)),
		router: mux.NewRouter(),
	}
	paths := make(map[string]struct{}, len(routes))

	for _, r := range routes {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: route %q has no name", ErrInvalidRoute, r.Path)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("%w: route %q path %q must start with /", ErrInvalidRoute, r.Name, r.Path)
		}
		if r.View == "" {
			return nil, fmt.Errorf("%w: route %q has no view", ErrInvalidRoute, r.Name)
		}
		if r.Requires.Unknown() != 0 {
			return nil, fmt.Errorf("%w: route %q carries unknown requirement bits %08b", ErrInvalidRoute, r.Name, uint8(r.Requires.Unknown()))
		}
		if _, ok := t.byName[r.Name]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateRoute, r.Name)
		}
		if _, ok := paths[r.Path]; ok {
			return nil, fmt.Errorf("%w: path %q", ErrDuplicateRoute, r.Path)
		}

		mr := t.router.Path(r.Path).Name(r.Name)
		if err := mr.GetError(); err != nil {
			return nil, fmt.Errorf("%w: route %q: %w", ErrInvalidRoute, r.Name, err)
		}

		paths[r.Path] = struct{}{}
		t.byName[r.Name] = len(t.routes)
		t.routes = append(t.routes, r)
	}

	return t, nil
}

// Resolve finds the route for a location such as "/projects/12?tab=2".
// Query strings and fragments are ignored for matching.
func (t *Table) Resolve(location string) (Match, bool) {
	if t == nil {
		return Match{}, false
	}

	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		return Match{}, false
	}

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: u.Path}}
	var rm mux.RouteMatch
	if !t.router.Match(req, &rm) || rm.Route == nil {
		return Match{}, false
	}

	idx, ok := t.byName[rm.Route.GetName()]
	if !ok {
		return Match{}, false
	}

	return Match{
		Route:  t.routes[idx],
		Path:   u.Path,
		Params: rm.Vars,
	}, true
}

// ByName returns the route registered under name.
func (t *Table) ByName(name string) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	idx, ok := t.byName[name]
	if !ok {
		return Route{}, false
	}
	return t.routes[idx], true
}

// Routes returns a copy of the table in registration order.
func (t *Table) Routes() []Route {
	if t == nil {
		return nil
	}
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}
