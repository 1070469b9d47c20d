// Package router drives view transitions through a guard and hands the
// resulting view to a host renderer.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/sessionguard/guard"
	"github.com/MrEthical07/sessionguard/route"
	"github.com/sirupsen/logrus"
)

// DefaultMaxRedirects bounds how many guard redirects one Push follows.
const DefaultMaxRedirects = 5

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrRedirectLoop  = errors.New("too many redirects")
)

// View is what gets mounted: the matched route plus the concrete location.
type View struct {
	Name   string
	Route  route.Route
	Path   string
	Params map[string]string
}

// Renderer mounts a view in the host UI.
type Renderer interface {
	Mount(ctx context.Context, view View) error
}

type RendererFunc func(ctx context.Context, view View) error

func (f RendererFunc) Mount(ctx context.Context, view View) error {
	return f(ctx, view)
}

// Checker decides navigation. *guard.Guard implements it.
type Checker interface {
	Check(ctx context.Context, target route.Route) guard.Decision
}

type Options struct {
	MaxRedirects int
	Logger       logrus.FieldLogger
}

// Router performs one navigation at a time.
type Router struct {
	table        *route.Table
	checker      Checker
	renderer     Renderer
	maxRedirects int
	logger       logrus.FieldLogger

	mu      sync.Mutex
	current *View
}

func New(table *route.Table, checker Checker, renderer Renderer, opts Options) (*Router, error) {
	if table == nil || checker == nil || renderer == nil {
		return nil, errors.New("router: table, checker and renderer are required")
	}
	if opts.MaxRedirects < 0 {
		return nil, errors.New("router: max redirects must be >= 0")
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Router{
		table:        table,
		checker:      checker,
		renderer:     renderer,
		maxRedirects: opts.MaxRedirects,
		logger:       opts.Logger,
	}, nil
}

// Push navigates to location. Every redirect target is checked again, the
// way a before-each hook re-runs on redirect. The view finally allowed is
// mounted and becomes Current.
func (r *Router) Push(ctx context.Context, location string) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc := location
	for hops := 0; ; hops++ {
		if err := ctx.Err(); err != nil {
			return View{}, err
		}

		m, ok := r.table.Resolve(loc)
		if !ok {
			return View{}, fmt.Errorf("%w: %s", ErrRouteNotFound, loc)
		}

		d := r.checker.Check(ctx, m.Route)
		if d.Allowed() {
			view := View{Name: m.Route.View, Route: m.Route, Path: m.Path, Params: m.Params}
			if err := r.renderer.Mount(ctx, view); err != nil {
				return View{}, fmt.Errorf("mount %s: %w", view.Name, err)
			}
			r.current = &view
			r.logger.WithFields(logrus.Fields{"route": m.Route.Name, "path": m.Path}).Debug("view mounted")
			return view, nil
		}

		if hops >= r.maxRedirects {
			return View{}, fmt.Errorf("%w: %s after %d hops", ErrRedirectLoop, location, hops)
		}
		r.logger.WithFields(logrus.Fields{
			"from":   loc,
			"to":     d.Location,
			"reason": d.Reason,
		}).Debug("redirect")
		loc = d.Location
	}
}

// Current returns the mounted view, if any.
func (r *Router) Current() (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return View{}, false
	}
	return *r.current, true
}
