package navigation

import (
	"path"
	"strings"

	"github.com/jrsteele09/go-auth-client/sessions"
)

// Guard decides whether a path may be shown for a session, and where to go
// instead when it may not.
type Guard struct {
	loginPath    string
	registerPath string
	landingPath  string
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

func WithLoginPath(p string) GuardOption {
	return func(g *Guard) {
		if p != "" {
			g.loginPath = Clean(p)
		}
	}
}

func WithRegisterPath(p string) GuardOption {
	return func(g *Guard) {
		if p != "" {
			g.registerPath = Clean(p)
		}
	}
}

// WithLandingPath sets where authenticated users are sent from the login page.
func WithLandingPath(p string) GuardOption {
	return func(g *Guard) {
		if p != "" {
			g.landingPath = Clean(p)
		}
	}
}

func NewGuard(options ...GuardOption) *Guard {
	g := &Guard{
		loginPath:    RouteLogin,
		registerPath: RouteRegister,
		landingPath:  RouteDashboard,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *Guard) LoginPath() string {
	return g.loginPath
}

func (g *Guard) LandingPath() string {
	return g.landingPath
}

// IsPublic reports whether p is reachable without a session.
func (g *Guard) IsPublic(p string) bool {
	p = Clean(p)
	return p == g.loginPath || p == g.registerPath
}

// IsPathAllowed reports whether p may be shown as is for snap.
func (g *Guard) IsPathAllowed(p string, snap sessions.Snapshot) bool {
	_, redirect := g.Redirect(p, snap)
	return !redirect
}

// Redirect returns the path to navigate to instead of p, if any. Unauthenticated
// sessions are sent to login from every protected path; authenticated sessions
// are sent to the landing page from login and from the root.
func (g *Guard) Redirect(p string, snap sessions.Snapshot) (string, bool) {
	p = Clean(p)

	if !snap.IsAuthenticated() {
		if g.IsPublic(p) {
			return "", false
		}
		return g.loginPath, true
	}

	if p == g.loginPath || p == RouteRoot {
		return g.landingPath, true
	}
	return "", false
}

// Clean strips any query or fragment and normalises p to a rooted path without a
// trailing slash.
func Clean(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return RouteRoot
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
