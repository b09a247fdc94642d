// Package guard decides whether a route may be entered with the current
// session, before anything behind the route is built.
package guard

import (
	"net/url"
	"path"
	"strings"

	"github.com/ajramos/kyra/pkg/auth"
)

// Class is how a route is treated by the guard
type Class int

const (
	// Public routes are always allowed
	Public Class = iota
	// AuthOnly routes are the login flow; signed-in users are sent away
	AuthOnly
	// Protected routes need a session token
	Protected
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case AuthOnly:
		return "auth"
	case Protected:
		return "protected"
	default:
		return "unknown"
	}
}

const (
	// DefaultLoginPath is where unauthenticated users are sent
	DefaultLoginPath = "/auth/login"
	// DefaultLandingPath is where authenticated users land
	DefaultLandingPath = "/app/dashboard"
	// ReturnParam carries the originally requested path to the login page
	ReturnParam = "from"
)

var (
	authPrefixes      = []string{"/auth"}
	protectedPrefixes = []string{"/app", "/mail", "/chat", "/timeline"}
)

// Decision is the outcome for one route
type Decision struct {
	Class Class
	// Redirect is empty when the route is allowed
	Redirect string
}

// Allowed reports whether the route may be entered
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Guard reads the session at decision time, so a logout caused by a 401 is
// reflected on the next check.
type Guard struct {
	session     auth.SessionReader
	loginPath   string
	landingPath string
}

// New creates a guard with the default login and landing paths
func New(session auth.SessionReader) *Guard {
	return &Guard{
		session:     session,
		loginPath:   DefaultLoginPath,
		landingPath: DefaultLandingPath,
	}
}

// SetPaths overrides the login and landing paths; empty values keep the current ones
func (g *Guard) SetPaths(loginPath, landingPath string) {
	if loginPath != "" {
		g.loginPath = loginPath
	}
	if landingPath != "" {
		g.landingPath = landingPath
	}
}

// Classify returns the class of a route. Query strings are ignored.
func Classify(route string) Class {
	p := routePath(route)
	switch {
	case hasSegmentPrefix(p, authPrefixes):
		return AuthOnly
	case hasSegmentPrefix(p, protectedPrefixes):
		return Protected
	default:
		return Public
	}
}

// Decide returns whether route may be entered, or where to go instead
func (g *Guard) Decide(route string) Decision {
	class := Classify(route)
	authenticated := g.session != nil && g.session.Snapshot().Authenticated

	switch {
	case class == Protected && !authenticated:
		q := url.Values{ReturnParam: {routePath(route)}}
		return Decision{Class: class, Redirect: g.loginPath + "?" + q.Encode()}
	case class == AuthOnly && authenticated:
		return Decision{Class: class, Redirect: g.landingPath}
	default:
		return Decision{Class: class}
	}
}

// ReturnTarget extracts the originally requested path from a login redirect.
// Anything that is not a local absolute path yields the landing path.
func ReturnTarget(redirect string) string {
	u, err := url.Parse(redirect)
	if err != nil {
		return DefaultLandingPath
	}
	from := u.Query().Get(ReturnParam)
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return DefaultLandingPath
	}
	return from
}

func routePath(route string) string {
	p := route
	if u, err := url.Parse(route); err == nil {
		p = u.Path
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func hasSegmentPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
