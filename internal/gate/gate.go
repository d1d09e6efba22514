// Package gate decides which view a route may show for a given session.
// It is a convenience for the browser only; the backend authorizes every
// API call on its own.
package gate

import "projectdesk/console/internal/session"

type State int

const (
	Unauthenticated State = iota
	AuthenticatedAdmin
	AuthenticatedUser
)

func (s State) String() string {
	switch s {
	case AuthenticatedAdmin:
		return "authenticated_admin"
	case AuthenticatedUser:
		return "authenticated_user"
	default:
		return "unauthenticated"
	}
}

func StateOf(s session.Session) State {
	switch {
	case s.Is(session.RoleAdmin):
		return AuthenticatedAdmin
	case s.Is(session.RoleUser):
		return AuthenticatedUser
	default:
		return Unauthenticated
	}
}

type View string

const (
	ViewNone     View = ""
	ViewLogin    View = "login"
	ViewAdmin    View = "admin"
	ViewUser     View = "user"
	ViewNotFound View = "not_found"
)

const (
	RouteRoot  = "/"
	RouteLogin = "/login"
	RouteAdmin = "/admin"
	RouteUser  = "/user"
)

// Decision is either a view to render or a path to redirect to.
type Decision struct {
	View     View
	Redirect string
}

func (d Decision) IsRedirect() bool {
	return d.Redirect != ""
}

func show(v View) Decision       { return Decision{View: v} }
func redirect(p string) Decision { return Decision{Redirect: p} }

var table = map[string][3]Decision{
	RouteRoot:  {redirect(RouteLogin), redirect(RouteAdmin), redirect(RouteUser)},
	RouteLogin: {show(ViewLogin), redirect(RouteAdmin), redirect(RouteUser)},
	RouteAdmin: {redirect(RouteLogin), show(ViewAdmin), redirect(RouteLogin)},
	RouteUser:  {redirect(RouteLogin), redirect(RouteLogin), show(ViewUser)},
}

func Resolve(route string, s session.Session) Decision {
	row, ok := table[route]
	if !ok {
		return show(ViewNotFound)
	}
	return row[StateOf(s)]
}

// Home is the landing path for a session, used right after sign in.
func Home(s session.Session) string {
	return Resolve(RouteRoot, s).Redirect
}
