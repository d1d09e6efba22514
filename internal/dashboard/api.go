// Package dashboard holds the per-browser view state of the console: the
// login flow, the admin assignment editor and the user task drafts.
package dashboard

import (
	"context"
	"errors"

	"projectdesk/console/internal/backend"
	"projectdesk/console/internal/session"
)

var (
	ErrUnknownProject = errors.New("unknown project")
	ErrUnknownField   = errors.New("unknown draft field")
	ErrDraftInvalid   = errors.New("task draft has field errors")
)

// ErrDraftIncomplete is reported alongside ErrDraftInvalid when a field is
// empty or the duration is not a number.
var ErrDraftIncomplete = errors.New("task draft has empty or malformed fields")

type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (backend.SignInResult, error)
}

type AdminAPI interface {
	ActiveProjects(ctx context.Context, token string) ([]backend.Project, error)
	Users(ctx context.Context, token string) ([]backend.User, error)
	UserProjectsAndTasks(ctx context.Context, token string, userID int64) ([]backend.UserProjectTasks, error)
	UpdateProjectUsers(ctx context.Context, token string, projectID int64, userIDs []int64) error
}

type UserAPI interface {
	Me(ctx context.Context, token string) (backend.User, error)
	MyProjects(ctx context.Context, token string) ([]backend.Project, error)
	CreateTask(ctx context.Context, token string, in backend.NewTask) (backend.Task, error)
}

// SessionSigner persists a successful login.
type SessionSigner interface {
	SignIn(ctx context.Context, clientID, token string, role session.Role) (session.Session, error)
}
