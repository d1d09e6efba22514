package dashboard

import (
	"context"
	"errors"

	"projectdesk/console/internal/backend"
	"projectdesk/console/internal/session"
)

type fakeAuthAPI struct {
	signInFunc func(email, password string) (backend.SignInResult, error)
}

func (f fakeAuthAPI) SignIn(_ context.Context, email, password string) (backend.SignInResult, error) {
	if f.signInFunc == nil {
		return backend.SignInResult{}, errors.New("not implemented")
	}
	return f.signInFunc(email, password)
}

type fakeSigner struct {
	calls int
}

func (f *fakeSigner) SignIn(_ context.Context, _ string, token string, role session.Role) (session.Session, error) {
	f.calls++
	return session.SignIn(token, role)
}

type fakeAdminAPI struct {
	projectsFunc func() ([]backend.Project, error)
	usersFunc    func() ([]backend.User, error)
	detailsFunc  func(userID int64) ([]backend.UserProjectTasks, error)
	updateFunc   func(projectID int64, userIDs []int64) error
}

func (f fakeAdminAPI) ActiveProjects(context.Context, string) ([]backend.Project, error) {
	return f.projectsFunc()
}

func (f fakeAdminAPI) Users(context.Context, string) ([]backend.User, error) {
	return f.usersFunc()
}

func (f fakeAdminAPI) UserProjectsAndTasks(_ context.Context, _ string, userID int64) ([]backend.UserProjectTasks, error) {
	return f.detailsFunc(userID)
}

func (f fakeAdminAPI) UpdateProjectUsers(_ context.Context, _ string, projectID int64, userIDs []int64) error {
	return f.updateFunc(projectID, userIDs)
}

type fakeUserAPI struct {
	meFunc       func() (backend.User, error)
	projectsFunc func() ([]backend.Project, error)
	createFunc   func(in backend.NewTask) (backend.Task, error)
}

func (f fakeUserAPI) Me(context.Context, string) (backend.User, error) {
	return f.meFunc()
}

func (f fakeUserAPI) MyProjects(context.Context, string) ([]backend.Project, error) {
	return f.projectsFunc()
}

func (f fakeUserAPI) CreateTask(_ context.Context, _ string, in backend.NewTask) (backend.Task, error) {
	return f.createFunc(in)
}
