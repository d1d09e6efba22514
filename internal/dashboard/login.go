package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"projectdesk/console/internal/session"
)

const (
	InvalidCredentialsMessage = "Invalid credentials. Please try again."
	MissingCredentialsMessage = "Email and password are required."
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type LoginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type Authenticator struct {
	api      AuthAPI
	sessions SessionSigner
	validate *validator.Validate
	log      *slog.Logger
}

func NewAuthenticator(api AuthAPI, sessions SessionSigner, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{api: api, sessions: sessions, validate: validator.New(), log: logger}
}

// Login signs the client in. Every backend failure, including a role the
// console has no dashboard for, is reported as ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, clientID string, form LoginForm) (session.Session, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := a.validate.Struct(form); err != nil {
		return session.Session{}, ErrMissingCredentials
	}

	res, err := a.api.SignIn(ctx, form.Email, form.Password)
	if err != nil {
		a.log.Info("sign in rejected", "email", form.Email, "error", err)
		return session.Session{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	role, ok := session.ParseRole(res.User.Role)
	if !ok {
		a.log.Warn("sign in returned unsupported role", "email", form.Email, "role", res.User.Role)
		return session.Session{}, fmt.Errorf("%w: unsupported role %q", ErrInvalidCredentials, res.User.Role)
	}

	s, err := a.sessions.SignIn(ctx, clientID, res.Token, role)
	if err != nil {
		return session.Session{}, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

// LoginMessage maps a Login error to the text shown on the login page.
func LoginMessage(err error) string {
	if errors.Is(err, ErrMissingCredentials) {
		return MissingCredentialsMessage
	}
	return InvalidCredentialsMessage
}
