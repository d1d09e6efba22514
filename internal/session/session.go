package session

import (
	"errors"
	"strings"
)

var ErrIncompleteSession = errors.New("token and role are both required")

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// Session is the token/role pair of one browser. The zero value is the
// unauthenticated session; a non-zero value always carries both fields.
type Session struct {
	token string
	role  Role
}

// SignIn is the only way to build an authenticated session.
func SignIn(token string, role Role) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrIncompleteSession
	}
	if _, ok := ParseRole(string(role)); !ok {
		return Session{}, ErrIncompleteSession
	}
	return Session{token: token, role: role}, nil
}

func (s Session) SignOut() Session {
	return Session{}
}

func (s Session) Authenticated() bool {
	return s.token != ""
}

func (s Session) Token() string {
	return s.token
}

func (s Session) Role() Role {
	if !s.Authenticated() {
		return ""
	}
	return s.role
}

func (s Session) Is(role Role) bool {
	return s.Authenticated() && s.role == role
}

// record is the persisted shape shared by every store.
type record struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

func (s Session) record() record {
	return record{Token: s.token, Role: string(s.role)}
}

// fromRecord rebuilds a session; anything other than a full pair reads back
// as unauthenticated.
func fromRecord(r record) Session {
	role, ok := ParseRole(r.Role)
	if !ok {
		return Session{}
	}
	s, err := SignIn(r.Token, role)
	if err != nil {
		return Session{}
	}
	return s
}
