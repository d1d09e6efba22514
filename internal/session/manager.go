package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies session transitions for a client id and writes each
// result through to the store before returning it.
type Manager struct {
	store   Store
	log     *slog.Logger
	nowFunc func() time.Time
}

func NewManager(store Store, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, log: logger, nowFunc: time.Now}, nil
}

// Current rehydrates the stored session. Missing, partial and expired
// records all come back as the unauthenticated session.
func (m *Manager) Current(ctx context.Context, clientID string) (Session, error) {
	if clientID == "" {
		return Session{}, nil
	}
	s, err := m.store.Load(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if s.Authenticated() && m.expired(s) {
		if err := m.store.Delete(ctx, clientID); err != nil {
			m.log.Warn("drop expired session failed", "error", err)
		}
		return Session{}, nil
	}
	return s, nil
}

func (m *Manager) SignIn(ctx context.Context, clientID, token string, role Role) (Session, error) {
	if clientID == "" {
		return Session{}, fmt.Errorf("client id is required")
	}
	s, err := SignIn(token, role)
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Save(ctx, clientID, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (m *Manager) SignOut(ctx context.Context, clientID string, s Session) (Session, error) {
	if clientID != "" {
		if err := m.store.Delete(ctx, clientID); err != nil {
			return s, fmt.Errorf("delete session: %w", err)
		}
	}
	return s.SignOut(), nil
}

// Prune deletes every stored session whose token has expired and returns
// the affected client ids.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	all, err := m.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var pruned []string
	for id, s := range all {
		if s.Authenticated() && !m.expired(s) {
			continue
		}
		if err := m.store.Delete(ctx, id); err != nil {
			return pruned, fmt.Errorf("delete session: %w", err)
		}
		pruned = append(pruned, id)
	}
	return pruned, nil
}

func (m *Manager) expired(s Session) bool {
	exp, ok := TokenExpiry(s.Token())
	if !ok {
		return false
	}
	return !m.nowFunc().Before(exp)
}
