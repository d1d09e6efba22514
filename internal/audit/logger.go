package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Action string

const (
	ActionLogin        Action = "session.login"
	ActionLogout       Action = "session.logout"
	ActionAssignUsers  Action = "project.assign_users"
	ActionCreateTask   Action = "task.create"
	ActionPruneSession Action = "session.prune"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failed"
)

// Event is one line of the audit log. Actor is the email or user name the
// console knows for the client; it is empty for anonymous attempts.
type Event struct {
	At        string `json:"at"`
	ClientID  string `json:"client_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Role      string `json:"role,omitempty"`
	Action    Action `json:"action"`
	Target    string `json:"target,omitempty"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// Logger appends events as JSON lines. A nil Logger or one without a path
// discards everything.
type Logger struct {
	path    string
	nowFunc func() time.Time
	mu      sync.Mutex
}

func NewLogger(path string) *Logger {
	return &Logger{path: path, nowFunc: time.Now}
}

func (l *Logger) Record(e Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	if e.At == "" {
		e.At = l.nowFunc().UTC().Format(time.RFC3339)
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	return nil
}
