package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Duration is shown as the backend sent it. Backends send either a number
// or free text such as "3 months".
type Duration string

func (d Duration) String() string { return string(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*d = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode duration: %w", err)
		}
		*d = Duration(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decode duration: %w", err)
		}
		*d = Duration(n)
	}
	return nil
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Task times are kept as the backend sends them; views format them.
type Task struct {
	ID          int64    `json:"id"`
	ProjectID   int64    `json:"project_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Duration    Duration `json:"duration"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
}

// Project is shared by the admin and user listings; admin listings carry
// Users, user listings carry Tasks.
type Project struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	StartDate string   `json:"start_date"`
	Duration  Duration `json:"duration"`
	Users     []User   `json:"users"`
	Tasks     []Task   `json:"tasks"`
}

type AssignedTask struct {
	Name          string `json:"task_name,omitempty"`
	TaskStartTime string `json:"task_start_time"`
	TaskEndTime   string `json:"task_end_time"`
}

type UserProjectTasks struct {
	ProjectName string         `json:"project_name"`
	Tasks       []AssignedTask `json:"tasks"`
}

type SignInResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type NewTask struct {
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}
