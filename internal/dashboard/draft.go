package dashboard

import (
	"strings"
	"time"
)

const (
	StartInPastMessage     = "Start time cannot be in the past."
	StartAfterEndMessage   = "Start time must be before end time."
	EndBeforeStartMessage  = "End time must be after start time."
	DraftIncompleteMessage = "All fields are required and duration must be a number."
)

const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldDuration    = "duration"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
)

// TaskDraft is the unsaved task form of one project. Values are kept as
// typed so the form can be re-rendered verbatim.
type TaskDraft struct {
	Name        string `validate:"required"`
	Description string `validate:"required"`
	Duration    string `validate:"required,numeric"`
	StartTime   string `validate:"required"`
	EndTime     string `validate:"required"`
}

func (t TaskDraft) with(field, value string) (TaskDraft, bool) {
	switch field {
	case FieldName:
		t.Name = value
	case FieldDescription:
		t.Description = value
	case FieldDuration:
		t.Duration = value
	case FieldStartTime:
		t.StartTime = value
	case FieldEndTime:
		t.EndTime = value
	default:
		return t, false
	}
	return t, true
}

type FieldErrors struct {
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

func (e FieldErrors) Any() bool {
	return e.StartTime != "" || e.EndTime != ""
}

// Drafts maps a project id to its draft; a missing entry is an empty draft.
type Drafts map[int64]TaskDraft

func (d Drafts) Get(projectID int64) TaskDraft {
	return d[projectID]
}

var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parseLocalTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateTimes checks the start/end pair of a draft at instant now.
// Unparseable or empty values are not reported here; the required check at
// submit covers them.
func ValidateTimes(d TaskDraft, now time.Time, loc *time.Location) FieldErrors {
	if loc == nil {
		loc = time.Local
	}
	start, hasStart := parseLocalTime(d.StartTime, loc)
	end, hasEnd := parseLocalTime(d.EndTime, loc)

	var fe FieldErrors
	switch {
	case hasStart && start.Before(now):
		fe.StartTime = StartInPastMessage
	case hasStart && hasEnd && !start.Before(end):
		fe.StartTime = StartAfterEndMessage
	}
	if hasStart && hasEnd && !end.After(start) {
		fe.EndTime = EndBeforeStartMessage
	}
	return fe
}

// FormatTime renders a backend or draft timestamp as "3:04 PM, Jan 2";
// values it cannot parse are returned unchanged.
func FormatTime(raw string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05 MST", "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), loc); err == nil {
			return t.In(loc).Format("3:04 PM, Jan 2")
		}
	}
	return raw
}
