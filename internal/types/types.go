// Package types defines core data structures for the wpgraph relation engine.
package types

import (
	"fmt"
	"time"
)

// DateLayout is the storage and display format for whole-day dates.
const DateLayout = "2006-01-02"

// WorkItem represents a trackable work package
type WorkItem struct {
	ID        int64      `json:"id"`
	Subject   string     `json:"subject"`
	ProjectID string     `json:"project_id"`
	TypeID    string     `json:"type_id"`
	StatusID  string     `json:"status_id"`
	StartDate *time.Time `json:"start_date,omitempty"` // Whole day, UTC midnight
	DueDate   *time.Time `json:"due_date,omitempty"`   // Whole day, UTC midnight
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate checks if the work item has valid field values
func (w *WorkItem) Validate() error {
	if len(w.Subject) == 0 {
		return fmt.Errorf("subject is required")
	}
	if len(w.Subject) > 255 {
		return fmt.Errorf("subject must be 255 characters or less (got %d)", len(w.Subject))
	}
	if w.StatusID == "" {
		return fmt.Errorf("status is required")
	}
	if w.StartDate != nil && w.DueDate != nil && w.DueDate.Before(*w.StartDate) {
		return fmt.Errorf("due date %s is before start date %s",
			w.DueDate.Format(DateLayout), w.StartDate.Format(DateLayout))
	}
	return nil
}

// SetDefaults fills in the type and project when they were omitted.
func (w *WorkItem) SetDefaults() {
	if w.TypeID == "" {
		w.TypeID = DefaultType
	}
	if w.ProjectID == "" {
		w.ProjectID = DefaultProject
	}
}

// Duration returns the number of whole days between start and due date.
// Items missing either date have a duration of zero.
func (w *WorkItem) Duration() int {
	if w.StartDate == nil || w.DueDate == nil {
		return 0
	}
	return int(w.DueDate.Sub(*w.StartDate).Hours() / 24)
}

// EndDate is the date successors are scheduled against: the due date,
// or the start date when the item has no due date.
func (w *WorkItem) EndDate() *time.Time {
	if w.DueDate != nil {
		return w.DueDate
	}
	return w.StartDate
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (w *WorkItem) Clone() *WorkItem {
	c := *w
	if w.StartDate != nil {
		d := *w.StartDate
		c.StartDate = &d
	}
	if w.DueDate != nil {
		d := *w.DueDate
		c.DueDate = &d
	}
	return &c
}

const (
	DefaultType    = "task"
	DefaultProject = "default"
)

// Status is a workflow state shared by many work items.
// Statuses are immutable once referenced.
type Status struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsClosed  bool   `json:"is_closed"`
	IsDefault bool   `json:"is_default,omitempty"`
	Position  int    `json:"position"`
}

// Well-known status ids seeded into every new store
const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusClosed     = "closed"
	StatusRejected   = "rejected"
)

// DefaultStatuses returns the statuses seeded into an empty store.
func DefaultStatuses() []*Status {
	return []*Status{
		{ID: StatusNew, Name: "New", IsDefault: true, Position: 1},
		{ID: StatusInProgress, Name: "In progress", Position: 2},
		{ID: StatusOnHold, Name: "On hold", Position: 3},
		{ID: StatusClosed, Name: "Closed", IsClosed: true, Position: 4},
		{ID: StatusRejected, Name: "Rejected", IsClosed: true, Position: 5},
	}
}

// Actor identifies who performs a mutation and in which role.
type Actor struct {
	Name         string            `json:"name"`
	Role         string            `json:"role"`
	ProjectRoles map[string]string `json:"project_roles,omitempty"`
}

// RoleIn returns the actor's role in the given project, falling back to
// the default role when the actor has no membership there.
func (a Actor) RoleIn(projectID string) string {
	if r, ok := a.ProjectRoles[projectID]; ok && r != "" {
		return r
	}
	return a.Role
}

func (a Actor) String() string {
	if a.Name == "" {
		return "unknown"
	}
	return a.Name
}

// Event represents an audit trail entry
type Event struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	CascadeID string    `json:"cascade_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

// Event type constants for audit trail
const (
	EventCreated            EventType = "created"
	EventStatusChanged      EventType = "status_changed"
	EventDatesChanged       EventType = "dates_changed"
	EventRelationAdded      EventType = "relation_added"
	EventRelationRemoved    EventType = "relation_removed"
	EventClosedAsDuplicate  EventType = "closed_as_duplicate"
	EventRescheduled        EventType = "rescheduled"
	EventPropagationSkipped EventType = "propagation_skipped"
)

// BlockedItem extends WorkItem with the open items blocking it
type BlockedItem struct {
	WorkItem
	BlockedByCount int     `json:"blocked_by_count"`
	BlockedBy      []int64 `json:"blocked_by"`
}

// FormatDate renders an optional date, empty when nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
