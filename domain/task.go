package domain

import (
	"strings"
	"time"
)

// Column is a workflow stage label on a task. Columns form a flat set: any
// authorized move may target any column directly.
type Column string

const (
	ColumnTodo        Column = "todo"
	ColumnInProgress  Column = "in_progress"
	ColumnUnderReview Column = "under_review"
	ColumnCompleted   Column = "completed"
)

// Columns lists all columns in board display order.
var Columns = []Column{ColumnTodo, ColumnInProgress, ColumnUnderReview, ColumnCompleted}

var columnRank = map[Column]int{
	ColumnTodo:        0,
	ColumnInProgress:  1,
	ColumnUnderReview: 2,
	ColumnCompleted:   3,
}

// Valid reports whether c is one of the known columns.
func (c Column) Valid() bool {
	_, ok := columnRank[c]
	return ok
}

// Rank returns the column's index in board display order.
func (c Column) Rank() int { return columnRank[c] }

// Role is an already-verified caller role resolved by the upstream
// authentication collaborator.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleClient         Role = "client"
	RoleViewer         Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleClient, RoleViewer:
		return true
	}
	return false
}

// CanMutate reports whether the role may create, update or move tasks.
func (r Role) CanMutate() bool {
	return r == RoleAdmin || r == RoleProjectManager
}

// Actor identifies the caller of a board operation.
type Actor struct {
	UserID string
	Tenant string
	Role   Role
}

// CanAccess reports whether the actor may address the given tenant's board.
// Staff roles work across tenants; clients and viewers only see their own.
func (a Actor) CanAccess(tenant string) bool {
	if a.Role == RoleAdmin || a.Role == RoleProjectManager {
		return true
	}
	return a.Tenant == tenant
}

// Task represents a single board item.
type Task struct {
	ID          string     `json:"id"`
	Tenant      string     `json:"tenant"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Column      Column     `json:"column"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Assignees   []string   `json:"assignees"`
	Position    float64    `json:"position"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Less orders tasks for board display: column order, then ordering key,
// then creation time as the tie-break.
func Less(a, b Task) bool {
	if a.Column != b.Column {
		return a.Column.Rank() < b.Column.Rank()
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// TaskPatch carries a partial update. A nil field preserves the current
// value; a present field overrides it.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Column      *Column    `json:"column,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Assignees   *[]string  `json:"assignees,omitempty"`
	Position    *float64   `json:"position,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Column == nil &&
		p.DueDate == nil && p.Assignees == nil && p.Position == nil
}

// ListFilter narrows a tenant's task list. The zero value matches everything.
type ListFilter struct {
	Column   *Column
	Assignee string
	Search   string
}

// Matches reports whether the task satisfies every set filter condition.
func (f ListFilter) Matches(t Task) bool {
	if f.Column != nil && t.Column != *f.Column {
		return false
	}
	if f.Assignee != "" {
		found := false
		for _, a := range t.Assignees {
			if a == f.Assignee {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}
