package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TaskStore is the authoritative persisted record of board tasks.
type TaskStore interface {
	Insert(ctx context.Context, t Task) error
	Get(ctx context.Context, tenant, id string) (Task, error)
	// Merge applies only the present patch fields and stamps updatedAt,
	// returning the updated record. Column and position land in a single
	// persistence call.
	Merge(ctx context.Context, tenant, id string, patch TaskPatch, updatedAt time.Time) (Task, error)
	List(ctx context.Context, tenant string, filter ListFilter) ([]Task, error)
}

// ProfileStore persists tenant branding profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, tenant string) (TenantProfile, error)
	MergeProfile(ctx context.Context, tenant string, patch ProfilePatch) (TenantProfile, error)
}

// Board is the sequencing authority over task mutations: the only component
// that pairs the position allocator with the task store. Change events are
// published only after the corresponding persistence commit succeeds.
type Board struct {
	store    TaskStore
	profiles ProfileStore
	pub      Publisher
	notifier Notifier
	log      *log.Logger
}

// NewBoard wires the board service. notifier may be nil when assignee
// notifications are disabled.
func NewBoard(store TaskStore, profiles ProfileStore, pub Publisher, notifier Notifier, logger *log.Logger) *Board {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Board{store: store, profiles: profiles, pub: pub, notifier: notifier, log: logger}
}

// CreateTaskParams are the caller-supplied fields of a new task.
type CreateTaskParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Assignees   []string   `json:"assignees"`
}

// CreateTask places a new task at the end of the todo column and emits a
// create event to the tenant's observers.
func (b *Board) CreateTask(ctx context.Context, actor Actor, tenant string, p CreateTaskParams) (Task, error) {
	if err := requireEditor(actor, tenant); err != nil {
		return Task{}, err
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return Task{}, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}

	todo := ColumnTodo
	siblings, err := b.store.List(ctx, tenant, ListFilter{Column: &todo})
	if err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	t := Task{
		ID:          uuid.NewString(),
		Tenant:      tenant,
		Title:       title,
		Description: p.Description,
		Column:      ColumnTodo,
		DueDate:     p.DueDate,
		Assignees:   dedupe(p.Assignees),
		Position:    AppendPosition(siblings),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.store.Insert(ctx, t); err != nil {
		return Task{}, err
	}

	b.publish(ChangeEvent{Kind: EventTaskCreated, TaskID: t.ID, Tenant: tenant})
	b.notifyAssignees(t, fmt.Sprintf("You were assigned to %q", t.Title))
	b.log.WithFields(log.Fields{"tenant": tenant, "task": t.ID, "actor": actor.UserID}).Debug("task created")
	return t, nil
}

// UpdateTask merges only the present patch fields into the task and emits an
// update event. An empty patch is a no-op read: the current record is
// returned and no event is emitted.
func (b *Board) UpdateTask(ctx context.Context, actor Actor, tenant, id string, patch TaskPatch) (Task, error) {
	if err := requireEditor(actor, tenant); err != nil {
		return Task{}, err
	}
	if id == "" {
		return Task{}, fmt.Errorf("%w: task id is required", ErrInvalidArgument)
	}
	if patch.Empty() {
		return b.store.Get(ctx, tenant, id)
	}
	if patch.Column != nil && !patch.Column.Valid() {
		return Task{}, fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, *patch.Column)
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return Task{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidArgument)
		}
		patch.Title = &title
	}
	if patch.Assignees != nil {
		deduped := dedupe(*patch.Assignees)
		patch.Assignees = &deduped
	}

	t, err := b.store.Merge(ctx, tenant, id, patch, time.Now().UTC())
	if err != nil {
		return Task{}, err
	}

	b.publish(ChangeEvent{Kind: EventTaskUpdated, TaskID: t.ID, Tenant: tenant})
	return t, nil
}

// MoveTask reorders a task into the target column. Neighbor ids, when given,
// are trusted to belong to the target column; the position allocator derives
// the new ordering key from their keys. Column and key are persisted in one
// merge, then a move event is emitted.
func (b *Board) MoveTask(ctx context.Context, actor Actor, tenant, id string, target Column, beforeID, afterID string) (Task, error) {
	if err := requireEditor(actor, tenant); err != nil {
		return Task{}, err
	}
	if id == "" {
		return Task{}, fmt.Errorf("%w: task id is required", ErrInvalidArgument)
	}
	if !target.Valid() {
		return Task{}, fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, target)
	}

	var beforeKey, afterKey *float64
	if beforeID != "" {
		neighbor, err := b.store.Get(ctx, tenant, beforeID)
		if err != nil {
			return Task{}, err
		}
		beforeKey = &neighbor.Position
	}
	if afterID != "" {
		neighbor, err := b.store.Get(ctx, tenant, afterID)
		if err != nil {
			return Task{}, err
		}
		afterKey = &neighbor.Position
	}

	var pos float64
	switch {
	case beforeKey != nil && afterKey != nil:
		pos = Midpoint(*beforeKey, *afterKey)
	case beforeKey != nil:
		pos = PositionBefore(*beforeKey)
	case afterKey != nil:
		pos = PositionAfter(*afterKey)
	default:
		siblings, err := b.store.List(ctx, tenant, ListFilter{Column: &target})
		if err != nil {
			return Task{}, err
		}
		pos = AppendPosition(siblings)
	}

	patch := TaskPatch{Column: &target, Position: &pos}
	t, err := b.store.Merge(ctx, tenant, id, patch, time.Now().UTC())
	if err != nil {
		return Task{}, err
	}

	b.publish(ChangeEvent{Kind: EventTaskMoved, TaskID: t.ID, Tenant: tenant})
	b.notifyAssignees(t, fmt.Sprintf("%q moved to %s", t.Title, t.Column))
	return t, nil
}

// ListTasks returns the tenant's current ordered board view. Reads carry no
// role gate beyond tenant scoping.
func (b *Board) ListTasks(ctx context.Context, actor Actor, tenant string, filter ListFilter) ([]Task, error) {
	if !actor.CanAccess(tenant) {
		return nil, fmt.Errorf("%w: tenant %s is outside caller scope", ErrForbidden, tenant)
	}
	if filter.Column != nil && !filter.Column.Valid() {
		return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, *filter.Column)
	}
	tasks, err := b.store.List(ctx, tenant, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return Less(tasks[i], tasks[j]) })
	return tasks, nil
}

// Branding returns the tenant's branding profile.
func (b *Board) Branding(ctx context.Context, actor Actor, tenant string) (TenantProfile, error) {
	if !actor.CanAccess(tenant) {
		return TenantProfile{}, fmt.Errorf("%w: tenant %s is outside caller scope", ErrForbidden, tenant)
	}
	return b.profiles.GetProfile(ctx, tenant)
}

// UpdateBranding merges the present patch fields into the tenant profile and
// notifies observers: logo-update when the logo changed, branding-update for
// any other field. An empty patch is a no-op read.
func (b *Board) UpdateBranding(ctx context.Context, actor Actor, tenant string, patch ProfilePatch) (TenantProfile, error) {
	if err := requireEditor(actor, tenant); err != nil {
		return TenantProfile{}, err
	}
	if patch.Empty() {
		return b.profiles.GetProfile(ctx, tenant)
	}

	prof, err := b.profiles.MergeProfile(ctx, tenant, patch)
	if err != nil {
		return TenantProfile{}, err
	}

	if patch.DisplayName != nil || patch.ThemeColor != nil {
		b.publish(ChangeEvent{Kind: EventBrandingUpdated, Tenant: tenant})
	}
	if patch.LogoURL != nil {
		b.publish(ChangeEvent{Kind: EventLogoUpdated, Tenant: tenant})
	}
	return prof, nil
}

func (b *Board) publish(ev ChangeEvent) {
	if b.pub != nil {
		b.pub.Publish(ev)
	}
}

func (b *Board) notifyAssignees(t Task, text string) {
	if b.notifier == nil {
		return
	}
	for _, userID := range t.Assignees {
		b.notifier.Notify(t.Tenant, userID, text)
	}
}

func requireEditor(actor Actor, tenant string) error {
	if !actor.Role.CanMutate() {
		return fmt.Errorf("%w: role %s cannot mutate the board", ErrForbidden, actor.Role)
	}
	if !actor.CanAccess(tenant) {
		return fmt.Errorf("%w: tenant %s is outside caller scope", ErrForbidden, tenant)
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
