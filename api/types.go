package api

import (
	"context"

	"portal-api/domain"
)

// Board is the sequencing authority the handlers call into.
type Board interface {
	CreateTask(ctx context.Context, actor domain.Actor, tenant string, p domain.CreateTaskParams) (domain.Task, error)
	UpdateTask(ctx context.Context, actor domain.Actor, tenant, id string, patch domain.TaskPatch) (domain.Task, error)
	MoveTask(ctx context.Context, actor domain.Actor, tenant, id string, target domain.Column, beforeID, afterID string) (domain.Task, error)
	ListTasks(ctx context.Context, actor domain.Actor, tenant string, filter domain.ListFilter) ([]domain.Task, error)
	Branding(ctx context.Context, actor domain.Actor, tenant string) (domain.TenantProfile, error)
	UpdateBranding(ctx context.Context, actor domain.Actor, tenant string, patch domain.ProfilePatch) (domain.TenantProfile, error)
}

// Authenticator is implemented by types able to extract the caller identity
// from an Authorization header.
type Authenticator interface {
	ActorFromAuthHeader(string) (domain.Actor, error)
}

// Deduper prevents reprocessing of repeated create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, tenant, key string) (bool, error)
	// Remove deletes a previously added key, used when persistence fails so
	// the caller may retry.
	Remove(ctx context.Context, tenant, key string) error
}
