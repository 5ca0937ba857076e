package domain

// Change event kinds delivered to live observers.
const (
	EventTaskCreated     = "create"
	EventTaskUpdated     = "update"
	EventTaskMoved       = "move"
	EventBrandingUpdated = "branding-update"
	EventLogoUpdated     = "logo-update"
)

// ChangeEvent is an ephemeral notification of a committed mutation. It is
// never persisted; observers that miss one re-fetch current state instead.
type ChangeEvent struct {
	Kind   string `json:"kind"`
	TaskID string `json:"taskId,omitempty"`
	Tenant string `json:"tenant"`
}

// Publisher fans a change event out to the tenant's live observers. Publish
// is best effort and must not block the mutation path.
type Publisher interface {
	Publish(ev ChangeEvent)
}

// Notifier records a notification for a user, delivered out of band.
// Implementations must not block and never fail the calling mutation.
type Notifier interface {
	Notify(tenant, userID, text string)
}
