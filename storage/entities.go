package storage

import (
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"portal-api/domain"
)

const edmInt64 = "Edm.Int64"

// taskEntity is the table representation of a task. PartitionKey is the
// tenant id, RowKey the task id. Assignees are stored as a JSON-encoded
// array since the table service has no collection type.
type taskEntity struct {
	aztables.Entity
	Title         string  `json:"Title"`
	Description   string  `json:"Description"`
	Column        string  `json:"Column"`
	DueDate       string  `json:"DueDate"`
	Assignees     string  `json:"Assignees"`
	Position      float64 `json:"Position"`
	CreatedAt     int64   `json:"CreatedAt,string"`
	CreatedAtType string  `json:"CreatedAt@odata.type"`
	UpdatedAt     int64   `json:"UpdatedAt,string"`
	UpdatedAtType string  `json:"UpdatedAt@odata.type"`
}

// taskMergeEntity carries a partial task update; absent fields are left
// untouched by the merge-mode table update.
type taskMergeEntity struct {
	aztables.Entity
	Title         *string  `json:"Title,omitempty"`
	Description   *string  `json:"Description,omitempty"`
	Column        *string  `json:"Column,omitempty"`
	DueDate       *string  `json:"DueDate,omitempty"`
	Assignees     *string  `json:"Assignees,omitempty"`
	Position      *float64 `json:"Position,omitempty"`
	UpdatedAt     *int64   `json:"UpdatedAt,omitempty,string"`
	UpdatedAtType *string  `json:"UpdatedAt@odata.type,omitempty"`
}

type profileEntity struct {
	aztables.Entity
	DisplayName string `json:"DisplayName"`
	ThemeColor  string `json:"ThemeColor"`
	LogoURL     string `json:"LogoUrl"`
}

type profileMergeEntity struct {
	aztables.Entity
	DisplayName *string `json:"DisplayName,omitempty"`
	ThemeColor  *string `json:"ThemeColor,omitempty"`
	LogoURL     *string `json:"LogoUrl,omitempty"`
}

func fromTask(t domain.Task) taskEntity {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: t.Tenant, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Column:        string(t.Column),
		Assignees:     encodeAssignees(t.Assignees),
		Position:      t.Position,
		CreatedAt:     t.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
		UpdatedAt:     t.UpdatedAt.UnixMilli(),
		UpdatedAtType: edmInt64,
	}
	if t.DueDate != nil {
		ent.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	return ent
}

func toTask(ent taskEntity) (domain.Task, error) {
	t := domain.Task{
		ID:          ent.RowKey,
		Tenant:      ent.PartitionKey,
		Title:       ent.Title,
		Description: ent.Description,
		Column:      domain.Column(ent.Column),
		Position:    ent.Position,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(ent.UpdatedAt).UTC(),
	}
	if ent.DueDate != "" {
		due, err := time.Parse(time.RFC3339, ent.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		due = due.UTC()
		t.DueDate = &due
	}
	assignees, err := decodeAssignees(ent.Assignees)
	if err != nil {
		return domain.Task{}, err
	}
	t.Assignees = assignees
	return t, nil
}

func fromPatch(tenant, id string, patch domain.TaskPatch, updatedAt time.Time) taskMergeEntity {
	edm := edmInt64
	ts := updatedAt.UnixMilli()
	ent := taskMergeEntity{
		Entity:        aztables.Entity{PartitionKey: tenant, RowKey: id},
		Title:         patch.Title,
		Description:   patch.Description,
		Position:      patch.Position,
		UpdatedAt:     &ts,
		UpdatedAtType: &edm,
	}
	if patch.Column != nil {
		col := string(*patch.Column)
		ent.Column = &col
	}
	if patch.DueDate != nil {
		due := patch.DueDate.UTC().Format(time.RFC3339)
		ent.DueDate = &due
	}
	if patch.Assignees != nil {
		encoded := encodeAssignees(*patch.Assignees)
		ent.Assignees = &encoded
	}
	return ent
}

func toProfile(ent profileEntity) domain.TenantProfile {
	p := domain.TenantProfile{
		Tenant:      ent.PartitionKey,
		DisplayName: ent.DisplayName,
		ThemeColor:  ent.ThemeColor,
		LogoURL:     ent.LogoURL,
	}
	if p.ThemeColor == "" {
		p.ThemeColor = domain.DefaultThemeColor
	}
	return p
}

func fromProfilePatch(tenant string, patch domain.ProfilePatch) profileMergeEntity {
	return profileMergeEntity{
		Entity:      aztables.Entity{PartitionKey: tenant, RowKey: tenant},
		DisplayName: patch.DisplayName,
		ThemeColor:  patch.ThemeColor,
		LogoURL:     patch.LogoURL,
	}
}

func encodeAssignees(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func decodeAssignees(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
