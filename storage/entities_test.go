package storage

import (
	"testing"
	"time"

	"portal-api/domain"
)

func TestTaskEntityRoundTrip(t *testing.T) {
	due := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	orig := domain.Task{
		ID:          "t1",
		Tenant:      "acme",
		Title:       "prepare invoice",
		Description: "march billing",
		Column:      domain.ColumnInProgress,
		DueDate:     &due,
		Assignees:   []string{"u1", "u2"},
		Position:    2.5,
		CreatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	ent := fromTask(orig)
	if ent.PartitionKey != "acme" || ent.RowKey != "t1" {
		t.Fatalf("unexpected keys: %s/%s", ent.PartitionKey, ent.RowKey)
	}
	if ent.CreatedAtType != edmInt64 || ent.UpdatedAtType != edmInt64 {
		t.Fatalf("expected int64 type annotations, got %q/%q", ent.CreatedAtType, ent.UpdatedAtType)
	}

	got, err := toTask(ent)
	if err != nil {
		t.Fatalf("to task: %v", err)
	}
	if got.ID != orig.ID || got.Tenant != orig.Tenant || got.Title != orig.Title {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.Column != domain.ColumnInProgress || got.Position != 2.5 {
		t.Fatalf("unexpected column or position: %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("unexpected due date: %v", got.DueDate)
	}
	if len(got.Assignees) != 2 || got.Assignees[0] != "u1" {
		t.Fatalf("unexpected assignees: %v", got.Assignees)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) || !got.UpdatedAt.Equal(orig.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestTaskEntityWithoutOptionalFields(t *testing.T) {
	orig := domain.Task{ID: "t1", Tenant: "acme", Title: "x", Column: domain.ColumnTodo}
	got, err := toTask(fromTask(orig))
	if err != nil {
		t.Fatalf("to task: %v", err)
	}
	if got.DueDate != nil {
		t.Fatalf("expected nil due date, got %v", got.DueDate)
	}
	if got.Assignees == nil || len(got.Assignees) != 0 {
		t.Fatalf("expected empty assignees, got %#v", got.Assignees)
	}
}

func TestFromPatchCarriesOnlyPresentFields(t *testing.T) {
	title := "renamed"
	col := domain.ColumnCompleted
	pos := 4.5
	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	ent := fromPatch("acme", "t1", domain.TaskPatch{Title: &title, Column: &col, Position: &pos}, now)
	if ent.PartitionKey != "acme" || ent.RowKey != "t1" {
		t.Fatalf("unexpected keys: %s/%s", ent.PartitionKey, ent.RowKey)
	}
	if ent.Title == nil || *ent.Title != "renamed" {
		t.Fatalf("expected title present, got %+v", ent.Title)
	}
	if ent.Column == nil || *ent.Column != "completed" {
		t.Fatalf("expected column present, got %+v", ent.Column)
	}
	if ent.Position == nil || *ent.Position != 4.5 {
		t.Fatalf("expected position present, got %+v", ent.Position)
	}
	if ent.Description != nil || ent.DueDate != nil || ent.Assignees != nil {
		t.Fatal("expected absent fields to stay nil")
	}
	if ent.UpdatedAt == nil || *ent.UpdatedAt != now.UnixMilli() {
		t.Fatalf("expected updatedAt stamped, got %+v", ent.UpdatedAt)
	}
	if ent.UpdatedAtType == nil || *ent.UpdatedAtType != edmInt64 {
		t.Fatal("expected updatedAt type annotation")
	}
}

func TestToProfileDefaultsThemeColor(t *testing.T) {
	prof := toProfile(profileEntity{})
	if prof.ThemeColor != domain.DefaultThemeColor {
		t.Fatalf("expected default theme color, got %q", prof.ThemeColor)
	}
}

func TestEscapeODataString(t *testing.T) {
	if got := escapeODataString("o'brien"); got != "o''brien" {
		t.Fatalf("expected quotes doubled, got %q", got)
	}
	if got := escapeODataString("plain"); got != "plain" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}
