package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"portal-api/domain"
)

type mockBoard struct {
	task    domain.Task
	tasks   []domain.Task
	profile domain.TenantProfile
	err     error

	lastTenant string
	lastID     string
	lastParams domain.CreateTaskParams
	lastPatch  domain.TaskPatch
	lastColumn domain.Column
	lastBefore string
	lastAfter  string
	lastFilter domain.ListFilter
	creates    int
}

func (m *mockBoard) CreateTask(_ context.Context, _ domain.Actor, tenant string, p domain.CreateTaskParams) (domain.Task, error) {
	m.lastTenant = tenant
	m.lastParams = p
	m.creates++
	return m.task, m.err
}

func (m *mockBoard) UpdateTask(_ context.Context, _ domain.Actor, tenant, id string, patch domain.TaskPatch) (domain.Task, error) {
	m.lastTenant = tenant
	m.lastID = id
	m.lastPatch = patch
	return m.task, m.err
}

func (m *mockBoard) MoveTask(_ context.Context, _ domain.Actor, tenant, id string, target domain.Column, beforeID, afterID string) (domain.Task, error) {
	m.lastTenant = tenant
	m.lastID = id
	m.lastColumn = target
	m.lastBefore = beforeID
	m.lastAfter = afterID
	return m.task, m.err
}

func (m *mockBoard) ListTasks(_ context.Context, _ domain.Actor, tenant string, filter domain.ListFilter) ([]domain.Task, error) {
	m.lastTenant = tenant
	m.lastFilter = filter
	return m.tasks, m.err
}

func (m *mockBoard) Branding(_ context.Context, _ domain.Actor, tenant string) (domain.TenantProfile, error) {
	m.lastTenant = tenant
	return m.profile, m.err
}

func (m *mockBoard) UpdateBranding(_ context.Context, _ domain.Actor, tenant string, _ domain.ProfilePatch) (domain.TenantProfile, error) {
	m.lastTenant = tenant
	return m.profile, m.err
}

type mockAuth struct{ err error }

func (m mockAuth) ActorFromAuthHeader(string) (domain.Actor, error) {
	if m.err != nil {
		return domain.Actor{}, m.err
	}
	return domain.Actor{UserID: "staff", Role: domain.RoleAdmin}, nil
}

type mockDeduper struct {
	added   map[string]bool
	addErr  error
	removed []string
}

func (m *mockDeduper) Add(_ context.Context, tenant, key string) (bool, error) {
	if m.addErr != nil {
		return false, m.addErr
	}
	k := tenant + ":" + key
	if m.added == nil {
		m.added = make(map[string]bool)
	}
	if m.added[k] {
		return false, nil
	}
	m.added[k] = true
	return true, nil
}

func (m *mockDeduper) Remove(_ context.Context, tenant, key string) error {
	m.removed = append(m.removed, tenant+":"+key)
	return nil
}

func newTaskContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func TestListTasks(t *testing.T) {
	e := echo.New()
	board := &mockBoard{tasks: []domain.Task{{ID: "1", Tenant: "acme", Title: "t", Column: domain.ColumnTodo}}}
	c, rec := newTaskContext(e, http.MethodGet, "/api/tenants/acme/tasks?column=todo&assignee=u1&q=inv", "")
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := listTasks(board, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if board.lastTenant != "acme" {
		t.Fatalf("expected tenant forwarded, got %q", board.lastTenant)
	}
	if board.lastFilter.Column == nil || *board.lastFilter.Column != domain.ColumnTodo {
		t.Fatalf("expected column filter forwarded, got %+v", board.lastFilter)
	}
	if board.lastFilter.Assignee != "u1" || board.lastFilter.Search != "inv" {
		t.Fatalf("expected assignee and search forwarded, got %+v", board.lastFilter)
	}

	var resp []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "1" {
		t.Fatalf("unexpected tasks: %#v", resp)
	}
}

func TestListTasksUnknownColumn(t *testing.T) {
	e := echo.New()
	c, rec := newTaskContext(e, http.MethodGet, "/api/tenants/acme/tasks?column=archived", "")
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := listTasks(&mockBoard{}, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestListTasksUnauthorized(t *testing.T) {
	e := echo.New()
	c, rec := newTaskContext(e, http.MethodGet, "/api/tenants/acme/tasks", "")
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := listTasks(&mockBoard{}, mockAuth{err: errors.New("bad token")}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestCreateTask(t *testing.T) {
	e := echo.New()
	board := &mockBoard{task: domain.Task{ID: "new", Tenant: "acme", Title: "t"}}
	c, rec := newTaskContext(e, http.MethodPost, "/api/tenants/acme/tasks", `{"title":"t","assignees":["u1"]}`)
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := createTask(board, mockAuth{}, &mockDeduper{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	if board.lastParams.Title != "t" || len(board.lastParams.Assignees) != 1 {
		t.Fatalf("unexpected params: %+v", board.lastParams)
	}
}

func TestCreateTaskRejectsUnknownFields(t *testing.T) {
	e := echo.New()
	c, rec := newTaskContext(e, http.MethodPost, "/api/tenants/acme/tasks", `{"title":"t","bogus":1}`)
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := createTask(&mockBoard{}, mockAuth{}, &mockDeduper{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestCreateTaskDuplicateIdempotencyKey(t *testing.T) {
	e := echo.New()
	board := &mockBoard{task: domain.Task{ID: "new"}}
	deduper := &mockDeduper{}

	for i, wantStatus := range []int{http.StatusCreated, http.StatusConflict} {
		c, rec := newTaskContext(e, http.MethodPost, "/api/tenants/acme/tasks", `{"title":"t"}`)
		c.SetParamNames("tenant")
		c.SetParamValues("acme")
		c.Request().Header.Set("Idempotency-Key", "abc")

		if err := createTask(board, mockAuth{}, deduper, log.New())(c); err != nil {
			t.Fatalf("attempt %d returned error: %v", i, err)
		}
		if rec.Code != wantStatus {
			t.Fatalf("attempt %d: expected status %d got %d", i, wantStatus, rec.Code)
		}
	}
	if board.creates != 1 {
		t.Fatalf("expected a single create, got %d", board.creates)
	}
}

func TestCreateTaskRollsBackKeyOnStorageFailure(t *testing.T) {
	e := echo.New()
	board := &mockBoard{err: fmt.Errorf("%w: table offline", domain.ErrStorageUnavailable)}
	deduper := &mockDeduper{}
	c, rec := newTaskContext(e, http.MethodPost, "/api/tenants/acme/tasks", `{"title":"t"}`)
	c.SetParamNames("tenant")
	c.SetParamValues("acme")
	c.Request().Header.Set("Idempotency-Key", "abc")

	if err := createTask(board, mockAuth{}, deduper, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", rec.Code)
	}
	if len(deduper.removed) != 1 || deduper.removed[0] != "acme:abc" {
		t.Fatalf("expected idempotency key rollback, got %v", deduper.removed)
	}
}

func TestUpdateTask(t *testing.T) {
	e := echo.New()
	board := &mockBoard{task: domain.Task{ID: "t1", Title: "renamed"}}
	c, rec := newTaskContext(e, http.MethodPatch, "/api/tenants/acme/tasks/t1", `{"title":"renamed"}`)
	c.SetParamNames("tenant", "id")
	c.SetParamValues("acme", "t1")

	if err := updateTask(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if board.lastID != "t1" {
		t.Fatalf("expected task id forwarded, got %q", board.lastID)
	}
	if board.lastPatch.Title == nil || *board.lastPatch.Title != "renamed" {
		t.Fatalf("unexpected patch: %+v", board.lastPatch)
	}
	if board.lastPatch.Description != nil {
		t.Fatal("expected absent fields to stay nil")
	}
}

func TestMoveTask(t *testing.T) {
	e := echo.New()
	board := &mockBoard{task: domain.Task{ID: "t1", Column: domain.ColumnInProgress}}
	c, rec := newTaskContext(e, http.MethodPost, "/api/tenants/acme/tasks/t1/move", `{"column":"in_progress","beforeId":"b","afterId":"a"}`)
	c.SetParamNames("tenant", "id")
	c.SetParamValues("acme", "t1")

	if err := moveTask(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if board.lastColumn != domain.ColumnInProgress || board.lastBefore != "b" || board.lastAfter != "a" {
		t.Fatalf("unexpected move args: %s %q %q", board.lastColumn, board.lastBefore, board.lastAfter)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: nope", domain.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: task x", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad column", domain.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: table offline", domain.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tt := range tests {
		board := &mockBoard{err: tt.err}
		c, rec := newTaskContext(e, http.MethodPatch, "/api/tenants/acme/tasks/t1", `{"title":"x"}`)
		c.SetParamNames("tenant", "id")
		c.SetParamValues("acme", "t1")

		if err := updateTask(board, mockAuth{})(c); err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		if rec.Code != tt.want {
			t.Fatalf("error %v: expected status %d got %d", tt.err, tt.want, rec.Code)
		}
	}
}

func TestGetBranding(t *testing.T) {
	e := echo.New()
	board := &mockBoard{profile: domain.TenantProfile{Tenant: "acme", DisplayName: "Acme", ThemeColor: "#112233"}}
	c, rec := newTaskContext(e, http.MethodGet, "/api/tenants/acme/branding", "")
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := getBranding(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var prof domain.TenantProfile
	if err := sonic.Unmarshal(rec.Body.Bytes(), &prof); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if prof.DisplayName != "Acme" {
		t.Fatalf("unexpected profile: %+v", prof)
	}
}

func TestPutBranding(t *testing.T) {
	e := echo.New()
	board := &mockBoard{profile: domain.TenantProfile{Tenant: "acme", DisplayName: "Acme Corp"}}
	c, rec := newTaskContext(e, http.MethodPut, "/api/tenants/acme/branding", `{"displayName":"Acme Corp"}`)
	c.SetParamNames("tenant")
	c.SetParamValues("acme")

	if err := putBranding(board, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if board.lastTenant != "acme" {
		t.Fatalf("expected tenant forwarded, got %q", board.lastTenant)
	}
}
