package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"portal-api/domain"
)

// Store provides access to the underlying persistence mechanisms: the task
// and tenant-profile tables plus the outbound notification queue.
type Store struct {
	taskTable    *aztables.Client
	profileTable *aztables.Client
	notifQueue   *azqueue.QueueClient
}

// New creates a Store from the given connection string and resource names.
func New(connStr, tasksTable, profilesTable, notificationQueue string) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	nq, err := azqueue.NewQueueClientFromConnectionString(connStr, notificationQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Store{
		taskTable:    svc.NewClient(tasksTable),
		profileTable: svc.NewClient(profilesTable),
		notifQueue:   nq,
	}, nil
}

// Insert persists a new task record.
func (s *Store) Insert(ctx context.Context, t domain.Task) error {
	payload, err := json.Marshal(fromTask(t))
	if err != nil {
		return err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return translate(err)
	}
	return nil
}

// Get retrieves a single task record.
func (s *Store) Get(ctx context.Context, tenant, id string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, tenant, id, nil)
	if err != nil {
		return domain.Task{}, translate(err)
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, err
	}
	return toTask(ent)
}

// Merge applies only the present patch fields via a merge-mode update and
// returns the resulting record.
func (s *Store) Merge(ctx context.Context, tenant, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error) {
	payload, err := json.Marshal(fromPatch(tenant, id, patch, updatedAt))
	if err != nil {
		return domain.Task{}, err
	}
	et := azcore.ETagAny
	opts := &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge}
	if _, err := s.taskTable.UpdateEntity(ctx, payload, opts); err != nil {
		return domain.Task{}, translate(err)
	}
	return s.Get(ctx, tenant, id)
}

// List retrieves all tasks of a tenant that satisfy the filter. Column
// equality is pushed into the table query; assignee membership and text
// search are applied in memory since the table service cannot express them.
func (s *Store) List(ctx context.Context, tenant string, filter domain.ListFilter) ([]domain.Task, error) {
	query := "PartitionKey eq '" + escapeODataString(tenant) + "'"
	if filter.Column != nil {
		query += " and Column eq '" + escapeODataString(string(*filter.Column)) + "'"
	}
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &query})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translate(err)
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			t, err := toTask(ent)
			if err != nil {
				return nil, err
			}
			if filter.Matches(t) {
				tasks = append(tasks, t)
			}
		}
	}
	return tasks, nil
}

// GetProfile retrieves the tenant branding profile. A tenant that never
// customized branding gets the defaults rather than a not-found error.
func (s *Store) GetProfile(ctx context.Context, tenant string) (domain.TenantProfile, error) {
	resp, err := s.profileTable.GetEntity(ctx, tenant, tenant, nil)
	if err != nil {
		if terr := translate(err); errors.Is(terr, domain.ErrNotFound) {
			return domain.TenantProfile{Tenant: tenant, ThemeColor: domain.DefaultThemeColor}, nil
		} else {
			return domain.TenantProfile{}, terr
		}
	}
	var ent profileEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.TenantProfile{}, err
	}
	return toProfile(ent), nil
}

// MergeProfile merges the present patch fields into the tenant profile,
// creating it on first customization.
func (s *Store) MergeProfile(ctx context.Context, tenant string, patch domain.ProfilePatch) (domain.TenantProfile, error) {
	payload, err := json.Marshal(fromProfilePatch(tenant, patch))
	if err != nil {
		return domain.TenantProfile{}, err
	}
	opts := &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeMerge}
	if _, err := s.profileTable.UpsertEntity(ctx, payload, opts); err != nil {
		return domain.TenantProfile{}, translate(err)
	}
	return s.GetProfile(ctx, tenant)
}

// notificationEnvelope is the wire format consumed by the external delivery
// worker.
type notificationEnvelope struct {
	Tenant    string `json:"tenant"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// EnqueueNotification sends one notification message to the outbound queue.
func (s *Store) EnqueueNotification(ctx context.Context, tenant, userID, text string) error {
	env := notificationEnvelope{Tenant: tenant, UserID: userID, Text: text, CreatedAt: time.Now().UnixMilli()}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if _, err := s.notifQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
		return translate(err)
	}
	return nil
}

// translate maps Azure transport errors onto the domain error taxonomy.
func translate(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, respErr.ErrorCode)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, respErr.ErrorCode)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func escapeODataString(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
