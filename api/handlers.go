package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"portal-api/domain"
	"portal-api/realtime"
)

// mutationMaxBodySize bounds mutation request bodies.
const mutationMaxBodySize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, board Board, auth Authenticator, hub *realtime.Hub, deduper Deduper, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.GET("/api/tenants/:tenant/tasks", listTasks(board, auth, logger))
	e.POST("/api/tenants/:tenant/tasks", createTask(board, auth, deduper, logger))
	e.PATCH("/api/tenants/:tenant/tasks/:id", updateTask(board, auth))
	e.POST("/api/tenants/:tenant/tasks/:id/move", moveTask(board, auth))

	e.GET("/api/tenants/:tenant/branding", getBranding(board, auth))
	e.PUT("/api/tenants/:tenant/branding", putBranding(board, auth))

	e.GET("/api/tenants/:tenant/events", subscribeEvents(hub, auth, logger))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(board Board, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		actor, authErr := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		tenant := c.Param("tenant")
		metrics.SetTenant(tenant)

		filter := domain.ListFilter{
			Assignee: c.QueryParam("assignee"),
			Search:   c.QueryParam("q"),
		}
		if raw := c.QueryParam("column"); raw != "" {
			col := domain.Column(raw)
			if !col.Valid() {
				metrics.SetErrorStage("invalid_column")
				err = c.String(http.StatusBadRequest, "unknown column")
				return err
			}
			filter.Column = &col
		}

		fetchStart := time.Now()
		tasks, fetchErr := board.ListTasks(ctx, actor, tenant, filter)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			err = writeDomainError(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(board Board, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		tenant := c.Param("tenant")

		var params domain.CreateTaskParams
		if err := decodeBody(c, &params); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		idemKey := c.Request().Header.Get("Idempotency-Key")
		if idemKey != "" && deduper != nil {
			added, dedupErr := deduper.Add(ctx, tenant, idemKey)
			if dedupErr != nil {
				// Dedupe is best effort; availability wins over strictness.
				logger.Warnf("idempotency check failed, proceeding: %v", dedupErr)
			} else if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		t, err := board.CreateTask(ctx, actor, tenant, params)
		if err != nil {
			if idemKey != "" && deduper != nil && errors.Is(err, domain.ErrStorageUnavailable) {
				if rerr := deduper.Remove(ctx, tenant, idemKey); rerr != nil {
					logger.Errorf("idempotency rollback failed, key: %s, err: %v", idemKey, rerr)
				}
			}
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, t)
	}
}

func updateTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		t, err := board.UpdateTask(c.Request().Context(), actor, c.Param("tenant"), c.Param("id"), patch)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

type moveTaskRequest struct {
	Column   domain.Column `json:"column"`
	BeforeID string        `json:"beforeId"`
	AfterID  string        `json:"afterId"`
}

func moveTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req moveTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		t, err := board.MoveTask(c.Request().Context(), actor, c.Param("tenant"), c.Param("id"), req.Column, req.BeforeID, req.AfterID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func getBranding(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		prof, err := board.Branding(c.Request().Context(), actor, c.Param("tenant"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, prof)
	}
}

func putBranding(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := auth.ActorFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var patch domain.ProfilePatch
		if err := decodeBody(c, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		prof, err := board.UpdateBranding(c.Request().Context(), actor, c.Param("tenant"), patch)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, prof)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, mutationMaxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return c.String(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.Logger().Error(err)
		return c.String(http.StatusServiceUnavailable, err.Error())
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}
