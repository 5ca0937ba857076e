package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"portal-api/realtime"
)

// writeWait bounds a single frame write so one wedged observer cannot pin a
// writer goroutine forever.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribeEvents upgrades the request to a WebSocket and streams the
// tenant's change events until the observer disconnects. There is no replay:
// reconnecting clients re-fetch current state through the task list.
func subscribeEvents(hub *realtime.Hub, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		actor, err := auth.ActorFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		tenant := c.Param("tenant")
		if !actor.CanAccess(tenant) {
			return c.String(http.StatusForbidden, "tenant outside caller scope")
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Errorf("websocket upgrade failed: %v", err)
			return err
		}

		sub := hub.Subscribe(tenant)
		logger.WithFields(log.Fields{"tenant": tenant, "user": actor.UserID}).Debug("observer connected")

		go func() {
			for data := range sub.C {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Unsubscribe(sub)
					break
				}
			}
			// The hub closed the channel or the write failed; either way the
			// observer is gone.
			_ = conn.Close()
		}()

		// The read loop only detects closure; observers send nothing.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unsubscribe(sub)
		_ = conn.Close()
		logger.WithFields(log.Fields{"tenant": tenant, "user": actor.UserID}).Debug("observer disconnected")
		return nil
	}
}
