package realtime

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"portal-api/domain"
)

// Gateway fans change events out to the owning tenant's live observers.
// Delivery is best effort: a broken or lagging connection is unsubscribed
// without aborting delivery to the rest, and nothing propagates back to the
// mutation path.
type Gateway struct {
	hub *Hub
	log *log.Logger
}

// NewGateway creates a gateway publishing through the given hub.
func NewGateway(hub *Hub, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{hub: hub, log: logger}
}

// Publish delivers the event to every connection subscribed to its tenant.
// Events published for the same tenant reach each observer in publish order.
func (g *Gateway) Publish(ev domain.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		g.log.Errorf("marshal change event: %v", err)
		return
	}
	g.hub.Broadcast(ev.Tenant, data)
}
