package realtime

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// defaultBuffer is the per-subscriber delivery buffer. An observer that
// falls this many events behind is treated as dead and dropped; it must
// re-fetch current state on reconnect.
const defaultBuffer = 32

// Subscriber is one observer connection's delivery buffer. Receive from C
// until it is closed.
type Subscriber struct {
	C      chan []byte
	tenant string
}

// Tenant returns the tenant this subscriber observes.
func (s *Subscriber) Tenant() string { return s.tenant }

// Hub tracks live observer connections per tenant for the life of the
// process. Entries are created on first subscribe and removed when the last
// connection leaves; nothing is persisted across restarts.
type Hub struct {
	mu      sync.Mutex
	tenants map[string]map[*Subscriber]struct{}
	buffer  int
	log     *log.Logger
}

// NewHub creates an empty registry.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		tenants: make(map[string]map[*Subscriber]struct{}),
		buffer:  defaultBuffer,
		log:     logger,
	}
}

// Subscribe registers a new observer connection under the tenant.
func (h *Hub) Subscribe(tenant string) *Subscriber {
	s := &Subscriber{C: make(chan []byte, h.buffer), tenant: tenant}
	h.mu.Lock()
	conns, ok := h.tenants[tenant]
	if !ok {
		conns = make(map[*Subscriber]struct{})
		h.tenants[tenant] = conns
	}
	conns[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the subscriber and closes its channel. The tenant
// entry is deleted when its last connection leaves. Safe to call more than
// once; only the first call closes the channel.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	h.drop(s)
	h.mu.Unlock()
}

// Broadcast delivers data to every subscriber of the tenant in publish
// order. A subscriber with a saturated buffer is dropped rather than letting
// it stall delivery to the rest.
func (h *Hub) Broadcast(tenant string, data []byte) {
	h.mu.Lock()
	for s := range h.tenants[tenant] {
		select {
		case s.C <- data:
		default:
			h.log.WithField("tenant", tenant).Warn("observer too slow, dropping connection")
			h.drop(s)
		}
	}
	h.mu.Unlock()
}

// Count returns the number of live connections for the tenant.
func (h *Hub) Count(tenant string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tenants[tenant])
}

// drop removes s and closes its channel. Caller must hold h.mu.
func (h *Hub) drop(s *Subscriber) {
	conns, ok := h.tenants[s.tenant]
	if !ok {
		return
	}
	if _, ok := conns[s]; !ok {
		return
	}
	delete(conns, s)
	if len(conns) == 0 {
		delete(h.tenants, s.tenant)
	}
	close(s.C)
}
