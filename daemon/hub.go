package daemon

import (
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/frame"
)

// Client is one connected relay client: a datagram peer address, its
// CAN-ID filter ranges, and GC bookkeeping.
type Client struct {
	ID          uint32
	Addr        net.Addr
	Filters     []FilterRange
	lastHeartbeat atomic64
	seq         uint32
}

// Matches reports whether id falls inside any of the client's filter
// ranges; an empty filter list matches everything.
func (c *Client) Matches(id uint32) bool {
	if len(c.Filters) == 0 {
		return true
	}
	for _, f := range c.Filters {
		if id >= f.Min && id <= f.Max {
			return true
		}
	}
	return false
}

// Hub is the daemon's client table: reader-writer locked, readers on the
// hot USB->IPC fanout path, writers on Connect/Disconnect/SetFilter and GC
// sweeps (§5 shared-resource policy).
type Hub struct {
	mu      sync.RWMutex
	clients map[uint32]*Client
	nextID  uint32

	// Send delivers a pre-marshalled message to a client's address; the
	// daemon supplies this, bound to its own datagram socket, so Hub stays
	// transport-agnostic and testable without a real socket.
	Send func(addr net.Addr, payload []byte) error
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint32]*Client)}
}

func (h *Hub) Connect(addr net.Addr, filters []FilterRange) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &Client{ID: h.nextID, Addr: addr, Filters: filters}
	c.lastHeartbeat.store(nowUnixNano())
	h.clients[c.ID] = c
	log.WithField("client_id", c.ID).Info("daemon: client connected")
	return c
}

func (h *Hub) Disconnect(id uint32) {
	h.mu.Lock()
	_, existed := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if existed {
		log.WithField("client_id", id).Info("daemon: client disconnected")
	}
}

func (h *Hub) SetFilter(id uint32, filters []FilterRange) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	c.Filters = filters
	return true
}

func (h *Hub) Touch(id uint32) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.lastHeartbeat.store(nowUnixNano())
	return true
}

func (h *Hub) Get(id uint32) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Snapshot returns a read-only slice copy of connected clients, safe to
// range over without holding the lock.
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers fr to every client whose filter matches, evaluating
// filters before calling Send to avoid unnecessary datagram writes (§4.4).
// Send is non-blocking at the OS-buffer level; a failed Send increments the
// drop counter and is never retried (property 7, S6).
func (h *Hub) Broadcast(fr frame.Frame) (delivered, dropped int) {
	clients := h.Snapshot()
	for _, c := range clients {
		if !c.Matches(fr.ID) {
			continue
		}
		payload := marshalReceiveFrame(c.nextSeq(), ReceiveFrameMsg{
			CANID: fr.ID, Extended: fr.IsExtended, DLC: fr.DLC, HwTsUs: fr.HwTsUs, Data: fr.Data,
		})
		if err := h.Send(c.Addr, payload); err != nil {
			dropped++
			continue
		}
		delivered++
	}
	return delivered, dropped
}

func (c *Client) nextSeq() uint32 {
	c.seq++
	return c.seq
}

// RunGC evicts clients whose last heartbeat is older than timeout, waking
// every interval (§4.4 Client GC thread).
func (h *Hub) RunGC(interval, timeout time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cutoff := nowUnixNano() - timeout.Nanoseconds()
			for _, c := range h.Snapshot() {
				if c.lastHeartbeat.load() < cutoff {
					h.Disconnect(c.ID)
				}
			}
		}
	}
}
