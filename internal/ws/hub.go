package ws

import (
	"encoding/json"
	"sync"
)

// Client represents a single WebSocket connection with partner context.
type Client struct {
	PartnerID uint
	Role      string
	Send      chan []byte
	Hub       *Hub
	mu        sync.Mutex
	closed    bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// Hub maintains the set of connected partner dashboards and pushes them
// ledger and payout events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// partnerID -> clients (one partner can have multiple dashboards open)
	byPartner map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		byPartner: make(map[uint]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	if h.byPartner[c.PartnerID] == nil {
		h.byPartner[c.PartnerID] = make(map[*Client]struct{})
	}
	h.byPartner[c.PartnerID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if m := h.byPartner[c.PartnerID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byPartner, c.PartnerID)
		}
	}
}

func (h *Hub) BroadcastToPartner(partnerID uint, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	m := h.byPartner[partnerID]
	if m == nil {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
