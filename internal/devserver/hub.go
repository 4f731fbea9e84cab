package devserver

import (
	"encoding/json"
	"sync"

	"github.com/matheus3301/convo/internal/cable"
)

// hub tracks which connections are subscribed to which conversation. Each
// membership remembers the identifier string the client used so frames are
// echoed back exactly as subscribed.
type hub struct {
	mu    sync.RWMutex
	conns map[string]*connection
	rooms map[int64]map[*connection]cable.Identifier
}

func newHub() *hub {
	return &hub{
		conns: make(map[string]*connection),
		rooms: make(map[int64]map[*connection]cable.Identifier),
	}
}

func (h *hub) attach(c *connection) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *hub) detach(c *connection) {
	h.mu.Lock()
	delete(h.conns, c.id)
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
	h.mu.Unlock()
}

// join reports false if c was already subscribed to conversationID.
func (h *hub) join(conversationID int64, id cable.Identifier, c *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[*connection]cable.Identifier)
		h.rooms[conversationID] = room
	}
	if _, ok := room[c]; ok {
		return false
	}
	room[c] = id
	return true
}

func (h *hub) leave(conversationID int64, c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[conversationID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// subscribers returns how many connections are subscribed to conversationID.
func (h *hub) subscribers(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// broadcast sends payload to every subscriber of conversationID and
// returns how many connections accepted it.
func (h *hub) broadcast(conversationID int64, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}

	h.mu.RLock()
	targets := make(map[*connection]cable.Identifier, len(h.rooms[conversationID]))
	for c, id := range h.rooms[conversationID] {
		targets[c] = id
	}
	h.mu.RUnlock()

	delivered := 0
	for c, id := range targets {
		if c.frame(cable.ServerFrame{Identifier: id, Message: data}) == nil {
			delivered++
		}
	}
	return delivered
}

func (h *hub) closeAll(code int, reason string) {
	h.mu.Lock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*connection)
	h.rooms = make(map[int64]map[*connection]cable.Identifier)
	h.mu.Unlock()

	for _, c := range conns {
		c.shutdown(code, reason)
	}
}
