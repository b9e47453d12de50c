package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message tells a group's clients that something changed.
type Message struct {
	Type    string         `json:"type"`
	GroupID string         `json:"group_id"`
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      string         `json:"id,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage derives Type from entity and action, e.g. "task_completed".
func NewMessage(groupID, entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:    fmt.Sprintf("%s_%s", entity, action),
		GroupID: groupID,
		Entity:  entity,
		Action:  action,
		ID:      id,
		Extra:   extra,
	}
}

// Hub tracks connected clients per group.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.groups[c.groupID]
	if !ok {
		set = make(map[*Client]struct{})
		h.groups[c.groupID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the client and closes its send channel. Calling it
// twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.groups[c.groupID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.groups, c.groupID)
	}
}

// Broadcast sends msg to the clients of msg.GroupID. A client whose buffer
// is full misses the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.groups[msg.GroupID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropped message for slow client", "group_id", msg.GroupID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients across all groups.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.groups {
		n += len(set)
	}
	return n
}

func (h *Hub) GroupClientCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
