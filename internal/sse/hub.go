package sse

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Event is the payload written to clients as one SSE data frame.
type Event struct {
	Type     string    `json:"type"`
	FamilyID uuid.UUID `json:"family_id"`
	Data     any       `json:"data"`
}

type Client struct {
	ID       string
	UserID   uuid.UUID
	Families map[uuid.UUID]bool
	Send     chan []byte
}

func NewClient(id string, userID uuid.UUID, families ...uuid.UUID) *Client {
	c := &Client{
		ID:       id,
		UserID:   userID,
		Families: make(map[uuid.UUID]bool, len(families)),
		Send:     make(chan []byte, 64),
	}
	for _, f := range families {
		c.Families[f] = true
	}
	return c
}

type familyMessage struct {
	FamilyID uuid.UUID
	Event    Event
}

// Hub fans family events out to the connected clients subscribed to that
// family. Slow clients miss events rather than block the hub.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *familyMessage
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *familyMessage, 256),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client's Send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Event)
			if err != nil {
				log.WithError(err).WithField("event", msg.Event.Type).Error("failed to encode event")
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients {
				if client.Families[msg.FamilyID] {
					select {
					case client.Send <- data:
					default:
						log.WithField("client_id", client.ID).Debug("client buffer full, event dropped")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SubscribeToFamily adds familyID to the stream clientID. It reports false
// when no such stream is open for userID.
func (h *Hub) SubscribeToFamily(clientID string, userID, familyID uuid.UUID) bool {
	return h.withOwnClient(clientID, userID, func(c *Client) {
		c.Families[familyID] = true
	})
}

func (h *Hub) UnsubscribeFromFamily(clientID string, userID, familyID uuid.UUID) bool {
	return h.withOwnClient(clientID, userID, func(c *Client) {
		delete(c.Families, familyID)
	})
}

func (h *Hub) withOwnClient(clientID string, userID uuid.UUID, fn func(*Client)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok || client.UserID != userID {
		return false
	}
	fn(client)
	return true
}

// UnsubscribeUser drops familyID from every connection of userID. Used when a
// member is removed so they stop receiving the family's events.
func (h *Hub) UnsubscribeUser(userID, familyID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			delete(client.Families, familyID)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishFamilyEvent queues an event for the family's subscribers. It never
// blocks; when the queue is full the event is dropped.
func (h *Hub) PublishFamilyEvent(familyID uuid.UUID, event string, data any) {
	msg := &familyMessage{
		FamilyID: familyID,
		Event:    Event{Type: event, FamilyID: familyID, Data: data},
	}
	select {
	case h.broadcast <- msg:
	default:
		log.WithFields(log.Fields{"family_id": familyID, "event": event}).Warn("event queue full, event dropped")
	}
}
