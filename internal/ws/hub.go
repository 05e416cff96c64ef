package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
)

// Hub fans audit events out to websocket subscribers. It implements
// audit.Logger so it can sit next to the other sinks.
type Hub struct {
	clients    map[*Client]bool
	topics     map[audit.EventType]map[*Client]bool
	broadcast  chan audit.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		topics:     make(map[audit.EventType]map[*Client]bool),
		broadcast:  make(chan audit.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.publish(event)
		}
	}
}

// Log queues the event for delivery. A full queue drops the event; slow
// subscribers never hold up a comparison.
func (h *Hub) Log(_ context.Context, event audit.Event) error {
	event.Fill()

	select {
	case h.broadcast <- event:
	default:
	}
	return nil
}

// join registers client unless the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.topics[client.msgType] == nil {
		h.topics[client.msgType] = make(map[*Client]bool)
	}
	h.topics[client.msgType][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.drop(client)
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	delete(h.topics[client.msgType], client)
	if len(h.topics[client.msgType]) == 0 {
		delete(h.topics, client.msgType)
	}
	close(client.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.drop(client)
	}
}

func (h *Hub) publish(event audit.Event) {
	message, err := json.Marshal(Message{
		Type:      event.EventType,
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	topics := []audit.EventType{allTypes}
	if event.EventType != allTypes {
		topics = append(topics, event.EventType)
	}
	for _, topic := range topics {
		for client := range h.topics[topic] {
			select {
			case client.send <- message:
			default:
				h.drop(client)
			}
		}
	}
}
