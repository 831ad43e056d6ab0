package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"reservo/models"
)

// SendBuffer is the per-connection outbound buffer. A full buffer drops
// the message instead of blocking the broadcaster; the reconnection sync
// pull recovers anything a slow client missed.
const SendBuffer = 16

// BookingSource supplies booking snapshots for the reconnection sync
// pull. Typically backed by the durable booking repository.
type BookingSource interface {
	ListByProviderSince(ctx context.Context, providerID string, since time.Time) ([]models.Booking, error)
}

// Client is one connected subscriber. Its room set is scoped to the
// connection and is not persisted server-side.
type Client struct {
	ID       string
	ClientID string
	Send     chan []byte

	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewClient builds a connection handle for the given caller identity.
func NewClient(connID, clientID string) *Client {
	return &Client{
		ID:       connID,
		ClientID: clientID,
		Send:     make(chan []byte, SendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

func (c *Client) inRoom(providerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[providerID]
	return ok
}

func (c *Client) roomList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// Hub fans availability deltas and booking events out to provider rooms.
// It only observes and republishes; it never mutates reservation state,
// and a failed delivery never rolls anything back.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	deltas   DeltaStore
	bookings BookingSource
	logger   *zap.Logger
	now      func() time.Time
}

// NewHub builds a hub over the given delta history. bookings may be nil;
// sync pulls then carry deltas only.
func NewHub(deltas DeltaStore, bookings BookingSource, logger *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		deltas:   deltas,
		bookings: bookings,
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.Send)
}

// Subscribe joins the connection to a provider room.
func (h *Hub) Subscribe(c *Client, providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[providerID] = struct{}{}
}

// Unsubscribe leaves a provider room.
func (h *Hub) Unsubscribe(c *Client, providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, providerID)
}

// HandleMessage processes one inbound client message.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, raw []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debug("ignoring malformed client message",
			zap.String("conn_id", c.ID), zap.Error(err))
		return
	}
	switch msg.Action {
	case models.ActionSubscribe:
		if msg.ProviderID != "" {
			h.Subscribe(c, msg.ProviderID)
		}
	case models.ActionUnsubscribe:
		if msg.ProviderID != "" {
			h.Unsubscribe(c, msg.ProviderID)
		}
	case models.ActionRequestSync:
		h.SyncPull(ctx, c, msg.LastSyncTime)
	}
}

// SyncPull answers a reconnect:request-sync with the authoritative deltas
// and bookings produced since the client's last-known-good timestamp, one
// reconnect:sync-data message per subscribed provider.
func (h *Hub) SyncPull(ctx context.Context, c *Client, since time.Time) {
	for _, providerID := range c.roomList() {
		deltas, err := h.deltas.Since(ctx, providerID, since)
		if err != nil {
			h.logger.Error("sync pull failed to read deltas",
				zap.String("provider_id", providerID), zap.Error(err))
			continue
		}

		var missed []models.Booking
		if h.bookings != nil {
			missed, err = h.bookings.ListByProviderSince(ctx, providerID, since)
			if err != nil {
				h.logger.Error("sync pull failed to read bookings",
					zap.String("provider_id", providerID), zap.Error(err))
			}
		}

		h.send(c, models.EventSyncData, models.SyncDataPayload{
			ProviderID:     providerID,
			Since:          since,
			MissedDeltas:   deltas,
			MissedBookings: missed,
		})
	}
}

// SlotChanged implements the ledger observer: the delta is recorded and
// broadcast at-least-once to the provider's room.
func (h *Hub) SlotChanged(delta models.AvailabilityDelta) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.deltas.Append(ctx, delta); err != nil {
		h.logger.Error("failed to record availability delta",
			zap.String("provider_id", delta.ProviderID), zap.Error(err))
	}

	h.broadcast(delta.ProviderID, models.EventAvailabilityUpdated, models.AvailabilityUpdatedPayload{
		ProviderID: delta.ProviderID,
		Date:       delta.Date,
		Delta:      delta,
	})
}

// BookingEvent broadcasts a booking snapshot to the provider's room.
func (h *Hub) BookingEvent(eventType string, b models.Booking) {
	h.broadcast(b.ProviderID, eventType, models.BookingEventPayload{
		Booking:       b,
		AffectedSlots: []models.Interval{b.Interval},
	})
}

// ConflictNotice unicasts a conflict to every connection of the
// requesting client.
func (h *Hub) ConflictNotice(clientID string, payload models.ConflictPayload) {
	data, ok := h.envelope(models.EventBookingConflict, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.ClientID == clientID {
			h.deliver(c, data)
		}
	}
}

// WaitlistNotice tells a provider's room that a slot reopened.
func (h *Hub) WaitlistNotice(providerID string, payload models.WaitlistPayload) {
	h.broadcast(providerID, models.EventWaitlistNotification, payload)
}

func (h *Hub) broadcast(providerID, eventType string, payload any) {
	data, ok := h.envelope(eventType, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.inRoom(providerID) {
			h.deliver(c, data)
		}
	}
}

func (h *Hub) send(c *Client, eventType string, payload any) {
	data, ok := h.envelope(eventType, payload)
	if !ok {
		return
	}
	h.deliver(c, data)
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		h.logger.Warn("dropping message for slow client",
			zap.String("conn_id", c.ID), zap.String("client_id", c.ClientID))
	}
}

func (h *Hub) envelope(eventType string, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal event payload",
			zap.String("event", eventType), zap.Error(err))
		return nil, false
	}
	data, err := json.Marshal(models.Envelope{
		Type:       eventType,
		Payload:    body,
		ProducedAt: h.now(),
	})
	if err != nil {
		h.logger.Error("failed to marshal event envelope",
			zap.String("event", eventType), zap.Error(err))
		return nil, false
	}
	return data, true
}
