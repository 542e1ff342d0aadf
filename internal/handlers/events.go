package handlers

import (
	"log/slog"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/transly/internal/events"
	"github.com/codebuildervaibhav/transly/internal/types"
)

// EventsHandler pushes pipeline events to WebSocket clients
type EventsHandler struct {
	hub    *events.Hub
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *events.Hub, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		hub:    hub,
		logger: logger.With("component", "events"),
	}
}

// Handle streams every event emitted while the connection is open. With a
// ?user= query only that owner's events are sent.
func (h *EventsHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	owner := c.Query("user")
	sub, cancel := h.hub.Subscribe()
	defer cancel()

	h.logger.Debug("websocket connection established", "owner_id", owner, "listeners", h.hub.Listeners())

	// The client only talks to close the connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if owner != "" && !belongsTo(ev, owner) {
				continue
			}
			if err := c.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", "err", err)
				return
			}
		}
	}
}

func belongsTo(ev events.Event, owner string) bool {
	status, ok := ev.Data.(types.StatusEvent)
	return ok && status.OwnerID == owner
}
