package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"reward-guard-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventsHandler streams settlement outcomes and tamper alerts to connected
// operators. It implements settlement.Notifier.
type EventsHandler struct {
	hub    *eventsHub
	logger *zap.Logger
}

type eventsHub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan *Message
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewEventsHandler(logger *zap.Logger) *EventsHandler {
	hub := &eventsHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan *Message, 100),
	}

	go hub.run()

	return &EventsHandler{hub: hub, logger: logger}
}

func (h *EventsHandler) HandleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	h.hub.register <- conn

	defer func() {
		h.hub.unregister <- conn
		conn.Close()
	}()

	// Operators only listen; the read loop just detects disconnects and
	// answers pings.
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", zap.Error(err))
			}
			break
		}

		if msg.Type == "PING" {
			conn.WriteJSON(Message{Type: "PONG", Data: gin.H{"timestamp": time.Now().Unix()}})
		}
	}
}

// NotifySettlement pushes a settlement outcome to every connected operator.
func (h *EventsHandler) NotifySettlement(event models.SettlementEvent) {
	h.hub.broadcast <- &Message{Type: "SETTLEMENT_RESULT", Data: event}
}

// NotifyTamper flags a potential amount-substitution attempt.
func (h *EventsHandler) NotifyTamper(subject, resource string) {
	h.hub.broadcast <- &Message{
		Type: "TAMPER_ALERT",
		Data: gin.H{
			"subject":   subject,
			"resource":  resource,
			"timestamp": time.Now().Unix(),
		},
	}
}

func (hub *eventsHub) run() {
	for {
		select {
		case conn := <-hub.register:
			hub.clients[conn] = true

		case conn := <-hub.unregister:
			delete(hub.clients, conn)

		case message := <-hub.broadcast:
			for conn := range hub.clients {
				conn.WriteJSON(message)
			}
		}
	}
}
