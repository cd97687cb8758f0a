package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"social-backend/backend/internal/auth"
	"social-backend/backend/internal/ledger"
	"social-backend/backend/internal/notification"
	"social-backend/backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Event types pushed to clients
const (
	EventMessageCreated      = "message.created"
	EventNotificationCreated = "notification.created"
)

// Event is the envelope written to websocket clients
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	accountID string
	conn      *websocket.Conn
	send      chan Event
	once      sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub keeps the live websocket connections of each account and pushes events to them
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a Hub accepting upgrades from allowedOrigin; "*" accepts any origin
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
		logger: logger.Named("realtime"),
	}
}

// ServeWS upgrades an authenticated request and streams the account's events until it disconnects
func (h *Hub) ServeWS(c *gin.Context) {
	accountID := auth.AccountID(c)
	if accountID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Acesso não autorizado"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("account_id", accountID), zap.Error(err))
		return
	}

	cl := &client{accountID: accountID, conn: conn, send: make(chan Event, sendBuffer)}
	h.register(cl)
	go h.writePump(cl)
	h.readPump(cl)
}

// Publish pushes ev to every connection of the given accounts. Slow connections are dropped.
func (h *Hub) Publish(accountIDs []string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range accountIDs {
		for cl := range h.clients[id] {
			select {
			case cl.send <- ev:
			default:
				h.logger.Warn("Dropping slow websocket client", zap.String("account_id", id))
				h.removeLocked(cl)
			}
		}
	}
}

// PublishMessage pushes a new message to both participants
func (h *Hub) PublishMessage(_ context.Context, conv ledger.Conversation, msg ledger.Message) {
	h.Publish(conv.Participants, Event{Type: EventMessageCreated, Payload: msg})
}

// PublishNotification pushes a new notification to its owner
func (h *Hub) PublishNotification(_ context.Context, n notification.Notification) {
	h.Publish([]string{n.OwnerID}, Event{Type: EventNotificationCreated, Payload: n})
}

// Connections counts live connections of accountID
func (h *Hub) Connections(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for cl := range set {
			h.removeLocked(cl)
		}
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[cl.accountID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[cl.accountID] = set
	}
	set[cl] = struct{}{}
	h.logger.Debug("Websocket client connected", zap.String("account_id", cl.accountID))
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(cl)
}

// removeLocked must be called with h.mu held
func (h *Hub) removeLocked(cl *client) {
	set := h.clients[cl.accountID]
	if _, ok := set[cl]; !ok {
		return
	}
	delete(set, cl)
	if len(set) == 0 {
		delete(h.clients, cl.accountID)
	}
	cl.close()
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		cl.conn.Close()
		h.logger.Debug("Websocket client disconnected", zap.String("account_id", cl.accountID))
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Websocket read failed", zap.String("account_id", cl.accountID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
