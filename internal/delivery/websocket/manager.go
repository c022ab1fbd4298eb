package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ interfaces.EventNotifier = (*WebSocketManager)(nil)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
	eventBuffer    = 1024
)

// WebSocketManager управляет WebSocket-соединениями. Каждая сессия - отдельная
// тема; клиент подписан на сессию, указанную при подключении, и может
// подписаться на другие командой subscribe.
type WebSocketManager struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	events     chan Message
	done       chan struct{}
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *zap.Logger
}

// Client представляет WebSocket-клиента
type Client struct {
	ID       uuid.UUID
	ViewerID string
	Conn     *websocket.Conn
	Manager  *WebSocketManager
	Send     chan []byte

	topicsMu sync.RWMutex
	topics   map[string]bool
}

// Message представляет сообщение для отправки через WebSocket
type Message struct {
	Type    models.SessionEventType `json:"type"`
	Topic   string                  `json:"topic"`
	Payload interface{}             `json:"payload"`
}

// NewWebSocketManager создает новый экземпляр WebSocketManager.
// allowedOrigins пустой - разрешены все источники.
func NewWebSocketManager(allowedOrigins []string, logger *zap.Logger) *WebSocketManager {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketManager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Message, eventBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		logger: logger.Named("WebSocketManager"),
	}
}

// Start запускает WebSocketManager в отдельной горутине до отмены ctx.
func (m *WebSocketManager) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *WebSocketManager) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.mu.Lock()
			for id, client := range m.clients {
				close(client.Send)
				delete(m.clients, id)
			}
			m.mu.Unlock()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.logger.Debug("Client connected", zap.String("clientID", client.ID.String()), zap.String("viewerID", client.ViewerID))

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				close(client.Send)
				delete(m.clients, client.ID)
				m.logger.Debug("Client disconnected", zap.String("clientID", client.ID.String()))
			}
			m.mu.Unlock()

		case message := <-m.events:
			data, err := json.Marshal(message)
			if err != nil {
				m.logger.Error("Failed to marshal websocket message", zap.Error(err))
				continue
			}
			m.mu.Lock()
			for id, client := range m.clients {
				if !client.IsSubscribed(message.Topic) {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// Медленный клиент - отключаем
					close(client.Send)
					delete(m.clients, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Notify ставит событие в очередь для подписчиков сессии. Никогда не
// блокирует: при полной очереди событие отбрасывается.
func (m *WebSocketManager) Notify(event models.SessionEvent) {
	msg := Message{Type: event.Type, Topic: event.SessionID}
	if event.Receipt != nil {
		msg.Payload = event.Receipt
	} else {
		msg.Payload = event.Snapshot
	}
	select {
	case m.events <- msg:
	default:
		m.logger.Warn("Event queue full, dropping event", zap.String("sessionID", event.SessionID), zap.String("type", string(event.Type)))
	}
}

// Serve переводит запрос в WebSocket и подписывает соединение на sessionID.
func (m *WebSocketManager) Serve(w http.ResponseWriter, r *http.Request, sessionID, viewerID string) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.New(),
		ViewerID: viewerID,
		Conn:     conn,
		Manager:  m,
		Send:     make(chan []byte, sendBuffer),
		topics:   map[string]bool{sessionID: true},
	}
	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// ClientCount возвращает число подключенных клиентов.
func (m *WebSocketManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Manager.unregister <- c:
		case <-c.Manager.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.logger.Debug("Unexpected websocket close", zap.Error(err))
			}
			break
		}

		var cmd struct {
			Action string `json:"action"`
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Topic)
		case "unsubscribe":
			c.Unsubscribe(cmd.Topic)
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe подписывает клиента на тему
func (c *Client) Subscribe(topic string) {
	if topic == "" {
		return
	}
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	c.topics[topic] = true
}

// Unsubscribe отписывает клиента от темы
func (c *Client) Unsubscribe(topic string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	delete(c.topics, topic)
}

// IsSubscribed проверяет, подписан ли клиент на тему
func (c *Client) IsSubscribed(topic string) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	return c.topics[topic]
}
