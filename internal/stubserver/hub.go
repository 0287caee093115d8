package stubserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// TopicOperator carries status changes for every recommendation.
const TopicOperator = "operator"

// SubscriptionsTopic is a user's subscription cancellation topic.
func SubscriptionsTopic(userID string) string { return "subscriptions:" + userID }

// FeedbackTopic is a user's recommendation feedback topic.
func FeedbackTopic(userID string) string { return "feedback:" + userID }

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans messages out to the sockets subscribed to a topic.
type Hub struct {
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger

	mu      sync.RWMutex
	clients map[string]map[*hubClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]map[*hubClient]struct{}),
	}
}

// Serve upgrades the request and subscribes the socket to topic.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, sendBuffer)}
	ack, _ := json.Marshal(map[string]string{"type": "connection_established", "topic": topic})
	c.send <- ack

	h.mu.Lock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*hubClient]struct{})
	}
	h.clients[topic][c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("topic", topic).Debug("websocket client connected")

	go h.writePump(c)
	h.readPump(topic, c)
}

func (h *Hub) readPump(topic string, c *hubClient) {
	defer func() {
		h.remove(topic, c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			h.mu.RLock()
			if _, ok := h.clients[topic][c]; ok {
				h.trySend(c, pong)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (h *Hub) remove(topic string, c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[topic][c]; ok {
		delete(h.clients[topic], c)
		c.close()
	}
}

// trySend queues data without blocking. Callers hold h.mu and have checked
// that c is still registered, so c.send is open.
func (h *Hub) trySend(c *hubClient, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("websocket client too slow, dropping message")
	}
}

// Broadcast sends v as JSON to every socket on topic.
func (h *Hub) Broadcast(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.BroadcastRaw(topic, data)
	return nil
}

// BroadcastRaw sends data unchanged to every socket on topic.
func (h *Hub) BroadcastRaw(topic string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[topic] {
		h.trySend(c, data)
	}
}

// Clients counts the sockets subscribed to topic.
func (h *Hub) Clients(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// CloseTopic drops every socket on topic, as a server restart would.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[topic] {
		delete(h.clients[topic], c)
		c.close()
	}
}

// CloseAll drops every socket.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, topic)
	}
}
