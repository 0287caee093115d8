// Package realtime maintains reconnecting WebSocket channels to the SpendSense
// API and decodes their pushed events.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/metrics"
)

// ErrChannelClosed is returned by Send after Disconnect.
var ErrChannelClosed = errors.New("realtime channel closed")

// State is the connection state of a channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateFailed means reconnect attempts were exhausted. Only Connect leaves it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ackTypes are connection lifecycle messages that carry no event.
var ackTypes = map[string]bool{
	"connection_established": true,
	"connected":              true,
	"subscribed":             true,
	"pong":                   true,
	"heartbeat":              true,
}

// Message is a decoded envelope; Raw holds the whole JSON object.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// TokenSource supplies the bearer token sent on the upgrade request.
type TokenSource interface {
	Token() string
}

// Option customizes a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithMetrics records messages, reconnects and state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithTokens attaches an Authorization header to the upgrade request.
func WithTokens(t TokenSource) Option {
	return func(c *Channel) { c.tokens = t }
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithPingInterval sets the keep-alive ping period; zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(c *Channel) { c.pingInterval = d }
}

// WithTypes restricts delivery to the listed message types. Other types are
// dropped with a debug log.
func WithTypes(types ...string) Option {
	return func(c *Channel) {
		c.accept = make(map[string]bool, len(types))
		for _, t := range types {
			c.accept[t] = true
		}
	}
}

// session is one live socket. done is closed exactly once when it is torn down.
type session struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Channel is a single live socket to one endpoint with bounded automatic
// reconnection. Handlers run on the channel's read goroutine.
type Channel struct {
	name         string
	url          string
	policy       ReconnectPolicy
	tokens       TokenSource
	dialer       *websocket.Dialer
	pingInterval time.Duration
	accept       map[string]bool
	logger       logrus.FieldLogger
	metrics      *metrics.Metrics

	onMessage func(Message)
	onState   func(State)

	mutex    sync.Mutex
	state    State
	session  *session
	attempts int
	gen      int
	ctx      context.Context
	cancel   context.CancelFunc
	timer    *time.Timer
}

// New creates a channel for url. It does not connect until Connect is called.
func New(name, url string, policy ReconnectPolicy, opts ...Option) *Channel {
	c := &Channel{
		name:         name,
		url:          url,
		policy:       policy,
		dialer:       websocket.DefaultDialer,
		pingInterval: 30 * time.Second,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithFields(logrus.Fields{"channel": name, "url": url})
	return c
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// URL returns the endpoint URL.
func (c *Channel) URL() string { return c.url }

// OnMessage sets the callback for accepted messages. Set it before Connect.
func (c *Channel) OnMessage(fn func(Message)) {
	c.mutex.Lock()
	c.onMessage = fn
	c.mutex.Unlock()
}

// OnStateChange sets the callback invoked on every state transition,
// including StateFailed.
func (c *Channel) OnStateChange(fn func(State)) {
	c.mutex.Lock()
	c.onState = fn
	c.mutex.Unlock()
}

// State returns the current state.
func (c *Channel) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Connect starts connecting in the background. It is a no-op while the
// channel is already connecting or connected.
func (c *Channel) Connect() {
	c.mutex.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mutex.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.attempts = 0
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mutex.Unlock()

	c.setState(gen, StateConnecting)
	go c.dial(gen)
}

// Disconnect closes the socket and cancels any pending reconnect. It never
// schedules a reconnect.
func (c *Channel) Disconnect() {
	c.mutex.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	s := c.session
	c.session = nil
	c.attempts = 0
	c.mutex.Unlock()

	if s != nil {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.close()
	}
	c.setState(gen, StateDisconnected)
	c.logger.Debug("realtime channel disconnected")
}

// Send writes a JSON message on the live socket.
func (c *Channel) Send(v any) error {
	c.mutex.Lock()
	s := c.session
	c.mutex.Unlock()
	if s == nil {
		return ErrChannelClosed
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write to %s: %w", c.name, err)
	}
	return nil
}

func (c *Channel) dial(gen int) {
	c.mutex.Lock()
	if gen != c.gen {
		c.mutex.Unlock()
		return
	}
	ctx := c.ctx
	c.mutex.Unlock()

	header := http.Header{}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("connecting")
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			c.logger.WithError(err).WithField("status", resp.StatusCode).Warn("realtime connect failed")
		} else {
			c.logger.WithError(err).Warn("realtime connect failed")
		}
		c.scheduleReconnect(gen)
		return
	}

	s := &session{conn: conn, done: make(chan struct{})}

	c.mutex.Lock()
	if gen != c.gen {
		c.mutex.Unlock()
		s.close()
		return
	}
	c.session = s
	c.attempts = 0
	c.mutex.Unlock()

	c.setState(gen, StateConnected)
	c.logger.Info("realtime channel connected")

	go c.readLoop(gen, s)
	if c.pingInterval > 0 {
		go c.pingLoop(s)
	}
}

// readLoop delivers messages until the socket fails, then hands over to reconnection.
func (c *Channel) readLoop(gen int, s *session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				c.logger.WithError(err).Info("realtime channel closed")
			}
			break
		}
		c.handleMessage(data)
	}

	s.close()

	c.mutex.Lock()
	if gen != c.gen || c.session != s {
		c.mutex.Unlock()
		return
	}
	c.session = nil
	c.mutex.Unlock()

	c.scheduleReconnect(gen)
}

func (c *Channel) pingLoop(s *session) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				c.logger.WithError(err).Debug("ping failed")
				return
			}
		case <-s.done:
			return
		}
	}
}

func (c *Channel) handleMessage(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.metrics.RealtimeMalformedMessage(c.name)
		c.logger.WithError(err).Warn("dropping malformed realtime message")
		return
	}

	if ackTypes[envelope.Type] {
		return
	}
	if c.accept != nil && !c.accept[envelope.Type] {
		c.logger.WithField("type", envelope.Type).Debug("ignoring unknown realtime message type")
		return
	}

	c.metrics.RealtimeMessage(c.name, envelope.Type)

	c.mutex.Lock()
	fn := c.onMessage
	c.mutex.Unlock()
	if fn != nil {
		fn(Message{Type: envelope.Type, Raw: json.RawMessage(data)})
	}
}

func (c *Channel) scheduleReconnect(gen int) {
	c.mutex.Lock()
	if gen != c.gen {
		c.mutex.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	if attempt > c.policy.MaxAttempts {
		c.mutex.Unlock()
		c.logger.WithField("attempts", attempt-1).Error("realtime reconnect attempts exhausted")
		c.setState(gen, StateFailed)
		return
	}
	delay := c.policy.delay(attempt)
	c.timer = time.AfterFunc(delay, func() { c.dial(gen) })
	c.mutex.Unlock()

	c.metrics.RealtimeReconnect(c.name)
	c.logger.WithFields(logrus.Fields{
		"attempt": attempt,
		"delay":   delay.String(),
	}).Info("scheduling realtime reconnect")
	c.setState(gen, StateConnecting)
}

// setState records a transition made on behalf of generation gen; stale
// generations are ignored.
func (c *Channel) setState(gen int, s State) {
	c.mutex.Lock()
	if gen != c.gen || c.state == s {
		c.mutex.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mutex.Unlock()

	c.metrics.SetRealtimeState(c.name, int(s))
	if fn != nil {
		fn(s)
	}
}
