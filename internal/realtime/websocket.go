package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cetsp/diario-scraper/internal/crawler"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256

	maxMessagesPerSecond = 10
)

// Client actions and server message types of the /ws/logs protocol.
const (
	ActionStartSearch = "start_search"
	ActionPing        = "ping"

	TypeLog      = "log"
	TypeResult   = "result"
	TypeError    = "error"
	TypeComplete = "complete"
	TypePong     = "pong"
)

// WSConfig holds WebSocket server configuration.
type WSConfig struct {
	WriteWait            time.Duration
	PongWait             time.Duration
	PingPeriod           time.Duration
	MaxMessageSize       int64
	SendBufferSize       int
	MaxMessagesPerSecond int
	AllowedOrigins       []string
}

// DefaultWSConfig returns sensible defaults.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteWait:            writeWait,
		PongWait:             pongWait,
		PingPeriod:           pingPeriod,
		MaxMessageSize:       maxMessageSize,
		SendBufferSize:       sendBufferSize,
		MaxMessagesPerSecond: maxMessagesPerSecond,
		AllowedOrigins:       []string{"*"},
	}
}

// SearchRunner runs a validated search. *Runner implements it.
type SearchRunner interface {
	Run(ctx context.Context, req models.SearchRequest, progress crawler.Progress) (Result, error)
}

// ClientMessage is what the browser sends.
type ClientMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is what the server streams back.
type ServerMessage struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
	SearchID string `json:"search_id,omitempty"`
}

// WSMetrics holds WebSocket metrics.
type WSMetrics struct {
	ConnectionsTotal   atomic.Int64
	ConnectionsCurrent atomic.Int64
	SearchesStarted    atomic.Int64
	MessagesSent       atomic.Int64
	MessagesReceived   atomic.Int64
	Errors             atomic.Int64
}

// SearchSocket serves the /ws/logs endpoint: each connection can run one
// search at a time and receives its progress lines, then the records.
type SearchSocket struct {
	runner   SearchRunner
	config   WSConfig
	log      *logger.Logger
	metrics  WSMetrics
	upgrader websocket.Upgrader
}

// NewSearchSocket creates the handler.
func NewSearchSocket(runner SearchRunner, cfg WSConfig, log *logger.Logger) *SearchSocket {
	if log == nil {
		log = logger.Default()
	}

	return &SearchSocket{
		runner: runner,
		config: cfg,
		log:    log.WithComponent("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.AllowedOrigins) == 0 || cfg.AllowedOrigins[0] == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

func (s *SearchSocket) newLimiter() *rate.Limiter {
	if s.config.MaxMessagesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(s.config.MaxMessagesPerSecond), s.config.MaxMessagesPerSecond)
}

// wsClient is one connection.
type wsClient struct {
	id       string
	socket   *SearchSocket
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	limiter  *rate.Limiter
	log      *logger.Logger
	busy     atomic.Bool
	searches sync.WaitGroup
}

// ServeHTTP upgrades the connection and serves it until the peer leaves.
// A search still running at that point is cancelled.
func (s *SearchSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("failed to upgrade connection")
		s.metrics.Errors.Add(1)
		return
	}

	id := uuid.NewString()
	c := &wsClient{
		id:      id,
		socket:  s,
		conn:    conn,
		send:    make(chan []byte, s.config.SendBufferSize),
		done:    make(chan struct{}),
		limiter: s.newLimiter(),
		log:     s.log.WithFields(map[string]any{"client_id": id}),
	}

	s.metrics.ConnectionsTotal.Add(1)
	s.metrics.ConnectionsCurrent.Add(1)
	defer s.metrics.ConnectionsCurrent.Add(-1)
	c.log.Info("websocket client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx)

	cancel()
	c.searches.Wait()
	close(c.done)
	<-writerDone
	conn.Close()

	c.log.Info("websocket client disconnected")
}

// readPump reads client messages until the connection fails.
func (c *wsClient) readPump(ctx context.Context) {
	cfg := c.socket.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("client disconnected unexpectedly")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		c.socket.metrics.MessagesReceived.Add(1)

		if !c.limiter.Allow() {
			c.log.Debug("rate limit exceeded")
			continue
		}

		c.handleMessage(ctx, message)
	}
}

func (c *wsClient) handleMessage(ctx context.Context, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.WithError(err).Debug("failed to unmarshal client message")
		c.reply(ctx, ServerMessage{Type: TypeError, Message: fmt.Sprintf("Erro interno: %v", err)})
		return
	}

	switch msg.Action {
	case ActionStartSearch:
		c.startSearch(ctx, msg.Payload)
	case ActionPing:
		c.reply(ctx, ServerMessage{Type: TypePong})
	default:
		c.log.Debug("unknown action", "action", msg.Action)
	}
}

func (c *wsClient) startSearch(ctx context.Context, payload json.RawMessage) {
	var req models.SearchRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.reply(ctx, ServerMessage{Type: TypeError, Message: fmt.Sprintf("Erro de validação: %v", err)})
			return
		}
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		c.reply(ctx, ServerMessage{Type: TypeError, Message: fmt.Sprintf("Erro de validação: %v", err)})
		return
	}

	if !c.busy.CompareAndSwap(false, true) {
		c.reply(ctx, ServerMessage{Type: TypeError, Message: "Já existe uma busca em andamento nesta conexão."})
		return
	}

	c.socket.metrics.SearchesStarted.Add(1)
	c.searches.Add(1)
	go func() {
		defer c.searches.Done()
		defer c.busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				c.log.LogPanic(r)
				c.reply(ctx, ServerMessage{Type: TypeError, Message: fmt.Sprintf("Erro interno: %v", r)})
			}
		}()

		res, err := c.socket.runner.Run(ctx, req, func(msg string) {
			c.reply(ctx, ServerMessage{Type: TypeLog, Message: msg})
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.socket.metrics.Errors.Add(1)
			c.reply(ctx, ServerMessage{Type: TypeError, Message: fmt.Sprintf("Erro interno: %v", err), SearchID: res.SearchID})
			return
		}
		c.reply(ctx, ServerMessage{Type: TypeResult, Data: res.Records, SearchID: res.SearchID})
		c.reply(ctx, ServerMessage{Type: TypeComplete, SearchID: res.SearchID})
	}()
}

// reply queues msg for the writer. It blocks while the buffer is full and
// gives up once the connection is gone.
func (c *wsClient) reply(ctx context.Context, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("failed to marshal server message")
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	case <-c.done:
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings.
func (c *wsClient) writePump() {
	cfg := c.socket.config
	ticker := time.NewTicker(cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Debug("write failed")
				c.conn.Close()
				c.discard()
				return
			}
			c.socket.metrics.MessagesSent.Add(1)

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				c.discard()
				return
			}

		case <-c.done:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.socket.config.WriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// flush writes whatever is still queued.
func (c *wsClient) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
			c.socket.metrics.MessagesSent.Add(1)
		default:
			return
		}
	}
}

// discard drains the queue after a write failure so producers never block.
func (c *wsClient) discard() {
	for {
		select {
		case <-c.send:
		case <-c.done:
			return
		}
	}
}

// Stats returns current WebSocket metrics.
func (s *SearchSocket) Stats() map[string]int64 {
	return map[string]int64{
		"connections_total":   s.metrics.ConnectionsTotal.Load(),
		"connections_current": s.metrics.ConnectionsCurrent.Load(),
		"searches_started":    s.metrics.SearchesStarted.Load(),
		"messages_sent":       s.metrics.MessagesSent.Load(),
		"messages_received":   s.metrics.MessagesReceived.Load(),
		"errors":              s.metrics.Errors.Load(),
	}
}
