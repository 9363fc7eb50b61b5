// Package realtime runs searches on behalf of connected clients: it streams
// progress over WebSocket and publishes search events to NATS.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// StreamSearches is the JetStream stream holding search events.
const StreamSearches = "DIARIO_SEARCHES"

const subjectPrefix = "diario.search."

// SubjectSearchLog is where the progress lines of a search are published.
func SubjectSearchLog(searchID string) string {
	return subjectPrefix + searchID + ".log"
}

// SubjectSearchResult is where the final record set of a search is published.
func SubjectSearchResult(searchID string) string {
	return subjectPrefix + searchID + ".result"
}

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	URL            string
	Name           string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	// ResultMaxAge is how long JetStream keeps search events.
	ResultMaxAge time.Duration
}

// DefaultNATSConfig returns a sensible default configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            "nats://localhost:4222",
		Name:           "diario-scraper",
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ResultMaxAge:   7 * 24 * time.Hour,
	}
}

// NATSClient wraps NATS connection and JetStream context.
type NATSClient struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	config NATSConfig
	log    *logger.Logger
	mu     sync.RWMutex
}

// NewNATSClient creates a new NATS client with JetStream support.
func NewNATSClient(cfg NATSConfig, log *logger.Logger) (*NATSClient, error) {
	if log == nil {
		log = logger.Default()
	}

	client := &NATSClient{
		config: cfg,
		log:    log.WithComponent("nats"),
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *NATSClient) connect() error {
	opts := []nats.Option{
		nats.Name(c.config.Name),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.Timeout(c.config.ConnectTimeout),
		nats.DisconnectErrHandler(func(conn *nats.Conn, err error) {
			if err != nil {
				c.log.WithError(err).Warn("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.log.Info("reconnected to NATS", "url", conn.ConnectedUrl())
		}),
		nats.ClosedHandler(func(conn *nats.Conn) {
			c.log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()

	c.log.Info("connected to NATS", "url", c.config.URL)
	return nil
}

// SetupStreams creates or updates the search event stream.
func (c *NATSClient) SetupStreams(ctx context.Context) error {
	cfg := nats.StreamConfig{
		Name:        StreamSearches,
		Description: "Gazette search progress and results",
		Subjects:    []string{subjectPrefix + ">"},
		Storage:     nats.FileStorage,
		Retention:   nats.LimitsPolicy,
		MaxAge:      c.config.ResultMaxAge,
		MaxMsgs:     -1,
		MaxBytes:    -1,
		Replicas:    1,
		Discard:     nats.DiscardOld,
	}

	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	_, err := js.StreamInfo(cfg.Name, nats.Context(ctx))
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := js.AddStream(&cfg, nats.Context(ctx)); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
		}
		c.log.Info("created stream", "stream", cfg.Name)
	case err != nil:
		return fmt.Errorf("failed to get stream info for %s: %w", cfg.Name, err)
	default:
		if _, err := js.UpdateStream(&cfg, nats.Context(ctx)); err != nil {
			c.log.WithError(err).Warn("failed to update stream", "stream", cfg.Name)
		}
	}

	return nil
}

// publish sends event through JetStream and waits for the ack.
func (c *NATSClient) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return errors.New("nats client closed")
	}

	if _, err := js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	c.log.Debug("published event", "subject", subject, "size", len(data))
	return nil
}

// PublishLog publishes one progress line. Progress is fire-and-forget: it
// goes over core NATS without waiting for a stream ack.
func (c *NATSClient) PublishLog(ctx context.Context, searchID, message string) error {
	data, err := json.Marshal(NewSearchLogEvent(searchID, message))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return errors.New("nats client closed")
	}

	return conn.Publish(SubjectSearchLog(searchID), data)
}

// PublishResult publishes the records of a finished search.
func (c *NATSClient) PublishResult(ctx context.Context, event SearchResultEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	return c.publish(ctx, SubjectSearchResult(event.SearchID), event)
}

// IsConnected returns true if connected to NATS.
func (c *NATSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Health reports whether the connection is usable.
func (c *NATSClient) Health(ctx context.Context) error {
	if !c.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

// Close drains and closes the NATS connection.
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Drain()
	c.conn = nil
	c.js = nil

	c.log.Info("closed NATS connection")
	return err
}

// SearchLogEvent carries one progress line of a running search.
type SearchLogEvent struct {
	SearchID  string    `json:"search_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSearchLogEvent stamps a progress line.
func NewSearchLogEvent(searchID, message string) SearchLogEvent {
	return SearchLogEvent{
		SearchID:  searchID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// SearchResultEvent is published once per search when it ends.
type SearchResultEvent struct {
	SearchID    string                     `json:"search_id"`
	StartDate   string                     `json:"start_date"`
	EndDate     string                     `json:"end_date"`
	Terms       []string                   `json:"terms"`
	Count       int                        `json:"count"`
	Records     []models.PublicationRecord `json:"records"`
	Error       string                     `json:"error,omitempty"`
	ElapsedMS   int64                      `json:"elapsed_ms"`
	CompletedAt time.Time                  `json:"completed_at"`
}

// Validate checks if the event has required fields.
func (e *SearchResultEvent) Validate() error {
	if e.SearchID == "" {
		return errors.New("search_id is required")
	}
	if e.Count != len(e.Records) {
		return fmt.Errorf("count %d does not match %d records", e.Count, len(e.Records))
	}
	return nil
}
