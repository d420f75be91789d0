// Package feed connects to the host bridge over WebSocket and delivers
// typed snapshots and recommendation sets on channels. The bridge pushes;
// this client never requests.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/observability"
)

// ClientConfig configures the feed client.
type ClientConfig struct {
	// ReadTimeout is the maximum silence tolerated before the connection
	// is considered dead.
	ReadTimeout time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// Buffer is the per-channel capacity. When the consumer lags, the
	// oldest pending snapshot is dropped; only the freshest matters.
	Buffer int
}

// DefaultClientConfig returns the default feed configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		Buffer:       16,
	}
}

// Client receives bridge messages and fans them out by type.
type Client struct {
	endpoint string
	config   ClientConfig
	log      logrus.FieldLogger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	slots   chan domain.SlotSnapshot
	widgets chan domain.WidgetSnapshot
	recs    chan []domain.Recommendation

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient connects to the bridge endpoint and starts reading.
func NewClient(ctx context.Context, endpoint string, config *ClientConfig, log logrus.FieldLogger) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		log:      log.WithField("component", "feed"),
		slots:    make(chan domain.SlotSnapshot, cfg.Buffer),
		widgets:  make(chan domain.WidgetSnapshot, cfg.Buffer),
		recs:     make(chan []domain.Recommendation, cfg.Buffer),
		done:     make(chan struct{}),
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// SlotSnapshots returns the channel of slot snapshots.
func (c *Client) SlotSnapshots() <-chan domain.SlotSnapshot { return c.slots }

// WidgetSnapshots returns the channel of widget snapshots.
func (c *Client) WidgetSnapshots() <-chan domain.WidgetSnapshot { return c.widgets }

// Recommendations returns the channel of recommendation sets.
func (c *Client) Recommendations() <-chan []domain.Recommendation { return c.recs }

// Close shuts the connection down and stops the read loop.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	err := c.conn.Close()
	c.connMu.Unlock()

	c.wg.Wait()
	return err
}

// readLoop reads frames until the connection drops or Close is called.
// Channels are closed on exit so consumers observe the disconnect.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.slots)
	defer close(c.widgets)
	defer close(c.recs)

	for {
		if c.config.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.log.WithError(err).Warn("feed connection lost")
			}
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one frame and delivers it. Undecodable frames are counted
// and skipped; a bad message must never stall the feed.
func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		observability.RecordFeedDecodeError()
		c.log.WithError(err).Warn("undecodable feed message")
		return
	}
	observability.RecordFeedMessage(env.Type)

	switch env.Type {
	case TypeSlotSnapshot:
		snap, err := DecodeSlotSnapshot(env.Payload, env.Timestamp)
		if err != nil {
			observability.RecordFeedDecodeError()
			c.log.WithError(err).Warn("bad slot snapshot")
			return
		}
		deliver(c.slots, snap)

	case TypeWidgetSnapshot:
		w, err := DecodeWidgetSnapshot(env.Payload, env.Timestamp)
		if err != nil {
			observability.RecordFeedDecodeError()
			c.log.WithError(err).Warn("bad widget snapshot")
			return
		}
		deliver(c.widgets, w)

	case TypeRecommendations:
		recs, err := DecodeRecommendations(env.Payload, env.Timestamp)
		if err != nil {
			observability.RecordFeedDecodeError()
			c.log.WithError(err).Warn("bad recommendation set")
			return
		}
		deliver(c.recs, recs)

	default:
		c.log.WithField("type", env.Type).Debug("ignoring unknown feed message")
	}
}

// deliver enqueues v, evicting the oldest pending value when full.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	if c.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			c.connMu.Unlock()
			if err != nil && !c.closed.Load() {
				c.log.WithError(err).Debug("ping failed")
			}
		}
	}
}
