package bybit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxArgsPerSubscribe keeps each subscribe request under Bybit's args limit.
const maxArgsPerSubscribe = 10

var ErrNotConnected = errors.New("websocket not connected")

// WSClient handles the WebSocket connection to Bybit, topic subscriptions and message routing.
type WSClient struct {
	url            string
	pingInterval   time.Duration
	reconnectDelay time.Duration
	logger         *zap.Logger

	mu      sync.Mutex // guards conn and topics
	conn    *websocket.Conn
	topics  map[string]struct{}
	writeMu sync.Mutex
	handler func([]byte)
}

// NewWSClient creates a new WebSocket client with the given URL and logger.
func NewWSClient(url string, pingInterval time.Duration, logger *zap.Logger) *WSClient {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &WSClient{
		url:            url,
		pingInterval:   pingInterval,
		reconnectDelay: 3 * time.Second,
		logger:         logger,
		topics:         make(map[string]struct{}),
	}
}

// SetMessageHandler sets the function to handle incoming messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connect establishes the WebSocket connection and subscribes to every topic
// registered so far. It does not start the listener.
func (c *WSClient) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.logger.Error("Failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		return err
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	topics := c.topicsLocked()
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.logger.Info("WebSocket connected", zap.String("url", c.url), zap.Int("topics", len(topics)))

	if err := c.subscribe(topics); err != nil {
		c.logger.Error("Failed to send subscription", zap.Error(err))
		return err
	}
	return nil
}

// SubscribeToKlines registers the kline topic for symbol and interval.
func (c *WSClient) SubscribeToKlines(symbol, interval string) error {
	if !IsValidInterval(interval) {
		return fmt.Errorf("invalid kline interval: %s", interval)
	}
	return c.addTopic(KlineTopic(interval, symbol))
}

// SubscribeToTicker registers the ticker topic for symbol.
func (c *WSClient) SubscribeToTicker(symbol string) error {
	return c.addTopic(TickerTopic(symbol))
}

// Topics returns the registered topics, sorted.
func (c *WSClient) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topicsLocked()
}

// Listen reads messages until ctx is done, reconnecting and resubscribing on read errors.
func (c *WSClient) Listen(ctx context.Context) {
	go c.keepAlive(ctx)
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("WebSocket read error", zap.Error(err))
			if !c.reconnect(ctx) {
				return
			}
			continue // Start listening again with the new connection
		}

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// reconnect retries Connect until it succeeds or ctx is done.
func (c *WSClient) reconnect(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.reconnectDelay):
		}
		if err := c.Connect(); err != nil {
			c.logger.Warn("Retrying reconnect...")
			continue
		}
		c.logger.Info("Reconnected successfully")
		return true
	}
}

func (c *WSClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeJSON(map[string]interface{}{"op": "ping"}); err != nil && !errors.Is(err, ErrNotConnected) {
				c.logger.Warn("ping failed", zap.Error(err))
			}
		}
	}
}

func (c *WSClient) addTopic(topic string) error {
	c.mu.Lock()
	if _, ok := c.topics[topic]; ok {
		c.mu.Unlock()
		return nil
	}
	c.topics[topic] = struct{}{}
	connected := c.conn != nil
	c.mu.Unlock()

	// sent on the next (re)connect otherwise
	if !connected {
		return nil
	}
	return c.subscribe([]string{topic})
}

func (c *WSClient) subscribe(topics []string) error {
	for i := 0; i < len(topics); i += maxArgsPerSubscribe {
		end := min(i+maxArgsPerSubscribe, len(topics))
		subMsg := map[string]interface{}{
			"op":   "subscribe",
			"args": topics[i:end],
		}
		if err := c.writeJSON(subMsg); err != nil {
			return fmt.Errorf("websocket subscribe failed: %w", err)
		}
	}
	return nil
}

func (c *WSClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *WSClient) topicsLocked() []string {
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
