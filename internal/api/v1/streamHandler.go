package v1

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chartfeed/internal/datafeed"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// StreamRequest is sent by the browser to manage its bar subscriptions.
type StreamRequest struct {
	Op         string `json:"op"` // "subscribe" or "unsubscribe"
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
	ListenerID string `json:"listenerId"`
}

// StreamMessage is pushed to the browser for every emitted bar, or to report a rejected request.
type StreamMessage struct {
	ListenerID string        `json:"listenerId"`
	Bar        *datafeed.Bar `json:"bar,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// FeedOpener hands out a Datafeed for one browser connection together with
// the func that releases it. Feeds from separate calls never share
// subscriptions.
type FeedOpener func() (datafeed.Datafeed, func())

type StreamHandler struct {
	open     FeedOpener
	upgrader websocket.Upgrader
	buffer   int
	logger   *zap.Logger
	nextID   atomic.Uint64
}

func NewStreamHandler(open FeedOpener, buffer int, logger *zap.Logger) *StreamHandler {
	if buffer <= 0 {
		buffer = 256
	}
	return &StreamHandler{
		open: open,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		buffer: buffer,
		logger: logger,
	}
}

// streamConn is one browser connection and the listeners it owns.
type streamConn struct {
	id      string
	feed    datafeed.Datafeed
	conn    *websocket.Conn
	send    chan StreamMessage
	done    chan struct{}
	dropped atomic.Uint64

	mu        sync.Mutex
	listeners map[string]struct{}
}

// Stream handles GET /stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	feed, release := h.open()
	sc := &streamConn{
		id:        "c" + strconv.FormatUint(h.nextID.Add(1), 10),
		feed:      feed,
		conn:      conn,
		send:      make(chan StreamMessage, h.buffer),
		done:      make(chan struct{}),
		listeners: make(map[string]struct{}),
	}
	h.logger.Debug("stream opened", zap.String("conn", sc.id), zap.String("remote", r.RemoteAddr))

	go h.writeLoop(sc)
	h.readLoop(sc)

	close(sc.done)
	sc.mu.Lock()
	for id := range sc.listeners {
		sc.feed.UnsubscribeBars(id)
	}
	sc.mu.Unlock()
	release()
	_ = conn.Close()

	h.logger.Debug("stream closed", zap.String("conn", sc.id), zap.Uint64("dropped", sc.dropped.Load()))
}

func (h *StreamHandler) readLoop(sc *streamConn) {
	sc.conn.SetReadLimit(4096)
	_ = sc.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var req StreamRequest
		if err := sc.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream read error", zap.String("conn", sc.id), zap.Error(err))
			}
			return
		}
		h.handleRequest(sc, req)
	}
}

func (h *StreamHandler) handleRequest(sc *streamConn, req StreamRequest) {
	if req.ListenerID == "" {
		sc.offer(StreamMessage{Error: "missing listenerId"})
		return
	}
	// each connection has its own engine, so ids only need to be unique per connection
	listenerID := req.ListenerID

	switch req.Op {
	case "subscribe":
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		res, err := datafeed.ParseResolution(req.Resolution)
		if symbol == "" || err != nil {
			sc.offer(StreamMessage{ListenerID: req.ListenerID, Error: "invalid symbol or resolution"})
			return
		}

		sc.mu.Lock()
		sc.listeners[listenerID] = struct{}{}
		sc.mu.Unlock()

		info := datafeed.SymbolInfo{Name: symbol, Ticker: symbol}
		sc.feed.SubscribeBars(info, res, func(bar datafeed.Bar) {
			b := bar
			sc.offer(StreamMessage{ListenerID: listenerID, Bar: &b})
		}, listenerID, func() {})

	case "unsubscribe":
		sc.mu.Lock()
		delete(sc.listeners, listenerID)
		sc.mu.Unlock()
		sc.feed.UnsubscribeBars(listenerID)

	default:
		sc.offer(StreamMessage{ListenerID: req.ListenerID, Error: "unknown op: " + req.Op})
	}
}

func (h *StreamHandler) writeLoop(sc *streamConn) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sc.done:
			return
		case msg := <-sc.send:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sc.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("stream write failed", zap.String("conn", sc.id), zap.Error(err))
				_ = sc.conn.Close()
				return
			}
		case <-ticker.C:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = sc.conn.Close()
				return
			}
		}
	}
}

// offer queues msg without blocking; it runs inside engine callbacks.
func (sc *streamConn) offer(msg StreamMessage) {
	select {
	case <-sc.done:
	case sc.send <- msg:
	default:
		sc.dropped.Add(1)
	}
}
