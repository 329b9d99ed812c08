package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chartfeed/internal/datafeed"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// go test -v --run TestStreamSubscribe
func TestStreamSubscribe(t *testing.T) {
	router, hub := newTestRouter(&stubSource{})
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	sub := StreamRequest{Op: "subscribe", Symbol: "btcusdt", Resolution: "1", ListenerID: "chart-1"}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return hub.Subscriptions() == 1 })

	hub.Handle(datafeed.TickerEvent{Symbol: "BTCUSDT", LastPrice: 123.5})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.ListenerID != "chart-1" || msg.Bar == nil || msg.Bar.Close != 123.5 {
		t.Errorf("unexpected message: %+v", msg)
	}

	unsub := StreamRequest{Op: "unsubscribe", ListenerID: "chart-1"}
	if err := conn.WriteJSON(unsub); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return hub.Subscriptions() == 0 })
}

// go test -v --run TestStreamCloseUnsubscribes
func TestStreamCloseUnsubscribes(t *testing.T) {
	router, hub := newTestRouter(&stubSource{})
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		req := StreamRequest{Op: "subscribe", Symbol: sym, Resolution: "D", ListenerID: sym}
		if err := conn.WriteJSON(req); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return hub.Subscriptions() == 2 })

	conn.Close()
	waitFor(t, func() bool { return hub.Subscriptions() == 0 })
}

func dialStream(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func readBar(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Bar == nil {
		t.Fatalf("expected a bar, got %+v", msg)
	}
	return msg
}

// go test -v --run TestStreamConnectionsAreIndependent
func TestStreamConnectionsAreIndependent(t *testing.T) {
	router, hub := newTestRouter(&stubSource{})
	server := httptest.NewServer(router)
	defer server.Close()

	first := dialStream(t, server)
	second := dialStream(t, server)
	defer second.Close()

	// same symbol, resolution and listener id on both connections
	for _, conn := range []*websocket.Conn{first, second} {
		req := StreamRequest{Op: "subscribe", Symbol: "BTCUSDT", Resolution: "1", ListenerID: "chart"}
		if err := conn.WriteJSON(req); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return hub.Subscriptions() == 2 })

	hub.Handle(datafeed.TickerEvent{Symbol: "BTCUSDT", LastPrice: 100})
	for i, conn := range []*websocket.Conn{first, second} {
		if msg := readBar(t, conn); msg.Bar.Close != 100 {
			t.Errorf("connection %d: unexpected bar %+v", i, msg.Bar)
		}
	}

	first.Close()
	waitFor(t, func() bool { return hub.Subscriptions() == 1 })

	hub.Handle(datafeed.TickerEvent{Symbol: "BTCUSDT", LastPrice: 101})
	if msg := readBar(t, second); msg.Bar.Close != 101 || msg.ListenerID != "chart" {
		t.Errorf("surviving connection got %+v", msg)
	}
}

// go test -v --run TestStreamRejectsBadRequest
func TestStreamRejectsBadRequest(t *testing.T) {
	router, _ := newTestRouter(&stubSource{})
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	requests := []StreamRequest{
		{Op: "subscribe", Symbol: "BTCUSDT", Resolution: "2", ListenerID: "a"},
		{Op: "resubscribe", ListenerID: "b"},
		{Op: "subscribe", Symbol: "BTCUSDT", Resolution: "1"},
	}
	for _, req := range requests {
		if err := conn.WriteJSON(req); err != nil {
			t.Fatal(err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if msg.Error == "" || msg.Bar != nil {
			t.Errorf("%+v: expected an error message, got %+v", req, msg)
		}
	}
}

// go test -v --run TestHealth
func TestHealth(t *testing.T) {
	check := func(ctx context.Context) map[string]error {
		return map[string]error{"postgres": nil}
	}
	h := NewHealthHandler(check, func() map[string]int { return map[string]int{"subscriptions": 3} }, zap.NewNop())

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || resp.Status != "healthy" || resp.Stats["subscriptions"] != 3 {
		t.Errorf("unexpected health %d %+v", rec.Code, resp)
	}

	failing := func(ctx context.Context) map[string]error {
		return map[string]error{"postgres": nil, "redis": errors.New("connection refused")}
	}
	h = NewHealthHandler(failing, nil, zap.NewNop())
	rec = httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusServiceUnavailable || resp.Status != "degraded" {
		t.Errorf("unexpected degraded health %d %+v", rec.Code, resp)
	}
	if !strings.HasPrefix(resp.Components["redis"], "unhealthy") || resp.Components["postgres"] != "healthy" {
		t.Errorf("unexpected components: %+v", resp.Components)
	}
}
