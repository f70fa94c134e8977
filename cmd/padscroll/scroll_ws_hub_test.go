package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// These tests focus on hub behavior (fanout + slow-client disconnection)
// without standing up a real websocket server: Clients have a nil
// websocket.Conn and the tested paths never write to it.

// newTestHub returns a hub with small buffers for deterministic tests.
func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, sendBuf int) *Client {
	return &Client{
		hub:        hub,
		conn:       nil,
		send:       make(chan []byte, sendBuf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
}

func attach(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	if !hub.attach(c) {
		t.Fatalf("expected %s to attach", c.remoteAddr)
	}
}

func runTestHub(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for hub to stop")
		}
	})
	return cancel
}

func decodeEnvelope(t *testing.T, raw []byte) (string, json.RawMessage) {
	t.Helper()
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("invalid frame %q: %v", string(raw), err)
	}
	return env.Type, env.Data
}

func TestHub_ScrollDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	runTestHub(t, hub)

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	attach(t, hub, c1)
	attach(t, hub, c2)

	if err := hub.Scroll(ScrollDelta{DX: -25, DY: 108, Motion: MotionSmooth}); err != nil {
		t.Fatalf("expected scroll to be queued, got %v", err)
	}

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			typ, data := decodeEnvelope(t, got)
			if typ != "scroll" {
				t.Fatalf("%s: expected scroll frame, got %q", c.remoteAddr, typ)
			}
			var d ScrollDelta
			if err := json.Unmarshal(data, &d); err != nil {
				t.Fatalf("%s: invalid scroll data: %v", c.remoteAddr, err)
			}
			if d.DX != -25 || d.DY != 108 || d.Motion != MotionSmooth {
				t.Fatalf("%s: unexpected scroll %+v", c.remoteAddr, d)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive scroll", c.remoteAddr)
		}
	}
}

func TestHub_ScrollFrameUsesBehaviorKey(t *testing.T) {
	msg, err := marshalEnvelope("scroll", ScrollDelta{DX: 1, DY: 2, Motion: MotionSmooth})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(msg), `"behavior":"smooth"`) {
		t.Fatalf("expected behavior key in %s", string(msg))
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	// sendBuf=1 so we can fill it easily; broadcastBuf ample.
	hub := newTestHub(t, 1, 8)
	runTestHub(t, hub)

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	attach(t, hub, slow)
	attach(t, hub, fast)

	// Pre-fill slow client buffer to simulate it being stuck.
	slow.send <- []byte(`"already queued"`)

	hub.NotifyDevice(true, testPad, "Test Pad")

	select {
	case got := <-fast.send:
		if typ, _ := decodeEnvelope(t, got); typ != "device" {
			t.Fatalf("expected device frame, got %q", typ)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled message, then expect the channel to be closed.
	select {
	case <-slow.send:
	default:
	}

	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")

	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("expected 1 remaining client, got %d", n)
	}
}

func TestHub_ScrollReportsFullQueue(t *testing.T) {
	// Hub not running: the broadcast queue never drains.
	hub := newTestHub(t, 1, 1)

	if err := hub.Scroll(ScrollDelta{DY: 1}); err != nil {
		t.Fatalf("expected first scroll to be queued, got %v", err)
	}
	err := hub.Scroll(ScrollDelta{DY: 2})
	if !errors.Is(err, errDispatchQueueFull) {
		t.Fatalf("expected errDispatchQueueFull, got %v", err)
	}
}

func TestClient_HandleMessageForwardsViewportOnly(t *testing.T) {
	events := make(chan Event, 4)
	c := newTestClient(nil, "page", 1)
	c.events = events

	c.handleMessage([]byte(`{"type":"viewport","data":{"width":1280,"height":720}}`))
	c.handleMessage([]byte(`{"type":"reset"}`))
	c.handleMessage([]byte(`not json`))
	c.handleMessage([]byte(`{"type":"viewport","data":{"width":0,"height":720}}`))

	if len(events) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(events))
	}
	ev := <-events
	vp, ok := ev.(ViewportChanged)
	if !ok || vp.Width != 1280 || vp.Height != 720 {
		t.Fatalf("expected ViewportChanged 1280x720, got %#v", ev)
	}
}

func TestServer_StateInitAndViewportRoundTrip(t *testing.T) {
	events := make(chan Event, 8)
	srv := NewServer(slog.Default(), events, ServerConfig{})
	runTestHub(t, srv.Hub())

	mux := http.NewServeMux()
	srv.Register(mux, "/ws")
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// Answer the status request the handler makes on connect.
	go func() {
		for ev := range events {
			if req, ok := ev.(RequestStatus); ok {
				req.Reply <- NewDaemonState(1920, 1080).Snapshot(time.Now())
				continue
			}
			events <- ev
			return
		}
	}()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	typ, data := decodeEnvelope(t, raw)
	if typ != "state_init" {
		t.Fatalf("expected state_init, got %q", typ)
	}
	var snap StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("invalid state_init data: %v", err)
	}
	if snap.Viewport.Width != 1920 || snap.Device != nil {
		t.Fatalf("unexpected state_init %+v", snap)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"viewport","data":{"width":800,"height":600}}`)); err != nil {
		t.Fatalf("write viewport: %v", err)
	}

	select {
	case ev := <-events:
		vp, ok := ev.(ViewportChanged)
		if !ok || vp.Width != 800 || vp.Height != 600 {
			t.Fatalf("expected ViewportChanged 800x600, got %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for viewport event")
	}
}

func TestHub_DeliverAfterDetachIsRejected(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	c := newTestClient(hub, "page", 1)
	attach(t, hub, c)

	hub.detach(c, "read_error")
	hub.detach(c, "read_error") // second detach is a no-op

	if hub.deliver(c, []byte(`{"type":"state_init"}`)) {
		t.Fatalf("expected deliver to a detached client to fail")
	}
	if _, open := <-c.send; open {
		t.Fatalf("expected send channel to be closed after detach")
	}
}

func TestHub_DeliverDetachesFullClient(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	c := newTestClient(hub, "page", 1)
	attach(t, hub, c)

	if !hub.deliver(c, []byte(`1`)) {
		t.Fatalf("expected first frame to be queued")
	}
	if hub.deliver(c, []byte(`2`)) {
		t.Fatalf("expected second frame to be refused on a full queue")
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("expected full client to be detached, got %d clients", n)
	}
}

func TestHub_StopDetachesClientsAndRefusesNewOnes(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	c := newTestClient(hub, "page", 1)
	attach(t, hub, c)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for hub to stop")
	}

	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("expected no clients after stop, got %d", n)
	}
	if hub.attach(newTestClient(hub, "late", 1)) {
		t.Fatalf("expected attach to be refused after stop")
	}
}

func TestServer_StateInitAfterPageLeft(t *testing.T) {
	events := make(chan Event, 8)
	srv := NewServer(slog.Default(), events, ServerConfig{})
	runTestHub(t, srv.Hub())

	handled := make(chan any, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		defer func() { handled <- recover() }()
		srv.handleScrollWS(w, r)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var req RequestStatus
	select {
	case ev := <-events:
		var ok bool
		if req, ok = ev.(RequestStatus); !ok {
			t.Fatalf("expected RequestStatus, got %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for status request")
	}

	// The page goes away before the daemon answers.
	conn.Close()
	waitUntil(t, 2*time.Second, func() bool {
		return srv.Hub().ClientCount() == 0
	}, "client not detached after close")

	req.Reply <- NewDaemonState(1920, 1080).Snapshot(time.Now())

	select {
	case p := <-handled:
		if p != nil {
			t.Fatalf("expected handler to return cleanly, got panic: %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for handler to return")
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
