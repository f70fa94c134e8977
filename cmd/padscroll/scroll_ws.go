package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Scroll WebSocket: hub + per-client pumps
// ============================================================================
//
// This file implements the browser-facing scroll dispatcher:
//   - A Hub that tracks connected page clients and fans out scroll frames
//   - Per-client write pumps so one slow page doesn't block others
//   - Per-client read pumps that turn viewport reports into daemon Events
//
// Design constraints:
//   - DaemonState remains daemon-owned; clients only ever see StatusSnapshot.
//   - The initial snapshot on connect goes through the daemon event loop.
//   - Hub.Scroll never blocks the daemon loop. Slow clients are disconnected
//     when their send buffer fills.
//
// Wire format: JSON text frames with an envelope {type, ts, data}.
//
//   server -> page   "state_init"  StatusSnapshot
//                    "scroll"      {dx, dy, behavior}
//                    "device"      {connected, id, name}
//   page -> server   "viewport"    {width, height}
//
// ============================================================================

// wsDeviceData is the JSON `data` payload for "device".
type wsDeviceData struct {
	Connected bool     `json:"connected"`
	ID        DeviceID `json:"id"`
	Name      string   `json:"name,omitempty"`
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

func marshalEnvelope(typ string, data any) ([]byte, error) {
	now := time.Now().UTC()
	return json.Marshal(envelope{Type: typ, Ts: &now, Data: data})
}

// ============================================================================
// Hub
// ============================================================================

// Hub owns the set of connected pages. Membership changes and per-client
// sends happen under mu, and a client's send channel is closed only when the
// client leaves the set, so nothing can send on a closed channel.
type Hub struct {
	logger *slog.Logger

	// frames holds already-serialized JSON frames waiting for fan-out.
	frames chan []byte

	mu      sync.Mutex
	clients map[*Client]struct{}
	stopped bool

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size (default 32).
	SendBuf int

	// BroadcastBuf is the fan-out queue size (default 128).
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start fan-out.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	framesBuf := cfg.BroadcastBuf
	if framesBuf <= 0 {
		framesBuf = 128
	}

	return &Hub{
		logger:  logger,
		frames:  make(chan []byte, framesBuf),
		clients: make(map[*Client]struct{}),
		sendBuf: sendBuf,
	}
}

// Run fans frames out to every client until ctx is canceled, then
// disconnects all of them. Clients that cannot keep up are dropped.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.stop()
			return

		case msg := <-h.frames:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	var slow []*Client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.detach(c, "slow_client")
	}
}

// attach adds c to the hub. It reports false once the hub has stopped.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)
	return true
}

// detach removes c and closes its send channel, which ends its writePump.
// Detaching a client that already left is a no-op.
func (h *Hub) detach(c *Client, reason string) {
	h.mu.Lock()
	_, member := h.clients[c]
	if member {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !member {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

// deliver queues msg for c alone. It reports false if c is no longer
// attached; a client whose queue is full is detached.
func (h *Hub) deliver(c *Client, msg []byte) bool {
	h.mu.Lock()
	if _, member := h.clients[c]; !member {
		h.mu.Unlock()
		return false
	}
	select {
	case c.send <- msg:
		h.mu.Unlock()
		return true
	default:
	}
	h.mu.Unlock()

	h.detach(c, "slow_client")
	return false
}

func (h *Hub) stop() {
	h.mu.Lock()
	h.stopped = true
	gone := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		gone = append(gone, c)
	}
	h.mu.Unlock()

	for _, c := range gone {
		h.detach(c, "shutdown")
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// tryBroadcast enqueues a pre-serialized frame without blocking.
func (h *Hub) tryBroadcast(msg []byte) bool {
	select {
	case h.frames <- msg:
		return true
	default:
		return false
	}
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	if !h.tryBroadcast(msg) {
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// Scroll implements ScrollDispatcher by broadcasting a "scroll" frame to all pages.
func (h *Hub) Scroll(d ScrollDelta) error {
	msg, err := marshalEnvelope("scroll", d)
	if err != nil {
		return err
	}
	if !h.tryBroadcast(msg) {
		return errDispatchQueueFull
	}
	return nil
}

// NotifyDevice implements DeviceNotifier by broadcasting a "device" frame.
func (h *Hub) NotifyDevice(connected bool, id DeviceID, name string) {
	msg, err := marshalEnvelope("device", wsDeviceData{Connected: connected, ID: id, Name: name})
	if err != nil {
		h.logger.Warn("ws device marshal failed", "error", err)
		return
	}
	h.BroadcastBytes(msg)
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	// events receives viewport reports; nil disables them.
	events chan<- Event

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, events chan<- Event, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		events:     events,
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	// maxClientMessage bounds inbound frames; pages only send small viewport reports.
	maxClientMessage = 4096
)

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// write sends one frame with a fresh deadline.
func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}

// writePump drains send into the websocket and pings the page every
// pingPeriod. It returns when the hub closes send or a write fails.
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case msg, attached := <-c.send:
			if !attached {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			err = c.write(websocket.TextMessage, msg)
		case <-ping.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			c.logExit("writePump", "write error", err)
			if c.hub != nil {
				c.hub.detach(c, "write_error")
			}
			return
		}
	}
}

// readPump forwards page messages until the connection fails, then detaches
// the client. Pongs and any other inbound frame extend the read deadline.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxClientMessage)
	alive := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	_ = alive("")
	c.conn.SetPongHandler(alive)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.detach(c, "read_error")
			}
			return
		}
		_ = alive("")
		if kind == websocket.TextMessage {
			c.handleMessage(data)
		}
	}
}

// handleMessage decodes one page message and forwards it to the daemon.
func (c *Client) handleMessage(data []byte) {
	ev, err := UnmarshalEvent(data)
	if err != nil {
		c.logger.Warn("ws invalid client message", "remote_addr", c.remoteAddr, "error", err)
		return
	}

	vp, ok := ev.(ViewportChanged)
	if !ok {
		c.logger.Warn("ws unsupported client message", "remote_addr", c.remoteAddr, "type", eventTypeName(ev))
		return
	}
	if c.events == nil {
		return
	}

	select {
	case c.events <- vp:
		c.logger.Debug("ws viewport", "remote_addr", c.remoteAddr, "width", vp.Width, "height", vp.Height)
	default:
		c.logger.Warn("ws event queue full, dropping viewport", "remote_addr", c.remoteAddr)
	}
}

func (c *Client) logExit(pump, what string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+what+")", "remote_addr", c.remoteAddr, "error", err)
}

func eventTypeName(ev Event) string {
	switch ev.(type) {
	case ResetRequested:
		return "reset"
	case RequestStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ============================================================================
// HTTP Handler
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub *Hub

	// Required for initial snapshot request and viewport reports.
	events chan<- Event
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the WS scroll server components. Call Register on a mux
// and start Hub().Run(ctx).
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleScrollWS)
}

var upgrader = websocket.Upgrader{
	// Pages on any origin may load padscroll.js and connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleScrollWS upgrades and registers a client, then sends state_init.
func (s *Server) handleScrollWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, s.events, r.RemoteAddr, s.logger)
	if !s.hub.attach(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	// The pumps outlive this handler; detaching the client ends them.
	go client.writePump()
	go client.readPump()

	if s.events == nil {
		return
	}

	reply := make(chan StatusSnapshot, 1)
	select {
	case <-r.Context().Done():
		return
	case s.events <- RequestStatus{Reply: reply}:
	}

	waitCtx, cancel := context.WithTimeout(r.Context(), statusReplyTimeout)
	defer cancel()

	select {
	case <-waitCtx.Done():
		if !errors.Is(waitCtx.Err(), context.Canceled) {
			s.logger.Warn("ws status request failed", "error", waitCtx.Err())
		}
		return

	case snap := <-reply:
		initMsg, mErr := marshalEnvelope("state_init", snap)
		if mErr != nil {
			s.logger.Warn("ws state_init marshal failed", "error", mErr)
			return
		}
		// The page may have gone away while the daemon was answering.
		if !s.hub.deliver(client, initMsg) {
			s.logger.Debug("ws client left before state_init", "remote_addr", client.remoteAddr)
		}
	}
}
