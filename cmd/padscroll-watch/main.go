package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

// padscroll-watch connects to the daemon's scroll websocket and prints what
// a browser page would receive. It can also report a viewport so the daemon
// scales distances to it.

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type scrollData struct {
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Behavior string  `json:"behavior"`
}

type deviceData struct {
	Connected bool   `json:"connected"`
	ID        string `json:"id"`
	Name      string `json:"name"`
}

func main() {
	fs := pflag.NewFlagSet("padscroll-watch", pflag.ExitOnError)
	wsURL := fs.String("url", "ws://127.0.0.1:7878/ws", "padscroll websocket URL")
	width := fs.Float64("width", 0, "Report this viewport width on connect (0 = do not report)")
	height := fs.Float64("height", 0, "Report this viewport height on connect (0 = do not report)")
	verbose := fs.BoolP("verbose", "v", false, "Log raw frames")
	_ = fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	u, err := url.Parse(*wsURL)
	if err != nil {
		logger.Error("invalid websocket URL", "url", *wsURL, "error", err)
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	logger.Info("connecting", "url", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("connected (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	if *width > 0 && *height > 0 {
		msg, _ := json.Marshal(map[string]any{
			"type": "viewport",
			"data": map[string]float64{"width": *width, "height": *height},
		})
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, msg)
		writeMu.Unlock()
		if err != nil {
			logger.Warn("failed to report viewport", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket error", "error", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			logger.Debug("frame", "bytes", len(message), "raw", string(message))
			handleFrame(message)
		}
	}()

	select {
	case <-sigc:
		logger.Info("shutting down")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			logger.Warn("error closing connection", "error", err)
		}
	case <-done:
		logger.Info("connection closed")
	}
}

func handleFrame(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	ts := ""
	if env.Ts != nil {
		ts = env.Ts.Local().Format("15:04:05.000") + " "
	}

	switch env.Type {
	case "scroll":
		var s scrollData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			fmt.Printf("%s[SCROLL] %s\n", ts, string(env.Data))
			return
		}
		fmt.Printf("%s[SCROLL] dx=%+.1f dy=%+.1f %s\n", ts, s.DX, s.DY, s.Behavior)

	case "device":
		var dev deviceData
		if err := json.Unmarshal(env.Data, &dev); err != nil {
			fmt.Printf("%s[DEVICE] %s\n", ts, string(env.Data))
			return
		}
		state := "DISCONNECTED"
		if dev.Connected {
			state = "CONNECTED"
		}
		fmt.Printf("%s[DEVICE] %s %s (%s)\n", ts, state, dev.Name, dev.ID)

	case "state_init":
		var pretty map[string]any
		if err := json.Unmarshal(env.Data, &pretty); err != nil {
			fmt.Printf("%s[STATE] %s\n", ts, string(env.Data))
			return
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("%s[STATE]\n%s\n", ts, string(out))

	default:
		fmt.Printf("%s[%s] %s\n", ts, env.Type, string(env.Data))
	}
}
