package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// ============================================================================
// padscroll-ctl - Command-line IPC Client
// ============================================================================
// Sends requests to the padscroll daemon over its Unix domain socket.
//
// Usage:
//   padscroll-ctl status
//   padscroll-ctl reset
//   padscroll-ctl viewport 1280 720
//
// Options:
//   --socket PATH    Unix domain socket path (default: /tmp/padscroll.sock)
//   --json           Print the raw status JSON
// ============================================================================

const defaultSocket = "/tmp/padscroll.sock"

// request is the line-delimited JSON envelope the daemon expects.
type request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// response represents the daemon's reply
type response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// status mirrors the daemon's status snapshot (fields used for display only).
type status struct {
	Device *struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Buttons int    `json:"buttons"`
	} `json:"device"`
	Buttons []struct {
		Button string  `json:"button"`
		Index  int     `json:"index"`
		Phase  string  `json:"phase"`
		HeldMs float64 `json:"held_ms"`
	} `json:"buttons"`
	Viewport struct {
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		Reported bool    `json:"reported"`
		StepX    float64 `json:"step_x"`
		StepY    float64 `json:"step_y"`
	} `json:"viewport"`
	Stats struct {
		Intents          uint64  `json:"intents"`
		Scrolls          uint64  `json:"scrolls"`
		MissedSamples    uint64  `json:"missed_samples"`
		DispatchFailures uint64  `json:"dispatch_failures"`
		LastDX           float64 `json:"last_dx"`
		LastDY           float64 `json:"last_dy"`
		LastError        string  `json:"last_error"`
	} `json:"stats"`
}

func main() {
	fs := pflag.NewFlagSet("padscroll-ctl", pflag.ContinueOnError)
	socketPath := fs.StringP("socket", "s", defaultSocket, "Unix domain socket path")
	rawJSON := fs.Bool("json", false, "Print the raw status JSON")
	timeout := fs.Duration("timeout", 2*time.Second, "Request timeout")
	fs.Usage = func() { printUsage(os.Stderr, fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	req, err := buildRequest(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage(os.Stderr, fs)
		os.Exit(2)
	}

	resp, err := send(*socketPath, req, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if req.Type != "status" {
		fmt.Println("ok")
		return
	}
	if *rawJSON {
		fmt.Println(string(resp.Data))
		return
	}
	if err := printStatus(os.Stdout, resp.Data); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildRequest turns positional arguments into a daemon request.
func buildRequest(args []string) (request, error) {
	if len(args) == 0 {
		return request{}, fmt.Errorf("missing command")
	}

	switch args[0] {
	case "status":
		return request{Type: "status"}, nil

	case "reset":
		return request{Type: "reset"}, nil

	case "viewport":
		if len(args) != 3 {
			return request{}, fmt.Errorf("viewport requires WIDTH and HEIGHT")
		}
		w, err := strconv.ParseFloat(args[1], 64)
		if err != nil || w <= 0 {
			return request{}, fmt.Errorf("invalid width %q", args[1])
		}
		h, err := strconv.ParseFloat(args[2], 64)
		if err != nil || h <= 0 {
			return request{}, fmt.Errorf("invalid height %q", args[2])
		}
		data, err := json.Marshal(map[string]float64{"width": w, "height": h})
		if err != nil {
			return request{}, err
		}
		return request{Type: "viewport", Data: data}, nil

	default:
		return request{}, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, req request, timeout time.Duration) (response, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	line, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return response{}, fmt.Errorf("send request: %w", err)
	}

	var resp response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func printStatus(w io.Writer, data json.RawMessage) error {
	var s status
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	if s.Device == nil {
		fmt.Fprintln(w, "device:    none")
	} else {
		fmt.Fprintf(w, "device:    %s (%s, %d buttons)\n", s.Device.Name, s.Device.ID, s.Device.Buttons)
	}
	source := "default"
	if s.Viewport.Reported {
		source = "reported"
	}
	fmt.Fprintf(w, "viewport:  %gx%g (%s), step %gx%g\n",
		s.Viewport.Width, s.Viewport.Height, source, s.Viewport.StepX, s.Viewport.StepY)
	for _, b := range s.Buttons {
		fmt.Fprintf(w, "  %-6s #%-2d %-10s %6.0fms\n", b.Button, b.Index, b.Phase, b.HeldMs)
	}
	fmt.Fprintf(w, "scrolls:   %d (%d intents), last %g,%g\n", s.Stats.Scrolls, s.Stats.Intents, s.Stats.LastDX, s.Stats.LastDY)
	fmt.Fprintf(w, "missed:    %d samples\n", s.Stats.MissedSamples)
	fmt.Fprintf(w, "failures:  %d", s.Stats.DispatchFailures)
	if s.Stats.LastError != "" {
		fmt.Fprintf(w, " (last: %s)", s.Stats.LastError)
	}
	fmt.Fprintln(w)
	return nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `padscroll-ctl - Inspect and control the padscroll daemon via IPC

Usage:
  padscroll-ctl [options] <command> [args]

Commands:
  status                   Show device, button phases, viewport and counters
  reset                    Clear button timers as if the gamepad reconnected
  viewport <W> <H>         Set the viewport size used for scroll distances

Options:
%s
Examples:
  padscroll-ctl status
  padscroll-ctl viewport 2560 1440
  padscroll-ctl --socket /run/padscroll.sock reset
`, fs.FlagUsages())
}
