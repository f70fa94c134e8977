package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startIPC serves IPC on a short temp socket path in front of a real daemon.
func startIPC(t *testing.T) (*daemonHarness, string) {
	t.Helper()

	// Unix socket paths are limited to ~108 bytes; t.TempDir can exceed that.
	dir, err := os.MkdirTemp("", "padscroll")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "ipc.sock")

	h := startDaemon(t)

	ln, err := listenIPC(socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveIPC(ctx, ln, socketPath, h.events, discardLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serveIPC: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for IPC server to stop")
		}
	})
	return h, socketPath
}

func TestIPC_StatusReturnsSnapshot(t *testing.T) {
	h, socketPath := startIPC(t)

	h.sampler.set(testPad, pressedSnapshot())
	h.events <- DeviceConnected{ID: testPad, Name: "Test Pad", Buttons: stdButtonCount}
	waitUntil(t, 500*time.Millisecond, func() bool {
		return len(h.rec.deviceLog()) == 1
	}, "device not activated")

	data, err := SendIPCEvent(socketPath, RequestStatus{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var snap StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if snap.Device == nil || snap.Device.ID != testPad {
		t.Fatalf("expected active device %q, got %+v", testPad, snap.Device)
	}
	if len(snap.Buttons) != 4 {
		t.Fatalf("expected 4 buttons in status, got %d", len(snap.Buttons))
	}
	if snap.Viewport.Width != 1000 || snap.Viewport.Height != 500 {
		t.Fatalf("expected viewport 1000x500, got %gx%g", snap.Viewport.Width, snap.Viewport.Height)
	}
}

func TestIPC_ViewportUpdatesDaemon(t *testing.T) {
	h, socketPath := startIPC(t)

	if _, err := SendIPCEvent(socketPath, ViewportChanged{Width: 2000, Height: 1200}); err != nil {
		t.Fatalf("viewport: %v", err)
	}

	waitUntil(t, 500*time.Millisecond, func() bool {
		vp := h.status(t).Viewport
		return vp.Reported && vp.Width == 2000 && vp.Height == 1200
	}, "viewport not applied")
}

func TestIPC_ResetIsAccepted(t *testing.T) {
	_, socketPath := startIPC(t)

	data, err := SendIPCEvent(socketPath, ResetRequested{})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no data for reset, got %s", data)
	}
}

func TestHandleIPCLine_Errors(t *testing.T) {
	events := make(chan Event) // unbuffered with no reader: always full

	resp := handleIPCLine(context.Background(), []byte(`{"type":"bogus"}`), events)
	if resp.Status != "error" || !strings.Contains(resp.Error, "unknown event type") {
		t.Fatalf("expected unknown type error, got %+v", resp)
	}

	resp = handleIPCLine(context.Background(), []byte(`{"type":"reset"}`), events)
	if resp.Status != "error" || resp.Error != "event queue full" {
		t.Fatalf("expected queue full error, got %+v", resp)
	}

	resp = handleIPCLine(context.Background(), []byte(`{"type":"status"}`), events)
	if resp.Status != "error" || resp.Error != "event queue full" {
		t.Fatalf("expected queue full error for status, got %+v", resp)
	}
}

func TestHandleIPCLine_StatusTimesOutWithoutDaemon(t *testing.T) {
	events := make(chan Event, 1) // accepts the request but nobody answers
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := handleIPCLine(ctx, []byte(`{"type":"status"}`), events)
	if resp.Status != "error" {
		t.Fatalf("expected error without a daemon, got %+v", resp)
	}
	if _, ok := (<-events).(RequestStatus); !ok {
		t.Fatalf("expected a RequestStatus to be queued")
	}
}

func TestSendIPCEvent_NoDaemon(t *testing.T) {
	if _, err := SendIPCEvent(filepath.Join(t.TempDir(), "missing.sock"), ResetRequested{}); err == nil {
		t.Fatalf("expected connect error")
	}
}
