package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUnmarshalEvent_Viewport(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"viewport","data":{"width":1280,"height":720}}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	vp, ok := ev.(ViewportChanged)
	if !ok {
		t.Fatalf("expected ViewportChanged, got %T", ev)
	}
	if vp.Width != 1280 || vp.Height != 720 {
		t.Fatalf("expected 1280x720, got %gx%g", vp.Width, vp.Height)
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not json", `viewport`, "unmarshal envelope"},
		{"unknown type", `{"type":"scroll"}`, "unknown event type"},
		{"missing data", `{"type":"viewport"}`, "ViewportChanged"},
		{"zero width", `{"type":"viewport","data":{"width":0,"height":720}}`, "must be positive"},
		{"negative height", `{"type":"viewport","data":{"width":10,"height":-1}}`, "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestMarshalEvent_ControlEvents(t *testing.T) {
	for _, ev := range []Event{ResetRequested{}, RequestStatus{}, ViewportChanged{Width: 800, Height: 600}} {
		data, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("marshal %T: %v", ev, err)
		}
		back, err := UnmarshalEvent(data)
		if err != nil {
			t.Fatalf("unmarshal %T: %v", ev, err)
		}
		if back != ev {
			t.Fatalf("expected %#v, got %#v", ev, back)
		}
	}
}

func TestMarshalEvent_InternalEventsHaveNoWireForm(t *testing.T) {
	for _, ev := range []Event{Tick{}, DeviceConnected{ID: "x"}, DeviceDisconnected{ID: "x"}} {
		if _, err := MarshalEvent(ev); err == nil {
			t.Fatalf("expected %T to be rejected", ev)
		}
	}
}

func TestMarshalEvent_ResetHasNoData(t *testing.T) {
	data, err := MarshalEvent(ResetRequested{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := env["data"]; ok {
		t.Fatalf("expected no data field, got %s", data)
	}
}
