package main

import (
	"io"
	"testing"
)

func TestParseCLI_OnlyChangedFlagsOverride(t *testing.T) {
	opts, _, err := parseCLI([]string{"--tick-hz", "120", "--http=false", "--uinput"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	o := opts.Overrides
	if o.TickHz == nil || *o.TickHz != 120 {
		t.Fatalf("expected tick-hz override 120, got %v", o.TickHz)
	}
	if o.HTTPEnabled == nil || *o.HTTPEnabled {
		t.Fatalf("expected http override false, got %v", o.HTTPEnabled)
	}
	if o.UinputEnabled == nil || !*o.UinputEnabled {
		t.Fatalf("expected uinput override true, got %v", o.UinputEnabled)
	}
	if o.LogLevel != nil || o.InputBackend != nil || o.ViewportWidth != nil {
		t.Fatalf("expected untouched flags to stay nil, got %+v", o)
	}
}

func TestParseCLI_RejectsPositionalArgs(t *testing.T) {
	if _, _, err := parseCLI([]string{"extra"}, io.Discard); err == nil {
		t.Fatalf("expected error for positional argument")
	}
}

func TestLoadConfig_FlagBeatsFile(t *testing.T) {
	p := writeTempConfig(t, "padscroll.yaml", "input:\n  tick_hz: 30\nlogging:\n  level: debug\n")

	opts, _, err := parseCLI([]string{"--config", p, "--tick-hz", "90"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input.TickHz != 90 {
		t.Fatalf("expected flag to win with 90, got %d", cfg.Input.TickHz)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected file value for unset flag, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_InvalidAfterOverrides(t *testing.T) {
	opts, _, err := parseCLI([]string{"--http=false"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := loadConfig(opts); err == nil {
		t.Fatalf("expected validation error with every output disabled")
	}
}
