package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	SYN_REPORT = 0x00

	// Gamepad face/shoulder/system buttons
	BTN_SOUTH  = 0x130
	BTN_EAST   = 0x131
	BTN_NORTH  = 0x133
	BTN_WEST   = 0x134
	BTN_TL     = 0x136
	BTN_TR     = 0x137
	BTN_TL2    = 0x138
	BTN_TR2    = 0x139
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
	BTN_MODE   = 0x13c
	BTN_THUMBL = 0x13d
	BTN_THUMBR = 0x13e

	// D-pad reported as discrete keys (most XInput-style pads report a hat instead)
	BTN_DPAD_UP    = 0x220
	BTN_DPAD_DOWN  = 0x221
	BTN_DPAD_LEFT  = 0x222
	BTN_DPAD_RIGHT = 0x223

	// D-pad reported as a hat
	ABS_HAT0X = 0x10
	ABS_HAT0Y = 0x11

	// Pointer buttons/axes used by the virtual wheel
	BTN_LEFT          = 0x110
	REL_X             = 0x00
	REL_Y             = 0x01
	REL_HWHEEL        = 0x06
	REL_WHEEL         = 0x08
	REL_WHEEL_HI_RES  = 0x0b
	REL_HWHEEL_HI_RES = 0x0c

	KEY_MAX = 0x2ff
	ABS_MAX = 0x3f
	EV_MAX  = 0x1f
)

// Standard gamepad layout indices (W3C "standard" mapping) for the D-pad.
const (
	stdIndexDpadUp    = 12
	stdIndexDpadDown  = 13
	stdIndexDpadLeft  = 14
	stdIndexDpadRight = 15

	stdButtonCount = 17
)

// Scroll timing. These are build-time constants; deployment config never
// changes how the button state machine behaves.
const (
	longPressDelay  = 300 * time.Millisecond // hold time before auto-repeat starts
	scrollInterval  = 100 * time.Millisecond // minimum time between repeat scrolls (global)
	pageScrollRatio = 0.1                    // fraction of the viewport per scroll step
)

// Daemon defaults
const (
	defaultTickHz         = 60
	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080

	defaultInputDir   = "/dev/input"
	defaultHTTPListen = "127.0.0.1:7878"
	defaultIPCSocket  = "/tmp/padscroll.sock"
	defaultUinputPath = "/dev/uinput"

	// Pixels that correspond to one wheel detent in most desktop toolkits.
	defaultPixelsPerDetent = 50.0

	// High-resolution wheel units per detent (kernel convention).
	wheelHiResPerDetent = 120

	// Number of hi-res steps a smooth wheel scroll is spread over, and their spacing.
	wheelSmoothSteps    = 6
	wheelSmoothStepWait = 15 * time.Millisecond

	// Debounce for /dev/input hotplug bursts before rescanning.
	monitorDebounce = 250 * time.Millisecond

	statusReplyTimeout = 1 * time.Second
)
