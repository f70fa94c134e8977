package main

import "testing"

func bits(n int, set ...int) bitSet {
	b := make(bitSet, n)
	for _, bit := range set {
		b.set(bit)
	}
	return b
}

func xboxStyleCaps() (ev, keys, abs bitSet) {
	ev = bits(evBitmapLen, EV_SYN, EV_KEY, EV_ABS)
	keys = bits(keyBitmapLen,
		BTN_SOUTH, BTN_EAST, BTN_NORTH, BTN_WEST, BTN_TL, BTN_TR,
		BTN_SELECT, BTN_START, BTN_MODE, BTN_THUMBL, BTN_THUMBR)
	abs = bits(absBitmapLen, ABS_HAT0X, ABS_HAT0Y)
	return ev, keys, abs
}

func TestIoctlNumbers(t *testing.T) {
	cases := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"UI_SET_EVBIT", uiSetEvBit(), 0x40045564},
		{"UI_SET_KEYBIT", uiSetKeyBit(), 0x40045565},
		{"UI_SET_RELBIT", uiSetRelBit(), 0x40045566},
		{"UI_DEV_CREATE", uiDevCreate(), 0x5501},
		{"UI_DEV_DESTROY", uiDevDestroy(), 0x5502},
		{"EVIOCGKEY(96)", eviocgkey(keyBitmapLen), 0x80604518},
		{"EVIOCGID", eviocgid(), 0x80084502},
		{"EVIOCGABS(HAT0X)", eviocgabs(ABS_HAT0X), 0x80184550},
		{"EVIOCGBIT(EV_KEY, 96)", eviocgbit(EV_KEY, keyBitmapLen), 0x80604521},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: expected %#x, got %#x", tc.name, tc.want, tc.got)
		}
	}
}

func TestBitSet(t *testing.T) {
	b := bits(4, 0, 9, 31)
	for _, bit := range []int{0, 9, 31} {
		if !b.has(bit) {
			t.Errorf("expected bit %d set", bit)
		}
	}
	for _, bit := range []int{1, 8, 30, 32, -1, 1000} {
		if b.has(bit) {
			t.Errorf("expected bit %d clear", bit)
		}
	}
}

func TestDetectLayout_HatDpad(t *testing.T) {
	l, ok := detectLayout(xboxStyleCaps())
	if !ok {
		t.Fatalf("expected gamepad to be detected")
	}
	if !l.UsesHat {
		t.Fatalf("expected hat-based D-pad")
	}
	if l.Buttons != stdButtonCount {
		t.Fatalf("expected %d buttons, got %d", stdButtonCount, l.Buttons)
	}
	up := l.Sources[stdIndexDpadUp]
	if up.Kind != sourceHat || up.Code != ABS_HAT0Y || up.Sign != -1 {
		t.Fatalf("unexpected up source %+v", up)
	}
}

func TestDetectLayout_KeyDpad(t *testing.T) {
	ev := bits(evBitmapLen, EV_KEY)
	keys := bits(keyBitmapLen, BTN_SOUTH, BTN_EAST, BTN_DPAD_UP, BTN_DPAD_DOWN, BTN_DPAD_LEFT, BTN_DPAD_RIGHT)
	abs := bits(absBitmapLen)

	l, ok := detectLayout(ev, keys, abs)
	if !ok {
		t.Fatalf("expected gamepad to be detected")
	}
	if l.UsesHat {
		t.Fatalf("expected key-based D-pad")
	}
	if l.Buttons != stdIndexDpadRight+1 {
		t.Fatalf("expected %d buttons, got %d", stdIndexDpadRight+1, l.Buttons)
	}

	state := bits(keyBitmapLen, BTN_DPAD_LEFT)
	snap := decodeSnapshot(l, state, 0, 0)
	if !snap.Pressed(stdIndexDpadLeft) || snap.Pressed(stdIndexDpadRight) {
		t.Fatalf("expected only left pressed, got %v", snap)
	}
}

func TestDetectLayout_NoDpadLeavesDirectionsOutOfRange(t *testing.T) {
	ev := bits(evBitmapLen, EV_KEY)
	keys := bits(keyBitmapLen, BTN_SOUTH, BTN_EAST, BTN_START)

	l, ok := detectLayout(ev, keys, bits(absBitmapLen))
	if !ok {
		t.Fatalf("expected gamepad to be detected")
	}
	if l.Buttons != 10 {
		t.Fatalf("expected 10 buttons, got %d", l.Buttons)
	}
	snap := decodeSnapshot(l, bits(keyBitmapLen, BTN_SOUTH), 0, -1)
	if len(snap) != 10 || snap.Pressed(stdIndexDpadUp) {
		t.Fatalf("expected a 10-button snapshot without D-pad, got %v", snap)
	}
}

func TestDetectLayout_RejectsNonGamepad(t *testing.T) {
	ev := bits(evBitmapLen, EV_KEY, EV_REL)
	keys := bits(keyBitmapLen, BTN_LEFT)

	if _, ok := detectLayout(ev, keys, bits(absBitmapLen)); ok {
		t.Fatalf("expected a mouse not to be detected as a gamepad")
	}
}

func TestDecodeSnapshot_HatDirections(t *testing.T) {
	l, _ := detectLayout(xboxStyleCaps())
	noKeys := bits(keyBitmapLen)

	cases := []struct {
		name       string
		hatX, hatY int32
		want       []int
	}{
		{"centered", 0, 0, nil},
		{"up", 0, -1, []int{stdIndexDpadUp}},
		{"down-right", 1, 1, []int{stdIndexDpadDown, stdIndexDpadRight}},
		{"left", -1, 0, []int{stdIndexDpadLeft}},
	}
	for _, tc := range cases {
		snap := decodeSnapshot(l, noKeys, tc.hatX, tc.hatY)
		want := make(map[int]bool)
		for _, i := range tc.want {
			want[i] = true
		}
		for i := stdIndexDpadUp; i <= stdIndexDpadRight; i++ {
			if snap.Pressed(i) != want[i] {
				t.Errorf("%s: index %d expected %v, got %v", tc.name, i, want[i], snap.Pressed(i))
			}
		}
	}

	snap := decodeSnapshot(l, bits(keyBitmapLen, BTN_MODE), 0, 0)
	if !snap.Pressed(16) {
		t.Fatalf("expected mode button at index 16")
	}
}
