package main

import "testing"

func sumFrames(frames []wheelFrame) (hiV, hiH, v, h int32) {
	for _, f := range frames {
		hiV += f.HiResV
		hiH += f.HiResH
		v += f.V
		h += f.H
	}
	return
}

func TestWheel_SmoothScrollDownSpreadsOverSteps(t *testing.T) {
	var s wheelState

	frames := s.plan(ScrollDelta{DY: 108, Motion: MotionSmooth}, 50, 6)

	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}
	hiV, hiH, v, h := sumFrames(frames)
	if hiV != -259 {
		t.Fatalf("expected -259 hi-res units, got %d", hiV)
	}
	if v != -2 {
		t.Fatalf("expected -2 legacy detents, got %d", v)
	}
	if hiH != 0 || h != 0 {
		t.Fatalf("expected no horizontal motion, got hi=%d legacy=%d", hiH, h)
	}
	for i, f := range frames {
		if f.HiResV > 0 {
			t.Fatalf("frame %d: expected negative wheel for page-down, got %d", i, f.HiResV)
		}
	}
}

func TestWheel_InstantMotionUsesOneFrame(t *testing.T) {
	var s wheelState

	frames := s.plan(ScrollDelta{DX: 192, Motion: MotionInstant}, 50, 6)

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	// 192px / 50px per detent = 3.84 detents = 460.8 hi-res units.
	if f.HiResH != 460 || f.H != 3 {
		t.Fatalf("expected hi-res 460 and 3 detents, got %d and %d", f.HiResH, f.H)
	}
}

func TestWheel_FractionsCarryAcrossScrolls(t *testing.T) {
	var s wheelState

	var total int32
	for i := 0; i < 3; i++ {
		hiV, _, _, _ := sumFrames(s.plan(ScrollDelta{DY: 1, Motion: MotionInstant}, 50, 1))
		total += hiV
	}
	if total != -7 {
		t.Fatalf("expected -7 hi-res units after three 1px scrolls, got %d", total)
	}
}

func TestWheel_ZeroDeltaProducesNoFrames(t *testing.T) {
	var s wheelState
	if frames := s.plan(ScrollDelta{Motion: MotionSmooth}, 50, 6); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
}

func TestWheel_FrameEventsEndWithSynReport(t *testing.T) {
	evs := wheelFrame{HiResV: -120, V: -1}.events()

	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[0].Code != REL_WHEEL_HI_RES || evs[0].Value != -120 {
		t.Fatalf("unexpected first event %+v", evs[0])
	}
	if evs[1].Code != REL_WHEEL || evs[1].Value != -1 {
		t.Fatalf("unexpected second event %+v", evs[1])
	}
	last := evs[len(evs)-1]
	if last.Type != EV_SYN || last.Code != SYN_REPORT {
		t.Fatalf("expected SYN_REPORT last, got %+v", last)
	}
}

func TestSplitSteps(t *testing.T) {
	cases := []struct {
		total int32
		n     int
		want  []int32
	}{
		{10, 3, []int32{4, 3, 3}},
		{-10, 3, []int32{-4, -3, -3}},
		{2, 4, []int32{1, 1, 0, 0}},
		{0, 2, []int32{0, 0}},
	}
	for _, tc := range cases {
		got := splitSteps(tc.total, tc.n)
		if len(got) != len(tc.want) {
			t.Fatalf("splitSteps(%d, %d): expected %v, got %v", tc.total, tc.n, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("splitSteps(%d, %d): expected %v, got %v", tc.total, tc.n, tc.want, got)
			}
		}
	}
}

func TestInputEvents_EncodeDecode(t *testing.T) {
	evs := wheelFrame{HiResH: 30}.events()

	buf, err := encodeInputEvents(evs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != len(evs)*24 {
		t.Fatalf("expected %d bytes, got %d", len(evs)*24, len(buf))
	}

	// Trailing partial record is ignored.
	got := decodeInputEvents(append(buf, 0x01, 0x02))
	if len(got) != len(evs) {
		t.Fatalf("expected %d events, got %d", len(evs), len(got))
	}
	if got[0] != evs[0] {
		t.Fatalf("expected %+v, got %+v", evs[0], got[0])
	}
}
