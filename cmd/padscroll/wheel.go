package main

import "math"

// Virtual wheel unit conversion.
//
// A scroll delta in pixels is converted to high-resolution wheel units
// (wheelHiResPerDetent per detent) and, for applications that only read the
// legacy axes, to whole detents. Fractions are carried between scrolls so
// repeated small deltas still add up.
//
// Wheel axes point the other way from page scrolling: a positive REL_WHEEL
// moves content up, so a positive dy becomes a negative wheel value.

// wheelAxis accumulates one axis.
type wheelAxis struct {
	hiResRemainder float64 // fractional hi-res units not yet emitted
	detentAccum    int32   // hi-res units not yet reported as a legacy detent
}

// toHiRes converts pixels to whole hi-res units, carrying the fraction.
func (a *wheelAxis) toHiRes(pixels, pixelsPerDetent float64) int32 {
	if pixelsPerDetent <= 0 {
		return 0
	}
	units := pixels/pixelsPerDetent*wheelHiResPerDetent + a.hiResRemainder
	whole := math.Trunc(units)
	a.hiResRemainder = units - whole
	return int32(whole)
}

// detents consumes hiRes units and returns the whole legacy detents they complete.
func (a *wheelAxis) detents(hiRes int32) int32 {
	a.detentAccum += hiRes
	d := a.detentAccum / wheelHiResPerDetent
	a.detentAccum -= d * wheelHiResPerDetent
	return d
}

// wheelFrame is one SYN_REPORT worth of wheel motion.
type wheelFrame struct {
	HiResV int32
	HiResH int32
	V      int32
	H      int32
}

func (f wheelFrame) empty() bool {
	return f.HiResV == 0 && f.HiResH == 0 && f.V == 0 && f.H == 0
}

// events returns the input events for the frame, terminated by SYN_REPORT.
func (f wheelFrame) events() []inputEvent {
	evs := make([]inputEvent, 0, 5)
	if f.HiResV != 0 {
		evs = append(evs, inputEvent{Type: EV_REL, Code: REL_WHEEL_HI_RES, Value: f.HiResV})
	}
	if f.V != 0 {
		evs = append(evs, inputEvent{Type: EV_REL, Code: REL_WHEEL, Value: f.V})
	}
	if f.HiResH != 0 {
		evs = append(evs, inputEvent{Type: EV_REL, Code: REL_HWHEEL_HI_RES, Value: f.HiResH})
	}
	if f.H != 0 {
		evs = append(evs, inputEvent{Type: EV_REL, Code: REL_HWHEEL, Value: f.H})
	}
	return append(evs, inputEvent{Type: EV_SYN, Code: SYN_REPORT, Value: 0})
}

// wheelState is the carried-over fraction of both axes.
type wheelState struct {
	v wheelAxis
	h wheelAxis
}

// plan converts d into frames. Smooth motion spreads the delta over steps
// frames; any other motion uses one frame. Empty frames are dropped.
func (s *wheelState) plan(d ScrollDelta, pixelsPerDetent float64, steps int) []wheelFrame {
	hv := s.v.toHiRes(-d.DY, pixelsPerDetent)
	hh := s.h.toHiRes(d.DX, pixelsPerDetent)

	if d.Motion != MotionSmooth || steps < 1 {
		steps = 1
	}
	partsV := splitSteps(hv, steps)
	partsH := splitSteps(hh, steps)

	var frames []wheelFrame
	for i := 0; i < steps; i++ {
		f := wheelFrame{
			HiResV: partsV[i],
			HiResH: partsH[i],
		}
		f.V = s.v.detents(f.HiResV)
		f.H = s.h.detents(f.HiResH)
		if !f.empty() {
			frames = append(frames, f)
		}
	}
	return frames
}

// splitSteps divides total into n parts that sum to total. Earlier parts
// receive the larger share, so motion starts fast and eases out.
func splitSteps(total int32, n int) []int32 {
	parts := make([]int32, n)
	if n == 0 {
		return parts
	}
	sign := int32(1)
	if total < 0 {
		sign = -1
		total = -total
	}
	base := total / int32(n)
	rem := total % int32(n)
	for i := range parts {
		p := base
		if int32(i) < rem {
			p++
		}
		parts[i] = sign * p
	}
	return parts
}
