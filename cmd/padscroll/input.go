package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvents parses whole input_event records from buf.
// A trailing partial record is ignored.
func decodeInputEvents(buf []byte) []inputEvent {
	n := len(buf) / inputEventSize
	if n == 0 {
		return nil
	}

	out := make([]inputEvent, 0, n)
	reader := bytes.NewReader(nil)
	for i := 0; i < n; i++ {
		reader.Reset(buf[i*inputEventSize : (i+1)*inputEventSize])
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}
		out = append(out, ev)
	}
	return out
}

// encodeInputEvents serializes events for a single write to a uinput device.
func encodeInputEvents(evs []inputEvent) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(len(evs) * inputEventSize)
	for _, ev := range evs {
		if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
			return nil, fmt.Errorf("encode input event: %w", err)
		}
	}
	return buf.Bytes(), nil
}
