package main

// Pure evdev helpers: ioctl request numbers, capability bitmaps, and the
// mapping from evdev codes to the standard gamepad layout. Nothing here
// touches a file descriptor, so it builds and tests on every platform.

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir uint32, typ uint32, nr uint32, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// Bitmap sizes for EVIOCGBIT / EVIOCGKEY.
const (
	evBitmapLen  = EV_MAX/8 + 1
	keyBitmapLen = KEY_MAX/8 + 1
	absBitmapLen = ABS_MAX/8 + 1

	absInfoSize  = 24 // struct input_absinfo: six __s32
	inputIDSize  = 8  // struct input_id: four __u16
	deviceNameSz = 256
)

// EVIOCGID = _IOR('E', 0x02, struct input_id)
func eviocgid() uintptr { return ioc(iocRead, 'E', 0x02, inputIDSize) }

// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
func eviocgname(n uint32) uintptr { return ioc(iocRead, 'E', 0x06, n) }

// EVIOCGKEY(len) = _IOC(_IOC_READ, 'E', 0x18, len)
func eviocgkey(n uint32) uintptr { return ioc(iocRead, 'E', 0x18, n) }

// EVIOCGBIT(ev, len) = _IOC(_IOC_READ, 'E', 0x20 + ev, len)
func eviocgbit(ev uint32, n uint32) uintptr { return ioc(iocRead, 'E', 0x20+ev, n) }

// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
func eviocgabs(abs uint32) uintptr { return ioc(iocRead, 'E', 0x40+abs, absInfoSize) }

// uinput requests
func uiSetEvBit() uintptr   { return ioc(iocWrite, 'U', 100, 4) }
func uiSetKeyBit() uintptr  { return ioc(iocWrite, 'U', 101, 4) }
func uiSetRelBit() uintptr  { return ioc(iocWrite, 'U', 102, 4) }
func uiDevCreate() uintptr  { return ioc(iocNone, 'U', 1, 0) }
func uiDevDestroy() uintptr { return ioc(iocNone, 'U', 2, 0) }

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// bitSet is a kernel capability or state bitmap (little-endian bit order).
type bitSet []byte

func (b bitSet) has(bit int) bool {
	i := bit / 8
	if bit < 0 || i >= len(b) {
		return false
	}
	return b[i]&(1<<(uint(bit)%8)) != 0
}

func (b bitSet) set(bit int) {
	if i := bit / 8; bit >= 0 && i < len(b) {
		b[i] |= 1 << (uint(bit) % 8)
	}
}

// ============================================================================
// Standard layout mapping
// ============================================================================

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceKey             // EV_KEY code is down
	sourceHat             // EV_ABS hat axis has the given sign
)

// buttonSource is where one standard-layout button is read from.
type buttonSource struct {
	Kind sourceKind
	Code uint16
	Sign int32
}

// standardKeyCodes maps standard layout indices to the evdev key codes the
// kernel's gamepad convention uses for them.
var standardKeyCodes = [stdButtonCount]uint16{
	0:                 BTN_SOUTH,
	1:                 BTN_EAST,
	2:                 BTN_WEST,
	3:                 BTN_NORTH,
	4:                 BTN_TL,
	5:                 BTN_TR,
	6:                 BTN_TL2,
	7:                 BTN_TR2,
	8:                 BTN_SELECT,
	9:                 BTN_START,
	10:                BTN_THUMBL,
	11:                BTN_THUMBR,
	stdIndexDpadUp:    BTN_DPAD_UP,
	stdIndexDpadDown:  BTN_DPAD_DOWN,
	stdIndexDpadLeft:  BTN_DPAD_LEFT,
	stdIndexDpadRight: BTN_DPAD_RIGHT,
	16:                BTN_MODE,
}

// padLayout describes how to build a Snapshot for one device.
type padLayout struct {
	Sources [stdButtonCount]buttonSource
	// Buttons is one past the highest mapped index; indices beyond it do
	// not exist on this device.
	Buttons int
	UsesHat bool
}

// detectLayout maps a device's capabilities onto the standard layout.
// ok is false if the device does not look like a gamepad.
func detectLayout(evBits, keyBits, absBits bitSet) (layout padLayout, ok bool) {
	if !evBits.has(EV_KEY) || !keyBits.has(BTN_SOUTH) {
		return padLayout{}, false
	}

	for i, code := range standardKeyCodes {
		if keyBits.has(int(code)) {
			layout.Sources[i] = buttonSource{Kind: sourceKey, Code: code}
		}
	}

	// Most pads report the D-pad as a hat rather than as keys.
	hasDpadKeys := keyBits.has(BTN_DPAD_UP) || keyBits.has(BTN_DPAD_DOWN) ||
		keyBits.has(BTN_DPAD_LEFT) || keyBits.has(BTN_DPAD_RIGHT)
	if !hasDpadKeys && evBits.has(EV_ABS) && absBits.has(ABS_HAT0X) && absBits.has(ABS_HAT0Y) {
		layout.Sources[stdIndexDpadUp] = buttonSource{Kind: sourceHat, Code: ABS_HAT0Y, Sign: -1}
		layout.Sources[stdIndexDpadDown] = buttonSource{Kind: sourceHat, Code: ABS_HAT0Y, Sign: +1}
		layout.Sources[stdIndexDpadLeft] = buttonSource{Kind: sourceHat, Code: ABS_HAT0X, Sign: -1}
		layout.Sources[stdIndexDpadRight] = buttonSource{Kind: sourceHat, Code: ABS_HAT0X, Sign: +1}
		layout.UsesHat = true
	}

	for i := len(layout.Sources) - 1; i >= 0; i-- {
		if layout.Sources[i].Kind != sourceNone {
			layout.Buttons = i + 1
			break
		}
	}
	return layout, true
}

// decodeSnapshot builds a Snapshot from the key state bitmap and hat values.
func decodeSnapshot(l padLayout, keys bitSet, hatX, hatY int32) Snapshot {
	snap := make(Snapshot, l.Buttons)
	for i := 0; i < l.Buttons; i++ {
		src := l.Sources[i]
		switch src.Kind {
		case sourceKey:
			snap[i] = keys.has(int(src.Code))
		case sourceHat:
			v := hatX
			if src.Code == ABS_HAT0Y {
				v = hatY
			}
			snap[i] = v*src.Sign > 0
		}
	}
	return snap
}
