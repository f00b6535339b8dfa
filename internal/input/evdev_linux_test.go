//go:build linux

package input

import (
	"encoding/binary"
	"testing"
	"time"
	"unsafe"

	"fbvnc/internal/types"
)

func TestEncodeEventLayout(t *testing.T) {
	ts := time.Unix(1700000000, 250000*1000)
	buf := encodeEvent(types.DeviceEvent{Type: EV_ABS, Code: ABS_Y, Value: -7}, ts)

	if len(buf) != int(unsafe.Sizeof(rawEvent{})) {
		t.Fatalf("record size %d, want %d", len(buf), unsafe.Sizeof(rawEvent{}))
	}
	// type, code and value trail the timeval
	off := len(buf) - 8
	typ := binary.NativeEndian.Uint16(buf[off:])
	code := binary.NativeEndian.Uint16(buf[off+2:])
	val := int32(binary.NativeEndian.Uint32(buf[off+4:]))
	if typ != EV_ABS || code != ABS_Y || val != -7 {
		t.Fatalf("decoded type=%d code=%d value=%d", typ, code, val)
	}
}

func TestIoctlNumbers(t *testing.T) {
	// EVIOCGABS(ABS_X) = _IOR('E', 0x40, struct input_absinfo)
	if got := eviocgabs(ABS_X); got != 0x80184540 {
		t.Errorf("EVIOCGABS(ABS_X) = %#x, want 0x80184540", got)
	}
	// EVIOCGNAME(256)
	if got := eviocgname(256); got != 0x81004506 {
		t.Errorf("EVIOCGNAME(256) = %#x, want 0x81004506", got)
	}
}

func TestMatchDevicePrefersEarlierPattern(t *testing.T) {
	names := map[string]string{
		"/dev/input/event0": "gpio-keys",
		"/dev/input/event3": "qwerty2",
		"/dev/input/event5": "VNC keyboard",
	}
	path, pattern, ok := matchDevice(names, KeyboardPatterns, maxEventDevices)
	if !ok || path != "/dev/input/event5" || pattern != "VNC" {
		t.Fatalf("got %q %q %v, want event5 by VNC", path, pattern, ok)
	}

	path, _, ok = matchDevice(map[string]string{
		"/dev/input/event1": "Wacom Tablet",
		"/dev/input/event2": "ft5x06 touchscreen",
	}, PointerPatterns, maxEventDevices)
	if !ok || path != "/dev/input/event2" {
		t.Fatalf("pointer match = %q %v, want event2", path, ok)
	}

	if _, _, ok := matchDevice(map[string]string{"/dev/input/event0": "power"}, PointerPatterns, maxEventDevices); ok {
		t.Fatalf("unexpected match")
	}
}
