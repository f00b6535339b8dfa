package input

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"fbvnc/internal/types"
)

// PointerMode selects how button masks turn into device events.
type PointerMode int

const (
	// ModeButtons reports position every sample and each tracked button
	// only when it changes.
	ModeButtons PointerMode = iota
	// ModeTap turns a primary-button sample into a press/release pair and
	// ignores everything else.
	ModeTap
)

func ParsePointerMode(s string) (PointerMode, error) {
	switch s {
	case "", "buttons":
		return ModeButtons, nil
	case "tap":
		return ModeTap, nil
	}
	return 0, fmt.Errorf("unknown pointer mode %q (want buttons or tap)", s)
}

func (m PointerMode) String() string {
	if m == ModeTap {
		return "tap"
	}
	return "buttons"
}

// ButtonState remembers the last value written for each tracked button.
type ButtonState struct {
	Left, Middle, Right bool
	WheelUp, WheelDown  bool
}

func buttonsFromMask(mask uint8) ButtonState {
	return ButtonState{
		Left:      mask&0x01 != 0,
		Middle:    mask&0x02 != 0,
		Right:     mask&0x04 != 0,
		WheelUp:   mask&0x08 != 0,
		WheelDown: mask&0x10 != 0,
	}
}

// Pointer synthesizes touch/button bursts for an absolute pointer device.
type Pointer struct {
	sink   types.EventSink
	mode   PointerMode
	cal    types.AxisCalibration
	width  int
	height int
	state  ButtonState
}

// NewPointer maps remote coordinates on a width x height surface into the
// device range cal.
func NewPointer(sink types.EventSink, mode PointerMode, cal types.AxisCalibration, width, height int) *Pointer {
	return &Pointer{sink: sink, mode: mode, cal: cal, width: width, height: height}
}

func (p *Pointer) Mode() PointerMode { return p.mode }

// State is the last emitted button state.
func (p *Pointer) State() ButtonState { return p.state }

// Scale maps a surface coordinate into the calibrated device range.
func (p *Pointer) Scale(x, y int) (int32, int32) {
	if p.cal.Degenerate() || p.width <= 0 || p.height <= 0 {
		return int32(x), int32(y)
	}
	sx := int64(p.cal.XMin) + int64(x)*(int64(p.cal.XMax)-int64(p.cal.XMin))/int64(p.width)
	sy := int64(p.cal.YMin) + int64(y)*(int64(p.cal.YMax)-int64(p.cal.YMin))/int64(p.height)
	return int32(sx), int32(sy)
}

// Synthesize returns the burst for one pointer sample. In ModeButtons it
// updates the stored button state.
func (p *Pointer) Synthesize(mask uint8, x, y int) []types.DeviceEvent {
	ax, ay := p.Scale(x, y)
	if p.mode == ModeTap {
		return p.tap(mask, ax, ay)
	}
	return p.buttons(mask, ax, ay)
}

func (p *Pointer) tap(mask uint8, ax, ay int32) []types.DeviceEvent {
	if mask&0x01 == 0 {
		return nil
	}
	half := func(v int32) []types.DeviceEvent {
		return []types.DeviceEvent{
			{Type: EV_KEY, Code: BTN_TOUCH, Value: v},
			{Type: EV_ABS, Code: ABS_X, Value: ax},
			{Type: EV_ABS, Code: ABS_Y, Value: ay},
			{Type: EV_SYN, Code: SYN_REPORT},
		}
	}
	return append(half(1), half(0)...)
}

func (p *Pointer) buttons(mask uint8, ax, ay int32) []types.DeviceEvent {
	next := buttonsFromMask(mask)

	events := []types.DeviceEvent{
		{Type: EV_KEY, Code: BTN_TOUCH, Value: boolValue(next.Left)},
		{Type: EV_ABS, Code: ABS_X, Value: ax},
		{Type: EV_ABS, Code: ABS_Y, Value: ay},
	}

	if p.state.Left != next.Left {
		p.state.Left = next.Left
		events = append(events, types.DeviceEvent{Type: EV_KEY, Code: BTN_LEFT, Value: boolValue(next.Left)})
	}
	if p.state.Middle != next.Middle {
		p.state.Middle = next.Middle
		events = append(events, types.DeviceEvent{Type: EV_KEY, Code: BTN_MIDDLE, Value: boolValue(next.Middle)})
	}
	if p.state.Right != next.Right {
		p.state.Right = next.Right
		events = append(events, types.DeviceEvent{Type: EV_KEY, Code: BTN_RIGHT, Value: boolValue(next.Right)})
	}
	if p.state.WheelUp != next.WheelUp {
		p.state.WheelUp = next.WheelUp
		events = append(events, types.DeviceEvent{Type: EV_REL, Code: REL_WHEEL, Value: boolValue(next.WheelUp)})
	}
	if p.state.WheelDown != next.WheelDown {
		p.state.WheelDown = next.WheelDown
		events = append(events, types.DeviceEvent{Type: EV_REL, Code: REL_WHEEL, Value: -boolValue(next.WheelDown)})
	}

	return append(events, types.DeviceEvent{Type: EV_SYN, Code: SYN_REPORT})
}

// Handle synthesizes and writes one sample.
func (p *Pointer) Handle(mask uint8, x, y int) {
	log.Debugf("input: pointer mask=%02x x=%d y=%d", mask, x, y)
	writeBurst(p.sink, p.Synthesize(mask, x, y))
}

func (p *Pointer) Close() error { return p.sink.Close() }

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
