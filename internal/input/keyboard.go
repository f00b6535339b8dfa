package input

import (
	log "github.com/sirupsen/logrus"

	"fbvnc/internal/types"
)

// Keyboard injects translated key presses into a keyboard sink.
type Keyboard struct {
	sink types.EventSink
}

func NewKeyboard(sink types.EventSink) *Keyboard {
	return &Keyboard{sink: sink}
}

// KeyEvents is the burst written for one key transition.
func KeyEvents(code uint16, down bool) []types.DeviceEvent {
	var v int32
	if down {
		v = 1
	}
	return []types.DeviceEvent{
		{Type: EV_KEY, Code: code, Value: v},
		{Type: EV_SYN, Code: SYN_REPORT},
	}
}

// Handle translates keysym and injects it. The result tells the caller
// whether the session asked to be closed.
func (k *Keyboard) Handle(down bool, keysym uint32) KeyResult {
	res := Translate(keysym)
	log.Debugf("input: keysym %04x down=%v -> %s", keysym, down, res)

	if res.Action == KeyInject {
		writeBurst(k.sink, KeyEvents(res.Code, down))
	}
	return res
}

func (k *Keyboard) Close() error { return k.sink.Close() }

// writeBurst writes every event even if earlier ones fail. It returns the
// number of events that were written.
func writeBurst(sink types.EventSink, events []types.DeviceEvent) int {
	n := 0
	for _, ev := range events {
		if err := sink.WriteEvent(ev); err != nil {
			log.Warnf("input: write event type=%d code=%d failed: %v", ev.Type, ev.Code, err)
			continue
		}
		n++
	}
	return n
}
