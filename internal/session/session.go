package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"

	"fbvnc/internal/types"
)

// InputLabel is the data channel label carrying input events.
const InputLabel = "input"

// DeliverFunc hands a decoded input event to the poll loop. It must not block.
type DeliverFunc func(ev types.InputEvent) bool

// PeerFactory creates an input peer for a new session.
type PeerFactory func(id string, deliver DeliverFunc) (*Peer, error)

// Peer is a WebRTC connection that only carries input over a data channel.
type Peer struct {
	ID string
	PC *webrtc.PeerConnection

	Stop   chan struct{}
	closed bool
	mu     sync.Mutex

	onClose func()
}

// NewPeer creates a data-channel-only peer connection. Events arriving on the
// input channel are decoded, stamped with id and passed to deliver.
func NewPeer(id string, deliver DeliverFunc) (*Peer, error) {
	api := webrtc.NewAPI()

	config := webrtc.Configuration{
		// LAN only, no STUN/TURN
	}

	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{
		ID:   id,
		PC:   pc,
		Stop: make(chan struct{}),
	}

	// Data channels are created by the client; we handle them via OnDataChannel
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != InputLabel {
			log.Debugf("session %s: ignoring data channel %q", id, dc.Label())
			return
		}
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			ev, err := DecodeInput(msg.Data)
			if err != nil {
				log.Debugf("session %s: %v", id, err)
				return
			}
			ev.Session = id
			if !deliver(ev) {
				log.Warnf("session %s: input queue full, dropping %s event", id, ev.Type)
			}
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debugf("session %s: peer connection state: %s", id, state.String())
		if state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateClosed {
			p.Close()
		}
	})

	return p, nil
}

// OnClose registers fn to run once when the peer closes.
func (p *Peer) OnClose(fn func()) {
	p.mu.Lock()
	p.onClose = fn
	p.mu.Unlock()
}

func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.Stop)
	fn := p.onClose
	p.mu.Unlock()

	p.PC.Close()
	if fn != nil {
		fn()
	}
	log.Debugf("session %s: peer closed", p.ID)
}

func (p *Peer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// DecodeInput parses one data channel message.
func DecodeInput(data []byte) (types.InputEvent, error) {
	var ev types.InputEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return types.InputEvent{}, fmt.Errorf("decode input event: %w", err)
	}
	switch ev.Type {
	case types.InputKey, types.InputPointer:
	default:
		return types.InputEvent{}, fmt.Errorf("decode input event: unknown type %q", ev.Type)
	}
	if ev.X < 0 || ev.Y < 0 {
		return types.InputEvent{}, fmt.Errorf("decode input event: negative position %d,%d", ev.X, ev.Y)
	}
	return ev, nil
}
