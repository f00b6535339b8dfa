package server

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"fbvnc/internal/framediff"
	"fbvnc/internal/input"
	"fbvnc/internal/rfb"
	"fbvnc/internal/session"
	"fbvnc/internal/types"
)

// State is the poll loop state, re-evaluated every cycle.
type State int32

const (
	StateWaiting State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "waiting"
}

const (
	pumpTimeout  = 100 * time.Millisecond
	flushTimeout = 10 * time.Millisecond
	markPadding  = 2
	statsPeriod  = 5 * time.Second
	inputBacklog = 256
)

// KeyInjector receives translated key presses.
type KeyInjector interface {
	Handle(down bool, keysym uint32) input.KeyResult
	Close() error
}

// PointerInjector receives pointer samples in surface coordinates.
type PointerInjector interface {
	Handle(mask uint8, x, y int)
	Close() error
}

// Counters are cumulative loop statistics.
type Counters struct {
	Cycles      uint64 `json:"cycles"`
	Scans       uint64 `json:"scans"`
	DirtyScans  uint64 `json:"dirty_scans"`
	KeyEvents   uint64 `json:"key_events"`
	PtrEvents   uint64 `json:"pointer_events"`
	Dropped     uint64 `json:"dropped_events"`
	Connections uint64 `json:"connections"`
}

type counters struct {
	cycles, scans, dirty    atomic.Uint64
	keys, pointers, dropped atomic.Uint64
	connections             atomic.Uint64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Cycles:      c.cycles.Load(),
		Scans:       c.scans.Load(),
		DirtyScans:  c.dirty.Load(),
		KeyEvents:   c.keys.Load(),
		PtrEvents:   c.pointers.Load(),
		Dropped:     c.dropped.Load(),
		Connections: c.connections.Load(),
	}
}

// Loop owns the RFB screen, the diff engine and the input devices. Everything
// except Enqueue, Snapshot and the read-only accessors must be called from the
// goroutine running Run.
type Loop struct {
	srv      rfb.ServerPort
	engine   *framediff.Engine
	keyboard KeyInjector
	pointer  PointerInjector
	sessions *session.Registry
	stats    bool

	width, height int

	// rfb client ref -> session id, loop goroutine only
	clients map[uintptr]string

	inputs    chan types.InputEvent
	snapshots chan chan *image.RGBA

	state   atomic.Int32
	viewers atomic.Int32
	count   counters
}

// LoopConfig wires a loop to already opened resources.
type LoopConfig struct {
	Surface       types.Surface
	Keyboard      KeyInjector
	Pointer       PointerInjector
	Sessions      *session.Registry
	NewServer     rfb.ServerFactory
	Port          int
	DesktopName   string
	BitsPerSample int
	Bounds        framediff.BoundsPolicy
	Stats         bool
}

// NewLoop creates and starts the RFB server over the surface geometry and
// marks the whole screen as modified.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	f := cfg.Surface.Format()
	bits := cfg.BitsPerSample
	if bits == 0 {
		bits = framediff.DefaultBitsPerSample
	}

	srv, err := cfg.NewServer(f.Width, f.Height, f.BytesPerPixel())
	if err != nil {
		return nil, fmt.Errorf("create RFB server: %w", err)
	}

	engine, err := framediff.New(cfg.Surface, framediff.Words(srv.FrameBuffer()), framediff.Config{
		BitsPerSample: bits,
		Bounds:        cfg.Bounds,
	})
	if err != nil {
		srv.Close()
		return nil, err
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewRegistry()
	}

	l := &Loop{
		srv:       srv,
		engine:    engine,
		keyboard:  cfg.Keyboard,
		pointer:   cfg.Pointer,
		sessions:  sessions,
		stats:     cfg.Stats,
		width:     f.Width,
		height:    f.Height,
		clients:   make(map[uintptr]string),
		inputs:    make(chan types.InputEvent, inputBacklog),
		snapshots: make(chan chan *image.RGBA),
	}

	name := cfg.DesktopName
	if name == "" {
		name = "framebuffer"
	}
	out := rfb.OutputFormat(f.BitsPerPixel, bits)
	srv.SetPort(cfg.Port)
	srv.SetDesktopName(name)
	srv.SetPixelFormat(out)
	srv.SetKeyHandler(l.onKey)
	srv.SetPointerHandler(l.onPointer)
	srv.SetNewClientHandler(l.onNewClient)
	srv.SetClientGoneHandler(l.onClientGone)

	log.Infof("rfb: %s on port %d as %q (%s, bounds %s)", f, cfg.Port, name, out, cfg.Bounds)
	if err := srv.InitServer(); err != nil {
		srv.Close()
		return nil, err
	}
	srv.MarkRectAsModified(0, 0, f.Width, f.Height)
	return l, nil
}

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) Format() types.PixelFormat { return l.engine.Format() }

func (l *Loop) Sessions() *session.Registry { return l.sessions }

func (l *Loop) Counters() Counters { return l.count.snapshot() }

// Viewers is the number of connected RFB clients.
func (l *Loop) Viewers() int { return int(l.viewers.Load()) }

// Run drives the loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	var last Counters
	lastStats := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.Cycle()

		if l.stats && time.Since(lastStats) >= statsPeriod {
			cur := l.count.snapshot()
			log.Infof("pipeline: state=%s viewers=%d cycles=%d scans=%d dirty=%d keys=%d pointers=%d dropped=%d",
				l.State(), l.Viewers(),
				cur.Cycles-last.Cycles, cur.Scans-last.Scans, cur.DirtyScans-last.DirtyScans,
				cur.KeyEvents-last.KeyEvents, cur.PtrEvents-last.PtrEvents, cur.Dropped-last.Dropped)
			last = cur
			lastStats = time.Now()
		}
	}
}

// Cycle runs one pass: service the protocol, diff the surface when someone
// is watching, then apply side-channel input and answer snapshot requests.
func (l *Loop) Cycle() {
	l.count.cycles.Add(1)

	if !l.srv.HasClients() {
		l.setState(StateWaiting)
		l.srv.ProcessEvents(pumpTimeout)
	} else {
		l.setState(StateActive)
		l.srv.ProcessEvents(pumpTimeout)
		l.update()
	}

	l.drainInputs()
	l.serveSnapshots()
}

func (l *Loop) update() {
	rect := l.engine.Scan()
	l.count.scans.Add(1)
	if rect.Empty() {
		return
	}
	l.count.dirty.Add(1)

	if x1, y1, x2, y2, ok := markBounds(rect, l.width, l.height); ok {
		l.srv.MarkRectAsModified(x1, y1, x2, y2)
	}
	l.srv.ProcessEvents(flushTimeout)
}

func (l *Loop) setState(s State) {
	if old := State(l.state.Swap(int32(s))); old != s {
		log.Debugf("loop: %s -> %s", old, s)
	}
}

// markBounds pads r and clips it to the screen the way libvncserver
// normalises a modified rectangle. ok is false when nothing is left.
func markBounds(r types.DirtyRect, width, height int) (x1, y1, x2, y2 int, ok bool) {
	x1, x2 = padSpan(r.MinX, r.MaxX, width)
	y1, y2 = padSpan(r.MinY, r.MaxY, height)
	return x1, y1, x2, y2, x1 < x2 && y1 < y2
}

func padSpan(lo, hi, limit int) (int, int) {
	a, b := int64(lo)-markPadding, int64(hi)+markPadding
	if a > b {
		a, b = b, a
	}
	a = max(a, 0)
	b = min(b, int64(limit))
	if a >= b {
		return 0, 0
	}
	return int(a), int(b)
}

func (l *Loop) onKey(down bool, keysym uint32, cl rfb.Client) {
	l.count.keys.Add(1)
	if l.keyboard.Handle(down, keysym).Action == input.KeyShutdown {
		log.Infof("rfb: shutdown key from %s", remoteOrUnknown(cl.Host))
		l.srv.CloseClient(cl)
	}
}

func (l *Loop) onPointer(mask uint8, x, y int, cl rfb.Client) {
	l.count.pointers.Add(1)
	l.pointer.Handle(mask, x, y)
}

func (l *Loop) onNewClient(cl rfb.Client) {
	l.count.connections.Add(1)
	l.viewers.Add(1)
	info := l.sessions.Add(session.KindRFB, cl.Host, nil)
	l.clients[cl.Ref] = info.ID
}

func (l *Loop) onClientGone(cl rfb.Client) {
	l.viewers.Add(-1)
	if id, ok := l.clients[cl.Ref]; ok {
		delete(l.clients, cl.Ref)
		l.sessions.Remove(id)
	}
}

// Enqueue hands a side-channel input event to the loop. It never blocks and
// reports false when the queue is full.
func (l *Loop) Enqueue(ev types.InputEvent) bool {
	select {
	case l.inputs <- ev:
		return true
	default:
		l.count.dropped.Add(1)
		return false
	}
}

func (l *Loop) drainInputs() {
	for {
		select {
		case ev := <-l.inputs:
			l.apply(ev)
		default:
			return
		}
	}
}

func (l *Loop) apply(ev types.InputEvent) {
	switch ev.Type {
	case types.InputKey:
		l.count.keys.Add(1)
		if l.keyboard.Handle(ev.Down, ev.KeySym).Action == input.KeyShutdown && ev.Session != "" {
			l.sessions.Close(ev.Session)
		}
	case types.InputPointer:
		l.count.pointers.Add(1)
		x := min(max(ev.X, 0), l.width-1)
		y := min(max(ev.Y, 0), l.height-1)
		l.pointer.Handle(ev.Buttons, x, y)
	}
}

// Snapshot returns a copy of the output frame taken between cycles.
func (l *Loop) Snapshot(ctx context.Context) (*image.RGBA, error) {
	reply := make(chan *image.RGBA, 1)
	select {
	case l.snapshots <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case img := <-reply:
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loop) serveSnapshots() {
	for {
		select {
		case reply := <-l.snapshots:
			reply <- l.engine.Image()
		default:
			return
		}
	}
}

// Close releases the RFB server. The devices and surface belong to the
// caller.
func (l *Loop) Close() {
	l.srv.Close()
}

func remoteOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
