package server

import (
	"context"
	"image"
	"testing"
	"time"

	"fbvnc/internal/capture"
	"fbvnc/internal/framediff"
	"fbvnc/internal/input"
	"fbvnc/internal/rfb"
	"fbvnc/internal/session"
	"fbvnc/internal/types"
)

// fakePort records what the loop asks of the RFB server.
type fakePort struct {
	width, height int
	fb            []byte

	port   int
	name   string
	format rfb.PixelFormat
	inited bool
	closed bool

	clients int
	marks   [][4]int
	pumps   []time.Duration
	kicked  []rfb.Client

	// onPump runs inside ProcessEvents, where libvncserver fires callbacks.
	onPump func()

	key       rfb.KeyHandler
	pointer   rfb.PointerHandler
	newClient rfb.NewClientHandler
	gone      rfb.ClientGoneHandler
}

func newFakePort(width, height, bytesPerPixel int) *fakePort {
	return &fakePort{width: width, height: height, fb: make([]byte, width*height*bytesPerPixel)}
}

func (p *fakePort) factory() rfb.ServerFactory {
	return func(width, height, bytesPerPixel int) (rfb.ServerPort, error) {
		return p, nil
	}
}

func (p *fakePort) SetPort(port int)                 { p.port = port }
func (p *fakePort) SetDesktopName(name string)       { p.name = name }
func (p *fakePort) SetPixelFormat(f rfb.PixelFormat) { p.format = f }
func (p *fakePort) Close()                           { p.closed = true }

func (p *fakePort) InitServer() error {
	p.inited = true
	return nil
}

func (p *fakePort) ProcessEvents(timeout time.Duration) {
	p.pumps = append(p.pumps, timeout)
	if fn := p.onPump; fn != nil {
		p.onPump = nil
		fn()
	}
}

func (p *fakePort) HasClients() bool          { return p.clients > 0 }
func (p *fakePort) ClientCount() int          { return p.clients }
func (p *fakePort) CloseClient(cl rfb.Client) { p.kicked = append(p.kicked, cl) }
func (p *fakePort) FrameBuffer() []byte       { return p.fb }
func (p *fakePort) Width() int                { return p.width }
func (p *fakePort) Height() int               { return p.height }

func (p *fakePort) MarkRectAsModified(x1, y1, x2, y2 int) {
	p.marks = append(p.marks, [4]int{x1, y1, x2, y2})
}

func (p *fakePort) SetKeyHandler(h rfb.KeyHandler)               { p.key = h }
func (p *fakePort) SetPointerHandler(h rfb.PointerHandler)       { p.pointer = h }
func (p *fakePort) SetNewClientHandler(h rfb.NewClientHandler)   { p.newClient = h }
func (p *fakePort) SetClientGoneHandler(h rfb.ClientGoneHandler) { p.gone = h }

type fakeKeyboard struct {
	presses []uint32
}

func (k *fakeKeyboard) Handle(down bool, keysym uint32) input.KeyResult {
	res := input.Translate(keysym)
	if res.Action == input.KeyInject && down {
		k.presses = append(k.presses, keysym)
	}
	return res
}

func (k *fakeKeyboard) Close() error { return nil }

type pointerSample struct {
	mask uint8
	x, y int
}

type fakePointer struct {
	samples []pointerSample
}

func (p *fakePointer) Handle(mask uint8, x, y int) {
	p.samples = append(p.samples, pointerSample{mask, x, y})
}

func (p *fakePointer) Close() error { return nil }

type testRig struct {
	loop *Loop
	port *fakePort
	mem  *capture.Memory
	kbd  *fakeKeyboard
	ptr  *fakePointer
}

func newRig(t *testing.T, bounds framediff.BoundsPolicy) *testRig {
	t.Helper()
	mem, err := capture.NewMemory(capture.WithSize(capture.XRGB8888, 16, 16))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	port := newFakePort(16, 16, 4)
	kbd := &fakeKeyboard{}
	ptr := &fakePointer{}

	l, err := NewLoop(LoopConfig{
		Surface:   mem,
		Keyboard:  kbd,
		Pointer:   ptr,
		Sessions:  session.NewRegistry(),
		NewServer: port.factory(),
		Port:      5901,
		Bounds:    bounds,
	})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return &testRig{loop: l, port: port, mem: mem, kbd: kbd, ptr: ptr}
}

func TestNewLoopInitialisesServer(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)

	if !r.port.inited || r.port.port != 5901 || r.port.name != "framebuffer" {
		t.Fatalf("server not configured: %+v", r.port)
	}
	if r.port.format != rfb.OutputFormat(32, framediff.DefaultBitsPerSample) {
		t.Fatalf("pixel format = %+v", r.port.format)
	}
	if len(r.port.marks) != 1 || r.port.marks[0] != [4]int{0, 0, 16, 16} {
		t.Fatalf("initial marks = %v, want full screen", r.port.marks)
	}
	if r.port.key == nil || r.port.pointer == nil || r.port.newClient == nil || r.port.gone == nil {
		t.Fatalf("handlers not installed")
	}
}

func TestCycleWaitingDoesNotScan(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	r.mem.Fill(0x00FFFFFF)

	r.loop.Cycle()

	if r.loop.State() != StateWaiting {
		t.Fatalf("state = %s, want waiting", r.loop.State())
	}
	if len(r.port.pumps) != 1 || r.port.pumps[0] != 100*time.Millisecond {
		t.Fatalf("pumps = %v, want [100ms]", r.port.pumps)
	}
	if c := r.loop.Counters(); c.Scans != 0 || c.Cycles != 1 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestCycleActiveMarksDirtyRect(t *testing.T) {
	r := newRig(t, framediff.TrueBounds)
	r.port.clients = 1

	// nothing changed yet: no mark, no flush
	r.loop.Cycle()
	if r.loop.State() != StateActive {
		t.Fatalf("state = %s, want active", r.loop.State())
	}
	if len(r.port.marks) != 1 || len(r.port.pumps) != 1 {
		t.Fatalf("clean scan marked %v, pumped %v", r.port.marks[1:], r.port.pumps)
	}

	r.mem.SetWord(5, 5, 0x00FF0000)
	r.port.pumps = nil
	r.loop.Cycle()

	if got := r.port.marks[len(r.port.marks)-1]; got != [4]int{3, 3, 7, 7} {
		t.Fatalf("mark = %v, want padded [3 3 7 7]", got)
	}
	want := []time.Duration{100 * time.Millisecond, 10 * time.Millisecond}
	if len(r.port.pumps) != 2 || r.port.pumps[0] != want[0] || r.port.pumps[1] != want[1] {
		t.Fatalf("pumps = %v, want %v", r.port.pumps, want)
	}
	if c := r.loop.Counters(); c.Scans != 2 || c.DirtyScans != 1 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestCycleLegacyFirstScanMarksFullScreen(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	r.port.clients = 1
	r.mem.Fill(0x00123456)

	r.loop.Cycle()
	if got := r.port.marks[len(r.port.marks)-1]; got != [4]int{0, 0, 16, 16} {
		t.Fatalf("mark = %v, want clipped full screen", got)
	}
}

func TestMarkBounds(t *testing.T) {
	s := types.DirtySentinel
	tests := []struct {
		name           string
		rect           types.DirtyRect
		x1, y1, x2, y2 int
		ok             bool
	}{
		{"interior", types.DirtyRect{MinX: 5, MinY: 6, MaxX: 7, MaxY: 8}, 3, 4, 9, 10, true},
		{"clipped at origin", types.DirtyRect{MinX: 0, MinY: 1, MaxX: 0, MaxY: 1}, 0, 0, 2, 3, true},
		{"clipped at edge", types.DirtyRect{MinX: 14, MinY: 15, MaxX: 15, MaxY: 15}, 12, 13, 16, 16, true},
		{"inverted", types.DirtyRect{MinX: 9, MinY: 9, MaxX: 3, MaxY: 3}, 5, 5, 7, 7, true},
		{"sentinel rows", types.DirtyRect{MinX: 5, MinY: s, MaxX: 5, MaxY: s}, 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		x1, y1, x2, y2, ok := markBounds(tt.rect, 16, 16)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && (x1 != tt.x1 || y1 != tt.y1 || x2 != tt.x2 || y2 != tt.y2) {
			t.Errorf("%s: got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
				tt.name, x1, y1, x2, y2, tt.x1, tt.y1, tt.x2, tt.y2)
		}
	}
}

func TestClientLifecycleAndShutdownKey(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	cl := rfb.Client{Ref: 0xbeef, Host: "192.168.1.9"}

	r.port.newClient(cl)
	if r.loop.Viewers() != 1 || r.loop.Sessions().Len() != 1 {
		t.Fatalf("viewers=%d sessions=%d after connect", r.loop.Viewers(), r.loop.Sessions().Len())
	}
	info := r.loop.Sessions().List()[0]
	if info.Kind != session.KindRFB || info.Remote != "192.168.1.9" {
		t.Fatalf("session info = %+v", info)
	}

	r.port.key(true, 'a', cl)
	r.port.pointer(0x01, 3, 4, cl)
	if len(r.kbd.presses) != 1 || len(r.ptr.samples) != 1 {
		t.Fatalf("input not forwarded: keys=%v pointer=%v", r.kbd.presses, r.ptr.samples)
	}

	r.port.key(true, input.ShutdownKeySym, cl)
	if len(r.port.kicked) != 1 || r.port.kicked[0] != cl {
		t.Fatalf("shutdown key closed %v", r.port.kicked)
	}
	if len(r.kbd.presses) != 1 {
		t.Fatalf("shutdown key was typed")
	}

	r.port.gone(cl)
	if r.loop.Viewers() != 0 || r.loop.Sessions().Len() != 0 {
		t.Fatalf("viewers=%d sessions=%d after disconnect", r.loop.Viewers(), r.loop.Sessions().Len())
	}
}

func TestSideChannelInput(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	closed := false
	info := r.loop.Sessions().Add(session.KindWebRTC, "peer", func() { closed = true })

	r.loop.Enqueue(types.InputEvent{Type: types.InputKey, KeySym: 'z', Down: true, Session: info.ID})
	r.loop.Enqueue(types.InputEvent{Type: types.InputPointer, Buttons: 1, X: 40, Y: 2, Session: info.ID})

	// applied on the next cycle, not before
	if len(r.kbd.presses) != 0 {
		t.Fatalf("input applied outside the loop")
	}
	r.loop.Cycle()

	if len(r.kbd.presses) != 1 || r.kbd.presses[0] != 'z' {
		t.Fatalf("key presses = %v", r.kbd.presses)
	}
	if len(r.ptr.samples) != 1 || r.ptr.samples[0] != (pointerSample{1, 15, 2}) {
		t.Fatalf("pointer samples = %v, want clamped x", r.ptr.samples)
	}

	r.loop.Enqueue(types.InputEvent{Type: types.InputKey, KeySym: input.ShutdownKeySym, Down: true, Session: info.ID})
	r.loop.Cycle()
	if !closed || r.loop.Sessions().Len() != 0 {
		t.Fatalf("shutdown key did not close the peer session")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	ev := types.InputEvent{Type: types.InputPointer}
	for i := 0; i < inputBacklog; i++ {
		if !r.loop.Enqueue(ev) {
			t.Fatalf("queue full after %d events", i)
		}
	}
	if r.loop.Enqueue(ev) {
		t.Fatalf("enqueue succeeded past the backlog")
	}
	if d := r.loop.Counters().Dropped; d != 1 {
		t.Fatalf("dropped = %d, want 1", d)
	}
}

func TestSnapshotServedBetweenCycles(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	r.port.clients = 1
	r.mem.Fill(0x00FF0000)
	r.loop.Cycle()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		img *image.RGBA
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := r.loop.Snapshot(ctx)
		done <- result{img, err}
	}()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				t.Fatalf("Snapshot: %v", res.err)
			}
			if b := res.img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
				t.Fatalf("snapshot bounds = %v", b)
			}
			if c := res.img.RGBAAt(3, 3); c.R != 0xFF || c.G != 0 || c.B != 0 {
				t.Fatalf("snapshot pixel = %+v, want red", c)
			}
			return
		case <-ctx.Done():
			t.Fatalf("snapshot never served")
		default:
			r.loop.Cycle()
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRig(t, framediff.LegacyBounds)
	ctx, cancel := context.WithCancel(context.Background())
	r.port.onPump = cancel

	if err := r.loop.Run(ctx); err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
