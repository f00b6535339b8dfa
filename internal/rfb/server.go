//go:build cgo

package rfb

/*
#cgo LDFLAGS: -lvncserver
#include <rfb/rfb.h>
#include <stdlib.h>

extern void goKeyEvent(rfbBool down, rfbKeySym key, rfbClientPtr cl);
extern void goPointerEvent(int buttonMask, int x, int y, rfbClientPtr cl);
extern enum rfbNewClientAction goNewClient(rfbClientPtr cl);
extern void goClientGone(rfbClientPtr cl);

static void clientGone(rfbClientPtr cl) {
    goClientGone(cl);
}

static enum rfbNewClientAction newClient(rfbClientPtr cl) {
    cl->clientGoneHook = clientGone;
    return goNewClient(cl);
}

static inline void installHooks(rfbScreenInfoPtr screen) {
    screen->kbdAddEvent = goKeyEvent;
    screen->ptrAddEvent = goPointerEvent;
    screen->newClientHook = newClient;
}

static inline void setFrameBuffer(rfbScreenInfoPtr screen, void *fb) {
    screen->frameBuffer = (char *)fb;
}

static inline void setDesktopName(rfbScreenInfoPtr screen, const char *name) {
    screen->desktopName = name;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	log "github.com/sirupsen/logrus"
)

// Servers by screen, so that C callbacks can find their owner.
var (
	servers   = make(map[*C.rfbScreenInfo]*Server)
	serversMu sync.RWMutex
)

// Server is a libvncserver screen whose frame buffer lives in C memory.
type Server struct {
	screen      *C.rfbScreenInfo
	fb          unsafe.Pointer
	frameBuffer []byte
	desktopName *C.char

	clients map[uintptr]C.rfbClientPtr

	keyHandler        KeyHandler
	pointerHandler    PointerHandler
	newClientHandler  NewClientHandler
	clientGoneHandler ClientGoneHandler
}

// NewServer allocates a width x height screen with bytesPerPixel bytes per
// pixel and 5 bits per colour sample. It returns nil on failure.
func NewServer(width, height, bytesPerPixel int) *Server {
	screen := C.rfbGetScreen(nil, nil, C.int(width), C.int(height), 5, 3, C.int(bytesPerPixel))
	if screen == nil {
		return nil
	}

	size := width * height * bytesPerPixel
	fb := C.calloc(C.size_t(size), 1)
	if fb == nil {
		C.rfbScreenCleanup(screen)
		return nil
	}
	C.setFrameBuffer(screen, fb)
	screen.alwaysShared = C.TRUE
	screen.httpDir = nil

	s := &Server{
		screen:      screen,
		fb:          fb,
		frameBuffer: unsafe.Slice((*byte)(fb), size),
		clients:     make(map[uintptr]C.rfbClientPtr),
	}
	C.installHooks(screen)

	serversMu.Lock()
	servers[screen] = s
	serversMu.Unlock()
	return s
}

func (s *Server) SetPort(port int) {
	s.screen.port = C.int(port)
}

func (s *Server) SetDesktopName(name string) {
	old := s.desktopName
	s.desktopName = C.CString(name)
	C.setDesktopName(s.screen, s.desktopName)
	if old != nil {
		C.free(unsafe.Pointer(old))
	}
}

func (s *Server) SetPixelFormat(f PixelFormat) {
	sf := &s.screen.serverFormat
	sf.bitsPerPixel = C.uint8_t(f.BitsPerPixel)
	sf.depth = C.uint8_t(f.Depth)
	sf.bigEndian = 0
	if f.BigEndian {
		sf.bigEndian = 1
	}
	sf.trueColour = 0
	if f.TrueColour {
		sf.trueColour = 1
	}
	sf.redMax = C.uint16_t(f.RedMax)
	sf.greenMax = C.uint16_t(f.GreenMax)
	sf.blueMax = C.uint16_t(f.BlueMax)
	sf.redShift = C.uint8_t(f.RedShift)
	sf.greenShift = C.uint8_t(f.GreenShift)
	sf.blueShift = C.uint8_t(f.BlueShift)
}

func (s *Server) InitServer() error {
	C.rfbInitServer(s.screen)
	if s.screen.listenSock < 0 {
		return fmt.Errorf("init RFB server: cannot listen on port %d", int(s.screen.port))
	}
	return nil
}

func (s *Server) ProcessEvents(timeout time.Duration) {
	C.rfbProcessEvents(s.screen, C.long(timeout.Microseconds()))
}

func (s *Server) HasClients() bool {
	return s.screen.clientHead != nil
}

func (s *Server) ClientCount() int {
	n := 0
	for cl := s.screen.clientHead; cl != nil; cl = cl.next {
		n++
	}
	return n
}

// CloseClient schedules the connection for teardown. The client-gone handler
// fires from a later ProcessEvents.
func (s *Server) CloseClient(cl Client) {
	ptr, ok := s.clients[cl.Ref]
	if !ok {
		return
	}
	C.rfbCloseClient(ptr)
}

func (s *Server) FrameBuffer() []byte { return s.frameBuffer }

func (s *Server) Width() int { return int(s.screen.width) }

func (s *Server) Height() int { return int(s.screen.height) }

func (s *Server) MarkRectAsModified(x1, y1, x2, y2 int) {
	C.rfbMarkRectAsModified(s.screen, C.int(x1), C.int(y1), C.int(x2), C.int(y2))
}

func (s *Server) SetKeyHandler(handler KeyHandler) { s.keyHandler = handler }

func (s *Server) SetPointerHandler(handler PointerHandler) { s.pointerHandler = handler }

func (s *Server) SetNewClientHandler(handler NewClientHandler) { s.newClientHandler = handler }

func (s *Server) SetClientGoneHandler(handler ClientGoneHandler) { s.clientGoneHandler = handler }

func (s *Server) Close() {
	if s.screen == nil {
		return
	}
	serversMu.Lock()
	delete(servers, s.screen)
	serversMu.Unlock()

	C.rfbShutdownServer(s.screen, C.TRUE)
	C.setFrameBuffer(s.screen, nil)
	C.setDesktopName(s.screen, nil)
	C.rfbScreenCleanup(s.screen)
	s.screen = nil

	C.free(s.fb)
	s.fb = nil
	s.frameBuffer = nil
	if s.desktopName != nil {
		C.free(unsafe.Pointer(s.desktopName))
		s.desktopName = nil
	}
	log.Debug("rfb: server closed")
}

func (s *Server) client(cl C.rfbClientPtr) Client {
	c := Client{Ref: uintptr(unsafe.Pointer(cl))}
	if cl.host != nil {
		c.Host = C.GoString(cl.host)
	}
	return c
}
