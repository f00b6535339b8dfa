// Package rfb binds the bridge to libvncserver. The poll loop only sees the
// ServerPort interface so it can be driven by a fake in tests.
package rfb

import (
	"errors"
	"time"
)

var ErrCreateServer = errors.New("failed to create RFB server")

// Client identifies one connected viewer. Ref is stable for the lifetime of
// the connection and is the key used by CloseClient.
type Client struct {
	Ref  uintptr
	Host string
}

type KeyHandler func(down bool, keysym uint32, cl Client)
type PointerHandler func(buttonMask uint8, x, y int, cl Client)
type NewClientHandler func(cl Client)
type ClientGoneHandler func(cl Client)

// ServerPort is the protocol endpoint the poll loop drives. Handlers are
// invoked synchronously from ProcessEvents.
type ServerPort interface {
	SetPort(port int)
	SetDesktopName(name string)
	SetPixelFormat(f PixelFormat)
	InitServer() error
	Close()

	// ProcessEvents services sockets for at most timeout.
	ProcessEvents(timeout time.Duration)
	HasClients() bool
	ClientCount() int
	CloseClient(cl Client)

	FrameBuffer() []byte
	Width() int
	Height() int
	// MarkRectAsModified takes corner coordinates; x2 and y2 are exclusive.
	MarkRectAsModified(x1, y1, x2, y2 int)

	SetKeyHandler(handler KeyHandler)
	SetPointerHandler(handler PointerHandler)
	SetNewClientHandler(handler NewClientHandler)
	SetClientGoneHandler(handler ClientGoneHandler)
}

type ServerFactory func(width, height, bytesPerPixel int) (ServerPort, error)

var defaultServerFactory ServerFactory

// DefaultServerFactory returns the libvncserver-backed factory, or one that
// always fails when built without cgo.
func DefaultServerFactory() ServerFactory {
	return defaultServerFactory
}
