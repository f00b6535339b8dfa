//go:build cgo

package rfb

/*
#include <rfb/rfb.h>
*/
import "C"

import "unsafe"

func serverFor(cl C.rfbClientPtr) *Server {
	if cl == nil {
		return nil
	}
	serversMu.RLock()
	defer serversMu.RUnlock()
	return servers[cl.screen]
}

//export goKeyEvent
func goKeyEvent(down C.rfbBool, key C.rfbKeySym, cl C.rfbClientPtr) {
	s := serverFor(cl)
	if s == nil || s.keyHandler == nil {
		return
	}
	s.keyHandler(down != 0, uint32(key), s.client(cl))
}

//export goPointerEvent
func goPointerEvent(buttonMask C.int, x C.int, y C.int, cl C.rfbClientPtr) {
	s := serverFor(cl)
	if s == nil || s.pointerHandler == nil {
		return
	}
	s.pointerHandler(uint8(buttonMask), int(x), int(y), s.client(cl))
}

//export goNewClient
func goNewClient(cl C.rfbClientPtr) C.enum_rfbNewClientAction {
	s := serverFor(cl)
	if s == nil {
		return C.RFB_CLIENT_ACCEPT
	}
	s.clients[uintptr(unsafe.Pointer(cl))] = cl
	if s.newClientHandler != nil {
		s.newClientHandler(s.client(cl))
	}
	return C.RFB_CLIENT_ACCEPT
}

//export goClientGone
func goClientGone(cl C.rfbClientPtr) {
	s := serverFor(cl)
	if s == nil {
		return
	}
	c := s.client(cl)
	delete(s.clients, c.Ref)
	if s.clientGoneHandler != nil {
		s.clientGoneHandler(c)
	}
}
