package input

import "fmt"

// X11 keysym constants
const (
	XK_space     = 0x0020
	XK_BackSpace = 0xFF08
	XK_Tab       = 0xFF09
	XK_Return    = 0xFF0D
	XK_Escape    = 0xFF1B
	XK_Home      = 0xFF50
	XK_Begin     = 0xFF58
	XK_KP_Enter  = 0xFF8D
	XK_KP_Mult   = 0xFFAA
	XK_KP_9      = 0xFFB9
	XK_F1        = 0xFFBE
	XK_F2        = 0xFFBF
	XK_F3        = 0xFFC0
	XK_F4        = 0xFFC1
	XK_F5        = 0xFFC2
	XK_F6        = 0xFFC3
	XK_F7        = 0xFFC4
	XK_F8        = 0xFFC5
	XK_F9        = 0xFFC6
	XK_F10       = 0xFFC7
	XK_F11       = 0xFFC8
	XK_F12       = 0xFFC9
	XK_Shift_L   = 0xFFE1
	XK_Hyper_R   = 0xFFEE
	XK_Delete    = 0xFFFF
)

// ShutdownKeySym asks for the sending session to be closed instead of
// typing anything.
const ShutdownKeySym = XK_F11

type KeyAction int

const (
	KeyNone KeyAction = iota
	KeyInject
	KeyShutdown
)

func (a KeyAction) String() string {
	switch a {
	case KeyInject:
		return "inject"
	case KeyShutdown:
		return "shutdown"
	}
	return "none"
}

// KeyResult is the outcome of translating one keysym. Code is only set for
// KeyInject and is never zero there.
type KeyResult struct {
	Action KeyAction
	Code   uint16
}

func (r KeyResult) String() string {
	if r.Action == KeyInject {
		return fmt.Sprintf("inject(%d)", r.Code)
	}
	return r.Action.String()
}

var letterKeys = [26]uint16{
	KEY_A, KEY_B, KEY_C, KEY_D, KEY_E, KEY_F, KEY_G, KEY_H, KEY_I, KEY_J,
	KEY_K, KEY_L, KEY_M, KEY_N, KEY_O, KEY_P, KEY_Q, KEY_R, KEY_S, KEY_T,
	KEY_U, KEY_V, KEY_W, KEY_X, KEY_Y, KEY_Z,
}

// XK_Home .. XK_Begin
var navKeys = [9]uint16{
	KEY_HOME, KEY_LEFT, KEY_UP, KEY_RIGHT,
	KEY_DOWN, KEY_PAGEUP, KEY_PAGEDOWN, KEY_END,
	0,
}

// XK_Shift_L .. XK_Hyper_R
var modifierKeys = [14]uint16{
	KEY_LEFTSHIFT, KEY_RIGHTSHIFT,
	KEY_LEFTCTRL, KEY_RIGHTCTRL,
	0, 0, // caps lock, shift lock
	0, 0, // meta
	KEY_LEFTALT, KEY_RIGHTALT,
	0, 0, // super
	0, 0, // hyper
}

// XK_KP_Multiply .. XK_KP_9
var keypadKeys = [16]uint16{
	KEY_KPASTERISK, KEY_KPPLUS, KEY_KPCOMMA, KEY_KPMINUS, KEY_KPDOT, KEY_KPSLASH,
	KEY_KP0, KEY_KP1, KEY_KP2, KEY_KP3, KEY_KP4,
	KEY_KP5, KEY_KP6, KEY_KP7, KEY_KP8, KEY_KP9,
}

// exactKeys covers punctuation and control keysyms outside the ranges above.
// Shifted symbols map to the key that produces them on a US layout.
var exactKeys = map[uint32]uint16{
	XK_space:     KEY_SPACE,
	',':          KEY_COMMA,
	'.':          KEY_DOT,
	'/':          KEY_SLASH,
	'@':          KEY_2,
	XK_BackSpace: KEY_BACKSPACE,
	XK_Escape:    KEY_ESC,
	XK_Tab:       KEY_TAB,
	XK_Return:    KEY_ENTER,
	XK_F1:        KEY_F1,
	XK_F2:        KEY_F2,
	XK_F3:        KEY_F3,
	XK_F4:        KEY_F4,

	'!':  KEY_1,
	'"':  KEY_APOSTROPHE,
	'#':  KEY_3,
	'$':  KEY_4,
	'%':  KEY_5,
	'&':  KEY_7,
	'\'': KEY_APOSTROPHE,
	'(':  KEY_9,
	')':  KEY_0,
	'*':  KEY_8,
	'+':  KEY_EQUAL,
	'-':  KEY_MINUS,
	':':  KEY_SEMICOLON,
	';':  KEY_SEMICOLON,
	'<':  KEY_COMMA,
	'=':  KEY_EQUAL,
	'>':  KEY_DOT,
	'?':  KEY_SLASH,
	'[':  KEY_LEFTBRACE,
	'\\': KEY_BACKSLASH,
	']':  KEY_RIGHTBRACE,
	'^':  KEY_6,
	'_':  KEY_MINUS,
	'`':  KEY_GRAVE,
	'{':  KEY_LEFTBRACE,
	'|':  KEY_BACKSLASH,
	'}':  KEY_RIGHTBRACE,
	'~':  KEY_GRAVE,

	XK_KP_Enter: KEY_KPENTER,
	XK_Delete:   KEY_DELETE,
	XK_F5:       KEY_F5,
	XK_F6:       KEY_F6,
	XK_F7:       KEY_F7,
	XK_F8:       KEY_F8,
	XK_F9:       KEY_F9,
	XK_F10:      KEY_F10,
	XK_F12:      KEY_F12,
}

// Translate maps a keysym to a device key code. Ranges are tried in order
// and the first one containing the keysym decides, even when its slot is
// empty.
func Translate(keysym uint32) KeyResult {
	var code uint16

	switch {
	case keysym >= '0' && keysym <= '9':
		if keysym == '0' {
			code = KEY_0
		} else {
			code = KEY_1 + uint16(keysym-'1')
		}
	case (keysym >= 'A' && keysym <= 'Z') || (keysym >= 'a' && keysym <= 'z'):
		code = letterKeys[(keysym&^0x20)-'A']
	case keysym >= XK_Home && keysym <= XK_Begin:
		code = navKeys[keysym-XK_Home]
	case keysym >= XK_Shift_L && keysym <= XK_Hyper_R:
		code = modifierKeys[keysym-XK_Shift_L]
	case keysym >= XK_KP_Mult && keysym <= XK_KP_9:
		code = keypadKeys[keysym-XK_KP_Mult]
	case keysym == ShutdownKeySym:
		return KeyResult{Action: KeyShutdown}
	default:
		code = exactKeys[keysym]
	}

	if code == 0 {
		return KeyResult{Action: KeyNone}
	}
	return KeyResult{Action: KeyInject, Code: code}
}
