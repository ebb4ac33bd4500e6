// Package keyboard decodes the byte stream produced by a PS/2 keyboard
// running scancode set 1 into key events and characters for a US 104-key
// layout.
package keyboard

const (
	extendedPrefix = 0xe0
	pausePrefix    = 0xe1
	breakBit       = 0x80

	// the pause key sends e1 1d 45 e1 9d c5 on make and nothing on break.
	pauseSequenceLen = 5
)

type decoderState uint8

const (
	stateStart decoderState = iota
	stateExtended
	statePause
)

// scancodeSet1 maps single-byte set 1 make codes to key codes.
var scancodeSet1 = [0x80]KeyCode{
	0x01: Escape,
	0x02: Key1,
	0x03: Key2,
	0x04: Key3,
	0x05: Key4,
	0x06: Key5,
	0x07: Key6,
	0x08: Key7,
	0x09: Key8,
	0x0a: Key9,
	0x0b: Key0,
	0x0c: OemMinus,
	0x0d: OemPlus,
	0x0e: Backspace,
	0x0f: Tab,
	0x10: Q,
	0x11: W,
	0x12: E,
	0x13: R,
	0x14: T,
	0x15: Y,
	0x16: U,
	0x17: I,
	0x18: O,
	0x19: P,
	0x1a: Oem4,
	0x1b: Oem6,
	0x1c: Return,
	0x1d: LControl,
	0x1e: A,
	0x1f: S,
	0x20: D,
	0x21: F,
	0x22: G,
	0x23: H,
	0x24: J,
	0x25: K,
	0x26: L,
	0x27: Oem1,
	0x28: Oem3,
	0x29: Oem8,
	0x2a: LShift,
	0x2b: Oem5,
	0x2c: Z,
	0x2d: X,
	0x2e: C,
	0x2f: V,
	0x30: B,
	0x31: N,
	0x32: M,
	0x33: OemComma,
	0x34: OemPeriod,
	0x35: Oem2,
	0x36: RShift,
	0x37: NumpadMultiply,
	0x38: LAlt,
	0x39: Spacebar,
	0x3a: CapsLock,
	0x3b: F1,
	0x3c: F2,
	0x3d: F3,
	0x3e: F4,
	0x3f: F5,
	0x40: F6,
	0x41: F7,
	0x42: F8,
	0x43: F9,
	0x44: F10,
	0x45: NumpadLock,
	0x46: ScrollLock,
	0x47: Numpad7,
	0x48: Numpad8,
	0x49: Numpad9,
	0x4a: NumpadSubtract,
	0x4b: Numpad4,
	0x4c: Numpad5,
	0x4d: Numpad6,
	0x4e: NumpadAdd,
	0x4f: Numpad1,
	0x50: Numpad2,
	0x51: Numpad3,
	0x52: Numpad0,
	0x53: NumpadPeriod,
	0x57: F11,
	0x58: F12,
}

// scancodeSet1Extended maps the byte following an 0xe0 prefix to key codes.
// The fake shift codes (2a/36) that surround print screen are left unmapped
// and silently dropped.
var scancodeSet1Extended = [0x80]KeyCode{
	0x1c: NumpadEnter,
	0x1d: RControl,
	0x35: NumpadDivide,
	0x37: PrintScreen,
	0x38: RAltGr,
	0x47: Home,
	0x48: ArrowUp,
	0x49: PageUp,
	0x4b: ArrowLeft,
	0x4d: ArrowRight,
	0x4f: End,
	0x50: ArrowDown,
	0x51: PageDown,
	0x52: Insert,
	0x53: Delete,
	0x5b: LWin,
	0x5c: RWin,
	0x5d: Apps,
}

// layoutEntry describes the characters produced by a key with and without
// shift. Letters are also affected by caps lock.
type layoutEntry struct {
	lower, upper byte
	letter       bool
}

var us104Layout = [numKeyCodes]layoutEntry{
	Escape:    {0x1b, 0x1b, false},
	Oem8:      {'`', '~', false},
	Key1:      {'1', '!', false},
	Key2:      {'2', '@', false},
	Key3:      {'3', '#', false},
	Key4:      {'4', '$', false},
	Key5:      {'5', '%', false},
	Key6:      {'6', '^', false},
	Key7:      {'7', '&', false},
	Key8:      {'8', '*', false},
	Key9:      {'9', '(', false},
	Key0:      {'0', ')', false},
	OemMinus:  {'-', '_', false},
	OemPlus:   {'=', '+', false},
	Backspace: {0x08, 0x08, false},
	Tab:       {'\t', '\t', false},
	Q:         {'q', 'Q', true},
	W:         {'w', 'W', true},
	E:         {'e', 'E', true},
	R:         {'r', 'R', true},
	T:         {'t', 'T', true},
	Y:         {'y', 'Y', true},
	U:         {'u', 'U', true},
	I:         {'i', 'I', true},
	O:         {'o', 'O', true},
	P:         {'p', 'P', true},
	Oem4:      {'[', '{', false},
	Oem6:      {']', '}', false},
	Oem5:      {'\\', '|', false},
	A:         {'a', 'A', true},
	S:         {'s', 'S', true},
	D:         {'d', 'D', true},
	F:         {'f', 'F', true},
	G:         {'g', 'G', true},
	H:         {'h', 'H', true},
	J:         {'j', 'J', true},
	K:         {'k', 'K', true},
	L:         {'l', 'L', true},
	Oem1:      {';', ':', false},
	Oem3:      {'\'', '"', false},
	Return:    {'\n', '\n', false},
	Z:         {'z', 'Z', true},
	X:         {'x', 'X', true},
	C:         {'c', 'C', true},
	V:         {'v', 'V', true},
	B:         {'b', 'B', true},
	N:         {'n', 'N', true},
	M:         {'m', 'M', true},
	OemComma:  {',', '<', false},
	OemPeriod: {'.', '>', false},
	Oem2:      {'/', '?', false},
	Spacebar:  {' ', ' ', false},
	Delete:    {0x7f, 0x7f, false},

	NumpadDivide:   {'/', '/', false},
	NumpadMultiply: {'*', '*', false},
	NumpadSubtract: {'-', '-', false},
	NumpadAdd:      {'+', '+', false},
	NumpadEnter:    {'\n', '\n', false},
}

// numpadChars holds the characters produced by the numpad keys that are
// affected by num lock.
var numpadChars = [numKeyCodes]byte{
	NumpadPeriod: '.',
	Numpad0:      '0',
	Numpad1:      '1',
	Numpad2:      '2',
	Numpad3:      '3',
	Numpad4:      '4',
	Numpad5:      '5',
	Numpad6:      '6',
	Numpad7:      '7',
	Numpad8:      '8',
	Numpad9:      '9',
}

// DecodedKey is the result of decoding a key press. Keys that produce a
// character have Char set; all other keys are reported by their Code.
type DecodedKey struct {
	Char rune
	Code KeyCode
}

// IsChar returns true if the decoded key produced a character.
func (k DecodedKey) IsChar() bool {
	return k.Char != 0
}

// Decoder is a scancode set 1 state machine combined with the modifier
// state of a US 104-key keyboard. Control modifiers are tracked but do not
// alter the produced characters.
//
// A Decoder must persist across interrupts as multi-byte scancodes and
// modifier keys span several of them. The zero value is ready to use with
// num lock enabled.
type Decoder struct {
	state      decoderState
	pauseBytes uint8

	lShift, rShift     bool
	lControl, rControl bool
	alt                bool
	capsLock           bool
	numLockOff         bool
}

// Reset discards any partially received scancode and clears all modifiers.
func (d *Decoder) Reset() {
	*d = Decoder{}
}

// AddByte feeds a byte read from the keyboard data port to the scancode
// state machine. It returns true together with a KeyEvent when b completes
// a scancode. Unknown scancodes are dropped.
func (d *Decoder) AddByte(b byte) (KeyEvent, bool) {
	switch d.state {
	case stateExtended:
		d.state = stateStart
		return makeEvent(&scancodeSet1Extended, b)
	case statePause:
		d.pauseBytes++
		if d.pauseBytes < pauseSequenceLen {
			return KeyEvent{}, false
		}

		d.state, d.pauseBytes = stateStart, 0
		return KeyEvent{Code: PauseBreak, State: KeyDown}, true
	}

	switch b {
	case extendedPrefix:
		d.state = stateExtended
		return KeyEvent{}, false
	case pausePrefix:
		d.state = statePause
		return KeyEvent{}, false
	}

	return makeEvent(&scancodeSet1, b)
}

func makeEvent(table *[0x80]KeyCode, b byte) (KeyEvent, bool) {
	code := table[b&^breakBit]
	if code == KeyUnknown {
		return KeyEvent{}, false
	}

	ev := KeyEvent{Code: code, State: KeyDown}
	if b&breakBit != 0 {
		ev.State = KeyUp
	}

	return ev, true
}

// ProcessKeyEvent updates the modifier state and translates key presses to
// a DecodedKey. Key releases only affect modifiers and return false.
func (d *Decoder) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == KeyDown

	switch ev.Code {
	case LShift:
		d.lShift = down
	case RShift:
		d.rShift = down
	case LControl:
		d.lControl = down
	case RControl:
		d.rControl = down
	case LAlt, RAltGr:
		d.alt = down
	case CapsLock:
		if down {
			d.capsLock = !d.capsLock
		}
	case NumpadLock:
		if down {
			d.numLockOff = !d.numLockOff
		}
	}

	if !down {
		return DecodedKey{}, false
	}

	return d.decode(ev.Code), true
}

func (d *Decoder) decode(code KeyCode) DecodedKey {
	if ch := numpadChars[code]; ch != 0 {
		if d.numLockOff {
			return DecodedKey{Code: code}
		}
		return DecodedKey{Char: rune(ch), Code: code}
	}

	entry := us104Layout[code]
	if entry.lower == 0 {
		return DecodedKey{Code: code}
	}

	upper := d.lShift || d.rShift
	if entry.letter && d.capsLock {
		upper = !upper
	}

	if upper {
		return DecodedKey{Char: rune(entry.upper), Code: code}
	}
	return DecodedKey{Char: rune(entry.lower), Code: code}
}

// Feed runs b through both the scancode state machine and the layout and
// returns the decoded key if b completed a key press.
func (d *Decoder) Feed(b byte) (DecodedKey, bool) {
	ev, ok := d.AddByte(b)
	if !ok {
		return DecodedKey{}, false
	}

	return d.ProcessKeyEvent(ev)
}
