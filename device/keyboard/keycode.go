package keyboard

// KeyCode identifies a physical key independently of the active layout.
type KeyCode uint8

// The list of keys recognized by the scancode set 1 decoder.
const (
	KeyUnknown KeyCode = iota
	Escape
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	PrintScreen
	ScrollLock
	PauseBreak

	Oem8 // backtick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	OemMinus
	OemPlus
	Backspace

	Tab
	Q
	W
	E
	R
	T
	Y
	U
	I
	O
	P
	Oem4 // left square bracket
	Oem6 // right square bracket
	Oem5 // backslash

	CapsLock
	A
	S
	D
	F
	G
	H
	J
	K
	L
	Oem1 // semicolon
	Oem3 // single quote
	Return

	LShift
	Z
	X
	C
	V
	B
	N
	M
	OemComma
	OemPeriod
	Oem2 // slash
	RShift

	LControl
	LWin
	LAlt
	Spacebar
	RAltGr
	RWin
	Apps
	RControl

	Insert
	Home
	PageUp
	Delete
	End
	PageDown
	ArrowUp
	ArrowLeft
	ArrowDown
	ArrowRight

	NumpadLock
	NumpadDivide
	NumpadMultiply
	NumpadSubtract
	NumpadAdd
	NumpadEnter
	NumpadPeriod
	Numpad0
	Numpad1
	Numpad2
	Numpad3
	Numpad4
	Numpad5
	Numpad6
	Numpad7
	Numpad8
	Numpad9

	numKeyCodes
)

var keyCodeNames = [numKeyCodes]string{
	KeyUnknown:  "Unknown",
	Escape:      "Escape",
	F1:          "F1",
	F2:          "F2",
	F3:          "F3",
	F4:          "F4",
	F5:          "F5",
	F6:          "F6",
	F7:          "F7",
	F8:          "F8",
	F9:          "F9",
	F10:         "F10",
	F11:         "F11",
	F12:         "F12",
	PrintScreen: "PrintScreen",
	ScrollLock:  "ScrollLock",
	PauseBreak:  "PauseBreak",

	Oem8:      "Oem8",
	Key1:      "Key1",
	Key2:      "Key2",
	Key3:      "Key3",
	Key4:      "Key4",
	Key5:      "Key5",
	Key6:      "Key6",
	Key7:      "Key7",
	Key8:      "Key8",
	Key9:      "Key9",
	Key0:      "Key0",
	OemMinus:  "OemMinus",
	OemPlus:   "OemPlus",
	Backspace: "Backspace",

	Tab:  "Tab",
	Q:    "Q",
	W:    "W",
	E:    "E",
	R:    "R",
	T:    "T",
	Y:    "Y",
	U:    "U",
	I:    "I",
	O:    "O",
	P:    "P",
	Oem4: "Oem4",
	Oem6: "Oem6",
	Oem5: "Oem5",

	CapsLock: "CapsLock",
	A:        "A",
	S:        "S",
	D:        "D",
	F:        "F",
	G:        "G",
	H:        "H",
	J:        "J",
	K:        "K",
	L:        "L",
	Oem1:     "Oem1",
	Oem3:     "Oem3",
	Return:   "Return",

	LShift:    "LShift",
	Z:         "Z",
	X:         "X",
	C:         "C",
	V:         "V",
	B:         "B",
	N:         "N",
	M:         "M",
	OemComma:  "OemComma",
	OemPeriod: "OemPeriod",
	Oem2:      "Oem2",
	RShift:    "RShift",

	LControl: "LControl",
	LWin:     "LWin",
	LAlt:     "LAlt",
	Spacebar: "Spacebar",
	RAltGr:   "RAltGr",
	RWin:     "RWin",
	Apps:     "Apps",
	RControl: "RControl",

	Insert:     "Insert",
	Home:       "Home",
	PageUp:     "PageUp",
	Delete:     "Delete",
	End:        "End",
	PageDown:   "PageDown",
	ArrowUp:    "ArrowUp",
	ArrowLeft:  "ArrowLeft",
	ArrowDown:  "ArrowDown",
	ArrowRight: "ArrowRight",

	NumpadLock:     "NumpadLock",
	NumpadDivide:   "NumpadDivide",
	NumpadMultiply: "NumpadMultiply",
	NumpadSubtract: "NumpadSubtract",
	NumpadAdd:      "NumpadAdd",
	NumpadEnter:    "NumpadEnter",
	NumpadPeriod:   "NumpadPeriod",
	Numpad0:        "Numpad0",
	Numpad1:        "Numpad1",
	Numpad2:        "Numpad2",
	Numpad3:        "Numpad3",
	Numpad4:        "Numpad4",
	Numpad5:        "Numpad5",
	Numpad6:        "Numpad6",
	Numpad7:        "Numpad7",
	Numpad8:        "Numpad8",
	Numpad9:        "Numpad9",
}

// String implements fmt.Stringer for KeyCode.
func (k KeyCode) String() string {
	if k >= numKeyCodes {
		return keyCodeNames[KeyUnknown]
	}

	return keyCodeNames[k]
}

// KeyState describes whether a key was pressed or released.
type KeyState uint8

// The supported key states.
const (
	KeyUp KeyState = iota
	KeyDown
)

// KeyEvent is a single press or release of a key.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}
