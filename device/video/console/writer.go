package console

import (
	"io"

	"github.com/DrakulaD3a/redos/kernel/sync"
)

// unprintableChar replaces bytes outside the printable ASCII range. It is
// rendered as a filled square by the VGA code page 437 font.
const unprintableChar = 0xfe

var (
	// the following functions are mocked by tests.
	tryAcquireFn = (*sync.IRQSpinlock).TryToAcquire
	releaseFn    = (*sync.IRQSpinlock).Release
)

// Writer is an io.Writer that appends text to the bottom row of an attached
// console, scrolling its contents up when a line is complete. Printable ASCII
// characters and '\n' are written as-is; every other byte is rendered as
// unprintableChar.
//
// Writer is shared between regular code and interrupt handlers. Each Write
// call runs with interrupts masked so a timer or keyboard handler cannot
// interleave its output with a partially written line.
type Writer struct {
	lock sync.IRQSpinlock

	cons   Device
	width  uint32
	height uint32

	// 1-based column on the bottom row where the next character goes.
	column uint32
	fg, bg Color
}

// AttachTo connects the writer to a console and clears the console contents
// using its default colors.
func (w *Writer) AttachTo(cons Device) {
	if cons == nil {
		return
	}

	w.cons = cons
	w.width, w.height = cons.Dimensions()
	w.fg, w.bg = cons.DefaultColors()
	w.column = 1
	cons.Fill(1, 1, w.width, w.height, w.fg, w.bg)
}

// Colors returns the colors used for writes.
func (w *Writer) Colors() (fg, bg Color) {
	return w.fg, w.bg
}

// SetColors changes the colors used for subsequent writes.
func (w *Writer) SetColors(fg, bg Color) {
	w.fg, w.bg = fg, bg
}

// Write implements io.Writer.
//
// If the lock is already held, Write was entered from a fault raised while
// the same CPU was inside the critical section; the write then proceeds
// without the lock so that the fault diagnostics still reach the screen.
func (w *Writer) Write(data []byte) (int, error) {
	if w.cons == nil {
		return 0, io.ErrClosedPipe
	}

	if tryAcquireFn(&w.lock) {
		defer releaseFn(&w.lock)
	}

	for _, b := range data {
		if b != '\n' && (b < 0x20 || b > 0x7e) {
			b = unprintableChar
		}
		w.writeByte(b)
	}

	return len(data), nil
}

func (w *Writer) writeByte(b byte) {
	if b == '\n' {
		w.newLine()
		return
	}

	if w.column > w.width {
		w.newLine()
	}

	w.cons.Write(b, w.fg, w.bg, w.column, w.height)
	w.column++
}

func (w *Writer) newLine() {
	w.cons.Scroll(ScrollDirUp, 1)
	w.cons.Fill(1, w.height, w.width, 1, w.fg, w.bg)
	w.column = 1
}
