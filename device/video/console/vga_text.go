package console

import (
	"unsafe"

	"github.com/DrakulaD3a/redos/multiboot"
)

const (
	// DefaultFramebufferPhysAddr is the physical address of the VGA text
	// buffer when the bootloader does not report a framebuffer.
	DefaultFramebufferPhysAddr = 0xb8000

	defaultColumns = 80
	defaultRows    = 25
)

var (
	// getFramebufferInfoFn is mocked by tests.
	getFramebufferInfoFn = multiboot.GetFramebufferInfo
)

// VgaTextConsole implements an EGA-compatible text console using VGA mode
// 0x3.
//
// Each character in the console framebuffer is represented using two bytes,
// a byte for the character ASCII code and a byte that encodes the foreground
// and background colors (4 bits for each).
//
// The default settings for the console are:
//   - yellow text on black background.
//   - space as the clear character
type VgaTextConsole struct {
	width  uint32
	height uint32

	fb []uint16

	defaultFg Color
	defaultBg Color
	clearChar uint16
}

// Init sets up the console to use the columns x rows framebuffer at virtual
// address fbAddr.
func (cons *VgaTextConsole) Init(columns, rows uint32, fbAddr uintptr) {
	cons.width = columns
	cons.height = rows
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbAddr)), columns*rows)
	cons.defaultFg = Yellow
	cons.defaultBg = Black
	cons.clearChar = uint16(' ')
}

// Dimensions returns the console width and height in characters.
func (cons *VgaTextConsole) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VgaTextConsole) DefaultColors() (fg Color, bg Color) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Fill(x, y, width, height uint32, fg, bg Color) {
	var (
		clr                  = attr(fg, bg) | cons.clearChar
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= cons.width {
		x = cons.width
	}

	if y == 0 {
		y = 1
	} else if y >= cons.height {
		y = cons.height
	}

	if x+width-1 > cons.width {
		width = cons.width - x + 1
	}

	if y+height-1 > cons.height {
		height = cons.height - y + 1
	}

	rowOffset = ((y - 1) * cons.width) + (x - 1)
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaTextConsole) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}

	var i uint32
	offset := lines * cons.width

	switch dir {
	case ScrollDirUp:
		for ; i < (cons.height-lines)*cons.width; i++ {
			cons.fb[i] = cons.fb[i+offset]
		}
	case ScrollDirDown:
		for i = cons.height*cons.width - 1; i >= lines*cons.width; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// Write a char to the specified location. Colors outside the EGA range are
// replaced by the console defaults. Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Write(ch byte, fg, bg Color, x, y uint32) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return
	}

	if fg > White {
		fg = cons.defaultFg
	}
	if bg > White {
		bg = cons.defaultBg
	}

	cons.fb[((y-1)*cons.width)+(x-1)] = attr(fg, bg) | uint16(ch)
}

func attr(fg, bg Color) uint16 {
	return ((uint16(bg) << 4) | uint16(fg)) << 8
}

// ProbeFramebuffer returns the text-mode dimensions and the framebuffer
// physical address reported by the bootloader. If the bootloader did not
// set up an EGA text framebuffer the standard 80x25 VGA buffer is assumed.
func ProbeFramebuffer() (columns, rows uint32, physAddr uintptr) {
	fbInfo := getFramebufferInfoFn()
	if fbInfo == nil || fbInfo.Type != multiboot.FramebufferTypeEGA {
		return defaultColumns, defaultRows, DefaultFramebufferPhysAddr
	}

	return fbInfo.Width, fbInfo.Height, uintptr(fbInfo.PhysAddr)
}
