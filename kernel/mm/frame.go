// Package mm contains the address arithmetic shared by the physical and
// virtual memory managers.
package mm

import (
	"math"

	"github.com/DrakulaD3a/redos/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by frame allocators when they fail to
	// reserve a frame.
	InvalidFrame = Frame(math.MaxUint64)
)

var (
	// frameAllocator points to the allocator registered via SetFrameAllocator.
	frameAllocator FrameAllocatorFn

	errNoFrameAllocator = &kernel.Error{Module: "mm", Message: "no frame allocator registered"}
)

// FrameAllocatorFn is a function that hands out unused physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical start address of this Frame. The returned
// address is always aligned to PageSize.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Unaligned addresses are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr &^ PageOffsetMask) >> PageShift)
}

// SetFrameAllocator registers the allocator used by the vmm code when it
// needs physical frames for new page table nodes.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// AllocFrame allocates a new physical frame using the currently registered
// frame allocator.
func AllocFrame() (Frame, *kernel.Error) {
	if frameAllocator == nil {
		return InvalidFrame, errNoFrameAllocator
	}
	return frameAllocator()
}

// AlignUp rounds addr up to the next multiple of PageSize.
func AlignUp(addr uintptr) uintptr {
	return (addr + PageOffsetMask) &^ PageOffsetMask
}

// AlignDown rounds addr down to a multiple of PageSize.
func AlignDown(addr uintptr) uintptr {
	return addr &^ PageOffsetMask
}
