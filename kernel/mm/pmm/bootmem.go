package pmm

import (
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
	"github.com/DrakulaD3a/redos/kernel/mm"
	"github.com/DrakulaD3a/redos/multiboot"
)

// maxRegions is the number of usable memory regions that the boot memory
// allocator can track. Firmware memory maps rarely contain more than a
// handful of usable entries.
const maxRegions = 32

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errTooManyRegions       = &kernel.Error{Module: "pmm", Message: "too many usable memory regions"}

	logWriter = kfmt.PrefixWriter{Prefix: []byte("[pmm] ")}
)

// region is a run of usable frames [startFrame, endFrame).
type region struct {
	startFrame, endFrame mm.Frame
}

// BootMemAllocator implements a rudimentary physical memory allocator which
// hands out the frames of the usable memory regions reported by the boot
// loader in order.
//
// Allocations advance a cursor (the current region and the offset of the next
// frame inside it) and frames are never reused; there is no way to free a
// frame. Frames that overlap the loaded kernel image are skipped.
type BootMemAllocator struct {
	regions     [maxRegions]region
	regionCount int

	// The cursor.
	curRegion int
	nextIndex uintptr

	// Frames in [kernelStartFrame, kernelEndFrame) are never handed out.
	kernelStartFrame, kernelEndFrame mm.Frame

	allocCount uint64
}

// ReserveKernelImage excludes the physical range [start, end) that holds the
// kernel image from future allocations.
func (alloc *BootMemAllocator) ReserveKernelImage(start, end uintptr) {
	alloc.kernelStartFrame = mm.FrameFromAddress(start)
	alloc.kernelEndFrame = mm.FrameFromAddress(mm.AlignUp(end))
}

// AddRegion records a memory region reported by the boot loader. Regions
// that are not available for use or that do not contain a single whole frame
// are ignored. Region extents that are not page-aligned are shrunk: the start
// is rounded up and the end is rounded down.
func (alloc *BootMemAllocator) AddRegion(entry *multiboot.MemoryMapEntry) *kernel.Error {
	if entry.Type != multiboot.MemAvailable {
		return nil
	}

	start := mm.AlignUp(uintptr(entry.PhysAddress))
	end := mm.AlignDown(uintptr(entry.PhysAddress + entry.Length))
	if end <= start {
		return nil
	}

	if alloc.regionCount == maxRegions {
		return errTooManyRegions
	}

	alloc.regions[alloc.regionCount] = region{
		startFrame: mm.FrameFromAddress(start),
		endFrame:   mm.FrameFromAddress(end),
	}
	alloc.regionCount++
	return nil
}

// AllocFrame returns the next unused frame. Its address is always aligned to
// mm.PageSize. Once every usable frame has been handed out, AllocFrame
// returns errBootAllocOutOfMemory on every call.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	for alloc.curRegion < alloc.regionCount {
		r := alloc.regions[alloc.curRegion]
		frame := r.startFrame + mm.Frame(alloc.nextIndex)

		if frame >= alloc.kernelStartFrame && frame < alloc.kernelEndFrame {
			alloc.nextIndex = uintptr(alloc.kernelEndFrame - r.startFrame)
			continue
		}

		if frame >= r.endFrame {
			alloc.curRegion++
			alloc.nextIndex = 0
			continue
		}

		alloc.nextIndex++
		alloc.allocCount++
		return frame, nil
	}

	return mm.InvalidFrame, errBootAllocOutOfMemory
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// printMemoryMap scans the memory region information provided by the
// bootloader and prints out the system's memory map.
func (alloc *BootMemAllocator) printMemoryMap() {
	kfmt.Fprintf(&logWriter, "system memory map:\n")
	var totalFree uint64
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Fprintf(&logWriter, "\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Type == multiboot.MemAvailable {
			totalFree += region.Length
		}
		return true
	})
	kfmt.Fprintf(&logWriter, "available memory: %dKb\n", totalFree/1024)

	if alloc.kernelEndFrame > alloc.kernelStartFrame {
		kfmt.Fprintf(&logWriter, "kernel image: [0x%10x - 0x%10x]\n", alloc.kernelStartFrame.Address(), alloc.kernelEndFrame.Address())
	}
}
