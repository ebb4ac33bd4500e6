// Package pmm provides the physical frame allocator used to back new page
// table nodes.
package pmm

import (
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
	"github.com/DrakulaD3a/redos/kernel/mm"
	"github.com/DrakulaD3a/redos/multiboot"
)

var (
	// bootMemAllocator is the only frame allocator in the system.
	bootMemAllocator BootMemAllocator

	errNoUsableMemory = &kernel.Error{Module: "pmm", Message: "boot memory map contains no usable region"}
)

// Init loads the usable regions of the boot memory map, excluding the frames
// occupied by the kernel image [kernelStart, kernelEnd), and registers the
// boot memory allocator with mm.SetFrameAllocator.
func Init(kernelStart, kernelEnd uintptr) *kernel.Error {
	var err *kernel.Error

	bootMemAllocator.ReserveKernelImage(kernelStart, kernelEnd)
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		err = bootMemAllocator.AddRegion(region)
		return err == nil
	})

	if err != nil {
		return err
	}

	if bootMemAllocator.regionCount == 0 {
		return errNoUsableMemory
	}

	bootMemAllocator.printMemoryMap()
	mm.SetFrameAllocator(earlyAllocFrame)
	return nil
}

func earlyAllocFrame() (mm.Frame, *kernel.Error) {
	return bootMemAllocator.AllocFrame()
}

// PrintAllocStats logs the number of frames handed out by the boot memory
// allocator.
func PrintAllocStats() {
	kfmt.Fprintf(&logWriter, "allocated frames: %d\n", bootMemAllocator.AllocCount())
}
