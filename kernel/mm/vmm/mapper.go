// Package vmm translates virtual addresses by walking the active 4-level
// page table hierarchy.
//
// The boot loader maps all of physical memory at a fixed virtual offset, so
// the page table stored in physical frame f can be read at the virtual
// address physMemOffset + f.Address().
package vmm

import (
	"unsafe"

	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
	"github.com/DrakulaD3a/redos/kernel/mm"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	activePDTFn     = cpu.ActivePDT
	flushTLBEntryFn = cpu.FlushTLBEntry
	panicFn         = kfmt.Panic

	// ptePtrFn returns a pointer to the supplied entry address. It is
	// used by tests to redirect page table accesses to fake physical
	// memory. When compiling the kernel this function will be
	// automatically inlined.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}

	// The system mapper and the token that guards its creation.
	mapper        Mapper
	mapperDerived bool

	// ErrInvalidMapping is returned when trying to lookup a virtual memory
	// address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrHugePageUnsupported is raised when a translation runs into a
	// 2M or 1G page.
	ErrHugePageUnsupported = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}

	// ErrPageAlreadyMapped is returned by Map when the target page is
	// already backed by a frame.
	ErrPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped"}

	errMapperAlreadyDerived = &kernel.Error{Module: "vmm", Message: "mapper has already been derived"}
)

// Mapper provides access to the page table hierarchy that is active on the
// CPU. There is exactly one Mapper in the system; it is obtained via
// DeriveMapper.
type Mapper struct {
	physMemOffset uintptr
	root          mm.Frame
}

// DeriveMapper returns the system Mapper for the page table hierarchy
// currently loaded in CR3. physMemOffset is the virtual address at which the
// boot loader mapped the complete physical memory.
//
// Only one Mapper may exist so that no two callers can alias the same page
// tables; DeriveMapper returns an error when called more than once.
func DeriveMapper(physMemOffset uintptr) (*Mapper, *kernel.Error) {
	if mapperDerived {
		return nil, errMapperAlreadyDerived
	}
	mapperDerived = true

	mapper = Mapper{
		physMemOffset: physMemOffset,
		root:          mm.FrameFromAddress(activePDTFn()),
	}

	return &mapper, nil
}

// PhysToVirt returns the virtual address through which the physical address
// physAddr can be accessed.
func (m *Mapper) PhysToVirt(physAddr uintptr) uintptr {
	return m.physMemOffset + physAddr
}

// Root returns the frame that holds the level 4 page table.
func (m *Mapper) Root() mm.Frame {
	return m.root
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return mm.PageOffset(virtAddr)
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level (0 for the level 4 table) and page
// table entry as its arguments. If the function returns false, then the page
// walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address. It calls the
// suppplied walkFn with the page table entry that corresponds to each page
// table level. The table for the next level is located by reading the entry
// after walkFn returns, so walkFn may install a missing table.
func (m *Mapper) walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		tableFrame            = m.root
		entryIndex, entryAddr uintptr
		pte                   *pageTableEntry
	)

	for level := uint8(0); level < pageLevels; level++ {
		// Extract the bits from virtual address that correspond to the
		// index in this level's page table
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr = m.PhysToVirt(tableFrame.Address()) + (entryIndex << mm.PointerShift)

		pte = (*pageTableEntry)(ptePtrFn(entryAddr))
		if !walkFn(level, pte) {
			return
		}

		tableFrame = pte.Frame()
	}
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if any level of the walk reaches a
// non-present entry. The page tables are never modified.
//
// Running into a huge page is a fatal condition: Translate reports it via
// kfmt.Panic and returns ErrHugePageUnsupported if the panic returns.
func (m *Mapper) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
	)

	m.walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		// Bit 7 of a level 1 entry selects the PAT type; it only
		// denotes a huge page at the upper levels.
		if pteLevel < pageLevels-1 && pte.HasFlags(FlagHugePage) {
			err = ErrHugePageUnsupported
			return false
		}

		entry = pte
		return true
	})

	switch err {
	case nil:
	case ErrHugePageUnsupported:
		panicFn(err)
		return 0, err
	default:
		return 0, err
	}

	// Calculate the physical address by taking the physical frame address and
	// appending the offset from the virtual address
	return entry.Frame().Address() + PageOffset(virtAddr), nil
}
