package vmm

import (
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/mm"
)

// Map establishes a mapping between a virtual page and a physical memory
// frame. Missing intermediate tables are backed by frames obtained via
// mm.AllocFrame and cleared before use. The TLB entry for the page is flushed
// once the mapping is in place.
//
// Map returns ErrPageAlreadyMapped if the page is already present and
// ErrHugePageUnsupported if the walk runs into a huge page.
func (m *Mapper) Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	m.walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) {
				err = ErrPageAlreadyMapped
				return false
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(FlagPresent | flags)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagPresent | FlagHugePage) {
			err = ErrHugePageUnsupported
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and clear its contents.
		if !pte.HasFlags(FlagPresent) {
			var newTableFrame mm.Frame
			if newTableFrame, err = mm.AllocFrame(); err != nil {
				return false
			}

			m.clearTable(newTableFrame)

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		return true
	})

	return err
}

// Unmap removes a mapping previously installed via a call to Map. The frame
// that backed the page is not released.
func (m *Mapper) Unmap(page mm.Page) *kernel.Error {
	var err *kernel.Error

	m.walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		// If we reached the last level all we need to do is to set the
		// page as non-present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = ErrHugePageUnsupported
			return false
		}

		return true
	})

	return err
}

// clearTable zeroes all entries of the page table stored in frame.
func (m *Mapper) clearTable(frame mm.Frame) {
	table := (*[entriesPerTable]pageTableEntry)(ptePtrFn(m.PhysToVirt(frame.Address())))
	for i := range table {
		table[i] = 0
	}
}
