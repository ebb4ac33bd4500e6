package mm

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual start address of this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Unaligned addresses are rounded down.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr &^ PageOffsetMask) >> PageShift)
}

// PageOffset returns the byte offset of virtAddr within its page. The result
// is always in the range [0, PageSize).
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & PageOffsetMask
}
