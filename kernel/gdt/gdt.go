// Package gdt installs the kernel's global descriptor table together with a
// task state segment whose interrupt stack table provides a known-good stack
// for the double fault handler.
package gdt

import (
	"unsafe"

	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
)

const (
	// KernelCodeSelector selects the 64-bit kernel code segment.
	KernelCodeSelector = uint16(1 << 3)

	// KernelDataSelector selects the kernel data segment.
	KernelDataSelector = uint16(2 << 3)

	// TSSSelector selects the task state segment descriptor, which
	// occupies two GDT slots.
	TSSSelector = uint16(3 << 3)

	// DoubleFaultIST is the interrupt stack table slot (1-7) that holds
	// the dedicated double fault stack. An IST value of 0 in an interrupt
	// gate means "no stack switch".
	DoubleFaultIST = uint8(1)

	// doubleFaultStackSize is the size of the dedicated double fault stack.
	doubleFaultStackSize = 5 * 4096

	// tssSize is the size of a 64-bit TSS.
	tssSize = 104

	// Byte offset of IST1 inside the TSS.
	tssIST1Offset = 36

	// Byte offset of the I/O map base address inside the TSS.
	tssIOMapBaseOffset = 102

	kernelCodeDescriptor = uint64(0x00af9b000000ffff)
	kernelDataDescriptor = uint64(0x00cf93000000ffff)

	// Access byte for an available 64-bit TSS (present, type 0x9).
	tssAccessByte = uint64(0x89)
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadGDTFn          = cpu.LoadGDT
	reloadSegmentsFn   = cpu.ReloadSegments
	loadTaskRegisterFn = cpu.LoadTaskRegister

	// null, code, data, TSS (low), TSS (high)
	table [5]uint64

	// The TSS is a packed structure whose 64-bit fields sit at 4-byte
	// aligned offsets; it is kept as raw bytes.
	tss [tssSize]byte

	doubleFaultStack [doubleFaultStackSize]byte

	initialized bool

	errAlreadyInitialized = &kernel.Error{Module: "gdt", Message: "descriptor table already installed"}
)

// Init populates the TSS and the GDT, loads the GDT, reloads the segment
// registers and loads the task register. Init may only be called once.
func Init() *kernel.Error {
	if initialized {
		return errAlreadyInitialized
	}

	setIST(DoubleFaultIST, DoubleFaultStackTop())
	putUint16(tss[tssIOMapBaseOffset:], tssSize)

	table[0] = 0
	table[1] = kernelCodeDescriptor
	table[2] = kernelDataDescriptor
	table[3], table[4] = tssDescriptor(uintptr(unsafe.Pointer(&tss[0])), tssSize-1)

	loadGDTFn(uintptr(unsafe.Pointer(&table[0])), uint16(len(table)*8-1))
	reloadSegmentsFn(KernelCodeSelector, KernelDataSelector)
	loadTaskRegisterFn(TSSSelector)

	initialized = true
	return nil
}

// DoubleFaultStackTop returns the initial stack pointer for the double fault
// stack. Stacks grow downwards so this is the 16-byte aligned end of the
// reserved stack area.
func DoubleFaultStackTop() uintptr {
	return (uintptr(unsafe.Pointer(&doubleFaultStack[0])) + doubleFaultStackSize) &^ 15
}

// setIST stores the stack pointer for the given interrupt stack table slot.
func setIST(index uint8, stackTop uintptr) {
	offset := tssIST1Offset + int(index-1)*8
	putUint64(tss[offset:], uint64(stackTop))
}

// tssDescriptor encodes the 16-byte system segment descriptor for a TSS
// located at base.
func tssDescriptor(base uintptr, limit uint32) (low, high uint64) {
	b := uint64(base)

	low = uint64(limit&0xffff) |
		(b&0xffffff)<<16 |
		tssAccessByte<<40 |
		uint64((limit>>16)&0xf)<<48 |
		((b>>24)&0xff)<<56
	high = b >> 32

	return low, high
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
