package gate

import (
	"unsafe"

	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/gdt"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
)

const (
	// numEntries is the number of slots in the interrupt descriptor table.
	numEntries = 256

	// numEntryStubs is the number of vectors with an assembly entry stub:
	// the 32 CPU exceptions followed by the 16 remapped IRQ lines.
	numEntryStubs = 48

	// Type and attributes of a present 64-bit interrupt gate with DPL 0.
	// Interrupt gates clear IF on entry.
	interruptGateAttributes = uint8(0x8e)

	// maxIST is the highest interrupt stack table slot.
	maxIST = 7
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadIDTFn        = cpu.LoadIDT
	gateEntryTableFn = gateEntryTable
	panicFn          = kfmt.Panic
	outputSinkFn     = kfmt.GetOutputSink

	// activeTable points to the table loaded into the CPU.
	activeTable *Table

	errNoEntryStub        = &kernel.Error{Module: "gate", Message: "no entry stub for interrupt vector"}
	errInvalidIST         = &kernel.Error{Module: "gate", Message: "interrupt stack table index out of range"}
	errTableInstalled     = &kernel.Error{Module: "gate", Message: "interrupt descriptor table already installed"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
)

// Handler is invoked with a snapshot of the interrupted context. Changes to
// the snapshot are restored to the CPU when the handler returns.
type Handler func(*Registers)

// gateDescriptor is the 16-byte hardware layout of an interrupt gate.
type gateDescriptor struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	attributes uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

// Table is a 256-slot interrupt descriptor table. A Table is populated via
// HandleInterrupt and then loaded into the CPU once via Install; after that
// it is never modified.
type Table struct {
	descriptors [numEntries]gateDescriptor
	handlers    [numEntries]Handler
}

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. The value of the istOffset argument
// specifies the slot (1-7) in the interrupt stack table that the CPU switches
// to before invoking the handler; 0 keeps the interrupted stack.
func (t *Table) HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler Handler) *kernel.Error {
	switch {
	case activeTable == t:
		return errTableInstalled
	case intNumber >= numEntryStubs:
		return errNoEntryStub
	case istOffset > maxIST:
		return errInvalidIST
	}

	entries := (*[numEntryStubs]uintptr)(unsafe.Pointer(gateEntryTableFn()))
	entryAddr := entries[intNumber]

	t.descriptors[intNumber] = gateDescriptor{
		offsetLow:  uint16(entryAddr),
		selector:   gdt.KernelCodeSelector,
		ist:        istOffset,
		attributes: interruptGateAttributes,
		offsetMid:  uint16(entryAddr >> 16),
		offsetHigh: uint32(entryAddr >> 32),
	}
	t.handlers[intNumber] = handler

	return nil
}

// Handles returns true if a handler has been registered for intNumber.
func (t *Table) Handles(intNumber InterruptNumber) bool {
	return t.handlers[intNumber] != nil
}

// ISTOffset returns the interrupt stack table slot used for intNumber.
func (t *Table) ISTOffset(intNumber InterruptNumber) uint8 {
	return t.descriptors[intNumber].ist
}

// Install loads the table into the CPU. Only one table can ever be installed;
// subsequent calls fail with errTableInstalled.
func (t *Table) Install() *kernel.Error {
	if activeTable != nil {
		return errTableInstalled
	}

	activeTable = t
	loadIDTFn(uintptr(unsafe.Pointer(&t.descriptors[0])), uint16(unsafe.Sizeof(t.descriptors)-1))
	return nil
}

// dispatchInterrupt is invoked by the common assembly entry point to route
// an incoming interrupt to the handler registered in the active table.
//
//go:nosplit
func dispatchInterrupt(regs *Registers) {
	vector := uint8(regs.Vector)
	if activeTable != nil {
		if handler := activeTable.handlers[vector]; handler != nil {
			handler(regs)
			return
		}
	}

	kfmt.Printf("\nunhandled interrupt %d\n", vector)
	regs.DumpTo(outputSinkFn())
	panicFn(errUnhandledInterrupt)
}
