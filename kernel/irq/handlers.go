// Package irq contains the handlers for the CPU exceptions and hardware
// interrupts serviced by the kernel and registers them with a gate.Table.
package irq

import (
	"sync/atomic"

	"github.com/DrakulaD3a/redos/device/keyboard"
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/gate"
	"github.com/DrakulaD3a/redos/kernel/gdt"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
	"github.com/DrakulaD3a/redos/kernel/pic"
)

// keyboardDataPort is the PS/2 controller port that holds the last
// scancode sent by the keyboard.
const keyboardDataPort = 0x60

// Page fault error code bits.
const (
	pfProtectionViolation = 1 << iota
	pfWrite
	pfUserMode
	pfReservedBit
	pfInstructionFetch
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	readCR2Fn      = cpu.ReadCR2
	portReadByteFn = cpu.PortReadByte
	haltFn         = cpu.Halt
	panicFn        = kfmt.Panic
	outputSinkFn   = kfmt.GetOutputSink

	// ctrl acknowledges hardware interrupts.
	ctrl InterruptController

	timerVector    gate.InterruptNumber
	keyboardVector gate.InterruptNumber

	cfg Config

	// ticks counts timer interrupts since boot.
	ticks uint64

	// decoder keeps the scancode state machine and modifier state across
	// keyboard interrupts.
	decoder keyboard.Decoder

	errDoubleFault    = &kernel.Error{Module: "irq", Message: "double fault"}
	errNotInitialized = &kernel.Error{Module: "irq", Message: "handlers used before Init"}
)

// InterruptController is implemented by the interrupt controller that
// delivers the hardware interrupts serviced by this package.
type InterruptController interface {
	// Vector returns the vector raised by a hardware interrupt line.
	Vector(line uint8) uint8

	// EndOfInterrupt acknowledges the interrupt with the given vector.
	EndOfInterrupt(vector uint8)
}

// Config selects the optional handler behaviors.
type Config struct {
	// TimerTrace prints a '.' on every timer tick.
	TimerTrace bool

	// Keyboard enables the keyboard handler.
	Keyboard bool
}

// Init binds the handlers to an initialized interrupt controller and resets
// the handler state.
func Init(c InterruptController, config Config) {
	ctrl = c
	cfg = config
	timerVector = gate.InterruptNumber(c.Vector(pic.TimerLine))
	keyboardVector = gate.InterruptNumber(c.Vector(pic.KeyboardLine))
	atomic.StoreUint64(&ticks, 0)
	decoder.Reset()
}

// Install registers the handlers with t. The double fault handler runs on
// the dedicated stack provided by the gdt package so it can still execute
// when the fault was caused by a kernel stack overflow.
func Install(t *gate.Table) *kernel.Error {
	if ctrl == nil {
		return errNotInitialized
	}

	var err *kernel.Error
	if err = t.HandleInterrupt(gate.Breakpoint, 0, breakpointHandler); err != nil {
		return err
	} else if err = t.HandleInterrupt(gate.DoubleFault, gdt.DoubleFaultIST, doubleFaultHandler); err != nil {
		return err
	} else if err = t.HandleInterrupt(gate.PageFaultException, 0, pageFaultHandler); err != nil {
		return err
	} else if err = t.HandleInterrupt(timerVector, 0, timerHandler); err != nil {
		return err
	}

	if cfg.Keyboard {
		return t.HandleInterrupt(keyboardVector, 0, keyboardHandler)
	}

	return nil
}

// Ticks returns the number of timer interrupts serviced so far.
func Ticks() uint64 {
	return atomic.LoadUint64(&ticks)
}

// breakpointHandler logs the interrupted context. Execution resumes after
// the int3 instruction.
func breakpointHandler(regs *gate.Registers) {
	kfmt.Printf("EXCEPTION: BREAKPOINT\n")
	regs.DumpTo(outputSinkFn())
}

func doubleFaultHandler(regs *gate.Registers) {
	kfmt.Printf("EXCEPTION: DOUBLE FAULT\n")
	regs.DumpTo(outputSinkFn())
	panicFn(errDoubleFault)
}

// pageFaultHandler reports the faulting address and the decoded error code
// and halts. Page faults are never resolved.
func pageFaultHandler(regs *gate.Registers) {
	kfmt.Printf("EXCEPTION: PAGE FAULT\n")
	kfmt.Printf("Accessed address: 0x%16x\n", uintptr(readCR2Fn()))
	kfmt.Printf("Error code: 0x%x (", regs.Info)
	printFaultReason(regs.Info)
	kfmt.Printf(")\n")
	regs.DumpTo(outputSinkFn())
	haltFn()
}

func printFaultReason(errorCode uint64) {
	if errorCode&pfProtectionViolation != 0 {
		kfmt.Printf("page protection violation")
	} else {
		kfmt.Printf("non-present page")
	}

	if errorCode&pfWrite != 0 {
		kfmt.Printf(", write")
	} else {
		kfmt.Printf(", read")
	}

	if errorCode&pfUserMode != 0 {
		kfmt.Printf(", user-mode")
	}
	if errorCode&pfReservedBit != 0 {
		kfmt.Printf(", reserved bit set")
	}
	if errorCode&pfInstructionFetch != 0 {
		kfmt.Printf(", instruction fetch")
	}
}

func timerHandler(_ *gate.Registers) {
	atomic.AddUint64(&ticks, 1)
	if cfg.TimerTrace {
		kfmt.Printf(".")
	}

	ctrl.EndOfInterrupt(uint8(timerVector))
}

// keyboardHandler reads the pending scancode and echoes the decoded key.
// The scancode must be read even if it does not complete a key press as
// the controller will not raise another interrupt until it is consumed.
func keyboardHandler(_ *gate.Registers) {
	scancode := portReadByteFn(keyboardDataPort)
	if key, ok := decoder.Feed(scancode); ok {
		if key.IsChar() {
			kfmt.Printf("%c", key.Char)
		} else {
			kfmt.Printf("%s", key.Code.String())
		}
	}

	ctrl.EndOfInterrupt(uint8(keyboardVector))
}
