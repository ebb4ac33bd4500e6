// Package pic drives the pair of chained 8259 programmable interrupt
// controllers that deliver the legacy hardware interrupt lines (timer,
// keyboard, ...) to the CPU.
package pic

import (
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/sync"
)

const (
	primaryCommandPort   = 0x20
	primaryDataPort      = 0x21
	secondaryCommandPort = 0xa0
	secondaryDataPort    = 0xa1

	// ICW1: start initialization; an ICW4 word follows.
	cmdInit = 0x11

	// OCW2: non-specific end of interrupt.
	cmdEndOfInterrupt = 0x20

	// ICW4: 8086/88 mode.
	mode8086 = 0x01

	// ICW3 values: the secondary controller is wired to line 2 of the
	// primary controller.
	primaryCascadeMask    = 1 << 2
	secondaryCascadeIdent = 2

	// linesPerController is the number of interrupt lines of one 8259.
	linesPerController = 8

	// minOffset is the first vector that is not reserved for CPU
	// exceptions.
	minOffset = 32
)

const (
	// TimerLine is the interrupt line of the programmable interval timer.
	TimerLine = uint8(0)

	// KeyboardLine is the interrupt line of the PS/2 keyboard.
	KeyboardLine = uint8(1)
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	ioWaitFn        = cpu.IOWait
	acquireFn       = (*sync.IRQSpinlock).Acquire
	releaseFn       = (*sync.IRQSpinlock).Release

	errAlreadyInitialized = &kernel.Error{Module: "pic", Message: "controllers already initialized"}
	errNotConfigured      = &kernel.Error{Module: "pic", Message: "vector offsets not set"}
	errInvalidOffset      = &kernel.Error{Module: "pic", Message: "vector offset overlaps the CPU exception range"}
	errOverlappingOffsets = &kernel.Error{Module: "pic", Message: "primary and secondary vector ranges overlap"}
)

// controller describes one 8259.
type controller struct {
	offset      uint8
	commandPort uint16
	dataPort    uint16
}

// handles returns true if vector belongs to one of this controller's lines.
func (c *controller) handles(vector uint8) bool {
	return uint16(c.offset) <= uint16(vector) && uint16(vector) < uint16(c.offset)+linesPerController
}

// ChainedPICs is the primary/secondary 8259 pair. All accesses to the
// controllers happen while holding an IRQSpinlock so that interrupt handlers
// acknowledging an interrupt cannot interleave with regular code talking to
// the controllers.
type ChainedPICs struct {
	lock        sync.IRQSpinlock
	primary     controller
	secondary   controller
	configured  bool
	initialized bool
}

// SetOffsets selects the vectors raised by the controllers: the primary
// controller's lines raise vectors [primaryOffset, primaryOffset+8) and the
// secondary controller's lines raise vectors [secondaryOffset,
// secondaryOffset+8). Both ranges must lie above the CPU exception vectors and
// must not overlap.
//
// SetOffsets does not talk to the hardware; the controllers are reprogrammed
// by Init.
func (p *ChainedPICs) SetOffsets(primaryOffset, secondaryOffset uint8) *kernel.Error {
	if p.initialized {
		return errAlreadyInitialized
	}

	for _, offset := range [2]uint8{primaryOffset, secondaryOffset} {
		if offset < minOffset || uint16(offset)+linesPerController > 256 {
			return errInvalidOffset
		}
	}

	if diff := int(primaryOffset) - int(secondaryOffset); diff > -linesPerController && diff < linesPerController {
		return errOverlappingOffsets
	}

	acquireFn(&p.lock)
	p.primary = controller{offset: primaryOffset, commandPort: primaryCommandPort, dataPort: primaryDataPort}
	p.secondary = controller{offset: secondaryOffset, commandPort: secondaryCommandPort, dataPort: secondaryDataPort}
	p.configured = true
	releaseFn(&p.lock)

	return nil
}

// Init remaps the controllers to the vectors selected via SetOffsets. The
// interrupt masks in effect before the remap are preserved.
//
// Init must be called after the handlers for the remapped vectors have been
// installed and before interrupts are enabled. It may only be called once.
func (p *ChainedPICs) Init() *kernel.Error {
	switch {
	case p.initialized:
		return errAlreadyInitialized
	case !p.configured:
		return errNotConfigured
	}

	acquireFn(&p.lock)

	primaryMask := portReadByteFn(primaryDataPort)
	secondaryMask := portReadByteFn(secondaryDataPort)

	// Each controller expects the 3 data words of the initialization
	// sequence to follow ICW1 on its data port.
	p.writeBoth(cmdInit, cmdInit, true)
	p.writeBoth(p.primary.offset, p.secondary.offset, false)
	p.writeBoth(primaryCascadeMask, secondaryCascadeIdent, false)
	p.writeBoth(mode8086, mode8086, false)

	portWriteByteFn(primaryDataPort, primaryMask)
	portWriteByteFn(secondaryDataPort, secondaryMask)

	p.initialized = true
	releaseFn(&p.lock)

	return nil
}

// writeBoth sends a byte to the command (or data) port of each controller,
// waiting after each write for the controller to process it.
func (p *ChainedPICs) writeBoth(primaryVal, secondaryVal uint8, command bool) {
	primaryPort, secondaryPort := p.primary.dataPort, p.secondary.dataPort
	if command {
		primaryPort, secondaryPort = p.primary.commandPort, p.secondary.commandPort
	}

	portWriteByteFn(primaryPort, primaryVal)
	ioWaitFn()
	portWriteByteFn(secondaryPort, secondaryVal)
	ioWaitFn()
}

// Handles returns true if vector is raised by one of the two controllers.
func (p *ChainedPICs) Handles(vector uint8) bool {
	return p.initialized && (p.primary.handles(vector) || p.secondary.handles(vector))
}

// Vector returns the interrupt vector that is raised for the given
// interrupt line (0-15) once the offsets have been set.
func (p *ChainedPICs) Vector(line uint8) uint8 {
	if line < linesPerController {
		return p.primary.offset + line
	}
	return p.secondary.offset + line - linesPerController
}

// EndOfInterrupt acknowledges vector so the controllers can deliver further
// interrupts. Interrupts raised by the secondary controller must be
// acknowledged to both controllers since they are delivered through the
// primary's cascade line. Vectors owned by neither controller are ignored.
//
// Interrupt handlers must call EndOfInterrupt exactly once, as their last
// action.
func (p *ChainedPICs) EndOfInterrupt(vector uint8) {
	if !p.Handles(vector) {
		return
	}

	acquireFn(&p.lock)
	if p.secondary.handles(vector) {
		portWriteByteFn(p.secondary.commandPort, cmdEndOfInterrupt)
	}
	portWriteByteFn(p.primary.commandPort, cmdEndOfInterrupt)
	releaseFn(&p.lock)
}

// Masks returns the interrupt masks of the primary and secondary
// controllers. A set bit disables the corresponding line.
func (p *ChainedPICs) Masks() (primary, secondary uint8) {
	acquireFn(&p.lock)
	primary = portReadByteFn(primaryDataPort)
	secondary = portReadByteFn(secondaryDataPort)
	releaseFn(&p.lock)

	return primary, secondary
}

// SetMasks updates the interrupt masks of both controllers.
func (p *ChainedPICs) SetMasks(primary, secondary uint8) {
	acquireFn(&p.lock)
	portWriteByteFn(primaryDataPort, primary)
	portWriteByteFn(secondaryDataPort, secondary)
	releaseFn(&p.lock)
}
