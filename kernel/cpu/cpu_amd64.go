// Package cpu exposes the privileged amd64 instructions used by the kernel.
// All functions without a body are implemented in cpu_amd64.s.
package cpu

const (
	// ioWaitPort is an unused port (POST diagnostics) that is written to
	// in order to give slow devices time to process a previous command.
	ioWaitPort = 0x80
)

var (
	// portWriteByteFn is mocked by tests.
	portWriteByteFn = PortWriteByte
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the interrupt flag (RFLAGS.IF) is set.
func InterruptsEnabled() bool

// Halt disables interrupts and stops instruction execution. Calls to Halt
// never return.
func Halt()

// WaitForInterrupt enables interrupts and idles the CPU until the next
// interrupt has been serviced.
func WaitForInterrupt()

// Breakpoint raises a breakpoint exception (int3).
func Breakpoint()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the contents of the CR3 register. The physical address of
// the currently active top-level page table is stored in bits 12-51.
func ActivePDT() uintptr

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64

// LoadIDT loads the interrupt descriptor table located at base. The limit
// argument is the table size in bytes minus one.
func LoadIDT(base uintptr, limit uint16)

// LoadGDT loads the global descriptor table located at base. The limit
// argument is the table size in bytes minus one.
func LoadGDT(base uintptr, limit uint16)

// ReloadSegments loads the data segment registers (DS, ES and SS) with the
// data selector and reloads CS with the code selector via a far return. It
// must be called after loading a new GDT.
func ReloadSegments(code, data uint16)

// LoadTaskRegister loads the task register with the supplied TSS selector.
func LoadTaskRegister(selector uint16)

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortWriteDword writes a uint32 value to the requested port.
func PortWriteDword(port uint16, val uint32)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// IOWait delays execution for roughly 1-4us by writing to an unused port.
// It is used between successive commands sent to legacy devices that are
// unable to keep up with the CPU.
func IOWait() {
	portWriteByteFn(ioWaitPort, 0)
}
