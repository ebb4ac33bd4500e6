// Package qemu signals the test outcome to QEMU through the isa-debug-exit
// device so that automated boot tests can terminate the emulator.
package qemu

import "github.com/DrakulaD3a/redos/kernel/cpu"

// ExitCode is the value written to the debug exit port. QEMU exits with
// status (code << 1) | 1.
type ExitCode uint32

// The exit codes understood by the test runner.
const (
	Success ExitCode = 0x10
	Failed  ExitCode = 0x11
)

// exitPort is the I/O port of the isa-debug-exit device
// (-device isa-debug-exit,iobase=0xf4,iosize=0x04).
const exitPort = 0xf4

var (
	// portWriteDwordFn is mocked by tests and is automatically inlined by
	// the compiler.
	portWriteDwordFn = cpu.PortWriteDword
)

// Exit asks QEMU to terminate with the given exit code. When not running
// under QEMU the write is ignored and Exit returns.
func Exit(code ExitCode) {
	portWriteDwordFn(exitPort, uint32(code))
}
