package kmain

import (
	"io"

	"github.com/DrakulaD3a/redos/device/video/console"
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/irq"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
	"github.com/DrakulaD3a/redos/kernel/mm"
	"github.com/DrakulaD3a/redos/kernel/mm/vmm"
	"github.com/DrakulaD3a/redos/kernel/qemu"
)

const (
	// unmappedTestAddr is a canonical address far from anything the
	// bootloader maps.
	unmappedTestAddr = uintptr(0xdeadbeaf000)

	// maxTimerWaits bounds the number of interrupts the timer check waits
	// for before giving up.
	maxTimerWaits = 1000

	numTestFrames = 8
)

// addressSpace is implemented by vmm.Mapper.
type addressSpace interface {
	Translate(virtAddr uintptr) (uintptr, *kernel.Error)
	Map(page mm.Page, frame mm.Frame, flags vmm.PageTableEntryFlag) *kernel.Error
	Unmap(page mm.Page) *kernel.Error
}

// colorWriter is implemented by console.Writer.
type colorWriter interface {
	io.Writer
	Colors() (fg, bg console.Color)
	SetColors(fg, bg console.Color)
}

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	breakpointFn       = cpu.Breakpoint
	waitForInterruptFn = cpu.WaitForInterrupt
	ticksFn            = irq.Ticks
	allocFrameFn       = mm.AllocFrame

	// space is the address space examined by the self-tests.
	space addressSpace

	consoleVirtAddr uintptr
	consolePhysAddr uintptr

	errTranslationMismatch = &kernel.Error{Module: "selftest", Message: "translated address does not match the expected physical address"}
	errUnexpectedMapping   = &kernel.Error{Module: "selftest", Message: "unmapped address has a translation"}
	errNoTimerTicks        = &kernel.Error{Module: "selftest", Message: "timer interrupts are not delivered"}
	errFrameReused         = &kernel.Error{Module: "selftest", Message: "frame allocator returned the same frame twice"}
	errInvalidFrame        = &kernel.Error{Module: "selftest", Message: "frame allocator returned an invalid frame"}
)

type selfTest struct {
	name string
	run  func() *kernel.Error
}

var selfTests = []selfTest{
	{"breakpoint exception resumes", testBreakpoint},
	{"timer interrupts", testTimerTicks},
	{"translate console buffer", testTranslateConsole},
	{"translate unmapped address", testTranslateUnmapped},
	{"frame allocator", testFrameAllocator},
	{"map allocated frame", testMapFrame},
}

// runSelfTests executes the boot self-tests, reporting each result to w, and
// returns the exit code for the test runner.
func runSelfTests(w io.Writer) qemu.ExitCode {
	var failed int

	kfmt.Fprintf(w, "Running %d tests\n", len(selfTests))
	for _, test := range selfTests {
		kfmt.Fprintf(w, "%s...\t", test.name)
		if err := test.run(); err != nil {
			printStatus(w, "[failed]", console.LightRed)
			kfmt.Fprintf(w, "Error: [%s] %s\n", err.Module, err.Message)
			failed++
			continue
		}
		printStatus(w, "[ok]", console.LightGreen)
	}

	if failed != 0 {
		kfmt.Fprintf(w, "%d of %d tests failed\n", failed, len(selfTests))
		return qemu.Failed
	}

	return qemu.Success
}

// printStatus writes a test status line, in the supplied foreground color if
// w supports colors.
func printStatus(w io.Writer, status string, fg console.Color) {
	if cw, ok := w.(colorWriter); ok {
		prevFg, prevBg := cw.Colors()
		cw.SetColors(fg, prevBg)
		kfmt.Fprintf(w, "%s", status)
		cw.SetColors(prevFg, prevBg)
	} else {
		kfmt.Fprintf(w, "%s", status)
	}
	kfmt.Fprintf(w, "\n")
}

// testBreakpoint passes if execution resumes after the breakpoint handler
// returns.
func testBreakpoint() *kernel.Error {
	breakpointFn()
	return nil
}

func testTimerTicks() *kernel.Error {
	start := ticksFn()
	for i := 0; i < maxTimerWaits; i++ {
		if ticksFn() != start {
			return nil
		}
		waitForInterruptFn()
	}

	return errNoTimerTicks
}

func testTranslateConsole() *kernel.Error {
	physAddr, err := space.Translate(consoleVirtAddr)
	if err != nil {
		return err
	}

	if physAddr != consolePhysAddr {
		return errTranslationMismatch
	}

	return nil
}

func testTranslateUnmapped() *kernel.Error {
	if _, err := space.Translate(unmappedTestAddr); err != vmm.ErrInvalidMapping {
		return errUnexpectedMapping
	}

	return nil
}

// testFrameAllocator checks that consecutive allocations return distinct,
// valid frames.
func testFrameAllocator() *kernel.Error {
	var frames [numTestFrames]mm.Frame

	for i := range frames {
		frame, err := allocFrameFn()
		if err != nil {
			return err
		}

		if !frame.Valid() || frame.Address()&mm.PageOffsetMask != 0 {
			return errInvalidFrame
		}

		for j := 0; j < i; j++ {
			if frames[j] == frame {
				return errFrameReused
			}
		}
		frames[i] = frame
	}

	return nil
}

// testMapFrame maps a fresh frame at an unused address, verifies that the
// new mapping translates back to the frame and removes it again. The
// intermediate tables for the mapping are also taken from the frame
// allocator.
func testMapFrame() *kernel.Error {
	frame, err := allocFrameFn()
	if err != nil {
		return err
	}

	page := mm.PageFromAddress(unmappedTestAddr)
	if err = space.Map(page, frame, vmm.FlagPresent|vmm.FlagRW|vmm.FlagNoExecute); err != nil {
		return err
	}

	physAddr, err := space.Translate(page.Address() + 0x10)
	if err != nil {
		return err
	}

	if physAddr != frame.Address()+0x10 {
		return errTranslationMismatch
	}

	if err = space.Unmap(page); err != nil {
		return err
	}

	if _, err = space.Translate(page.Address()); err != vmm.ErrInvalidMapping {
		return errUnexpectedMapping
	}

	return nil
}
