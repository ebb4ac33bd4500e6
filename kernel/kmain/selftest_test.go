package kmain

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/DrakulaD3a/redos/device/video/console"
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/irq"
	"github.com/DrakulaD3a/redos/kernel/mm"
	"github.com/DrakulaD3a/redos/kernel/mm/vmm"
	"github.com/DrakulaD3a/redos/kernel/qemu"
)

var errTestFailure = &kernel.Error{Module: "test", Message: "check failed"}

// fakeSpace is an address space backed by a page to frame map.
type fakeSpace struct {
	mappings   map[mm.Page]mm.Frame
	mapErr     *kernel.Error
	mapCalls   int
	unmapErr   *kernel.Error
	unmapCalls int
}

func (s *fakeSpace) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	frame, ok := s.mappings[mm.PageFromAddress(virtAddr)]
	if !ok {
		return 0, vmm.ErrInvalidMapping
	}
	return frame.Address() + mm.PageOffset(virtAddr), nil
}

func (s *fakeSpace) Map(page mm.Page, frame mm.Frame, _ vmm.PageTableEntryFlag) *kernel.Error {
	s.mapCalls++
	if s.mapErr != nil {
		return s.mapErr
	}
	s.mappings[page] = frame
	return nil
}

func (s *fakeSpace) Unmap(page mm.Page) *kernel.Error {
	s.unmapCalls++
	if s.unmapErr != nil {
		return s.unmapErr
	}
	if _, ok := s.mappings[page]; !ok {
		return vmm.ErrInvalidMapping
	}
	delete(s.mappings, page)
	return nil
}

// coloredOutput groups the written text into runs that share the same
// foreground color.
type coloredOutput struct {
	fg, bg   console.Color
	runs     []string
	runColor []console.Color
}

func (o *coloredOutput) Write(data []byte) (int, error) {
	if last := len(o.runs) - 1; last >= 0 && o.runColor[last] == o.fg {
		o.runs[last] += string(data)
	} else {
		o.runs = append(o.runs, string(data))
		o.runColor = append(o.runColor, o.fg)
	}
	return len(data), nil
}

func (o *coloredOutput) Colors() (console.Color, console.Color) { return o.fg, o.bg }

func (o *coloredOutput) SetColors(fg, bg console.Color) { o.fg, o.bg = fg, bg }

func restoreSelfTestMocks() {
	breakpointFn = cpu.Breakpoint
	waitForInterruptFn = cpu.WaitForInterrupt
	ticksFn = irq.Ticks
	allocFrameFn = mm.AllocFrame
	space = nil
}

// sequentialFrames returns an allocator that hands out consecutive frames.
func sequentialFrames(first mm.Frame) func() (mm.Frame, *kernel.Error) {
	next := first
	return func() (mm.Frame, *kernel.Error) {
		f := next
		next++
		return f, nil
	}
}

func TestRunSelfTests(t *testing.T) {
	origTests := selfTests
	defer func() {
		selfTests = origTests
	}()

	pass := func() *kernel.Error { return nil }
	fail := func() *kernel.Error { return errTestFailure }

	specs := []struct {
		tests   []selfTest
		expCode qemu.ExitCode
		expOut  string
	}{
		{
			[]selfTest{{"first", pass}, {"second", pass}},
			qemu.Success,
			"Running 2 tests\nfirst...\t[ok]\nsecond...\t[ok]\n",
		},
		{
			[]selfTest{{"first", fail}, {"second", pass}},
			qemu.Failed,
			"Running 2 tests\nfirst...\t[failed]\nError: [test] check failed\nsecond...\t[ok]\n1 of 2 tests failed\n",
		},
		{
			nil,
			qemu.Success,
			"Running 0 tests\n",
		},
	}

	for specIndex, spec := range specs {
		var buf bytes.Buffer
		selfTests = spec.tests

		if got := runSelfTests(&buf); got != spec.expCode {
			t.Errorf("[spec %d] expected exit code 0x%x; got 0x%x", specIndex, spec.expCode, got)
		}

		if got := buf.String(); got != spec.expOut {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.expOut, got)
		}
	}
}

func TestRunSelfTestsStatusColors(t *testing.T) {
	origTests := selfTests
	defer func() {
		selfTests = origTests
	}()

	selfTests = []selfTest{
		{"first", func() *kernel.Error { return nil }},
		{"second", func() *kernel.Error { return errTestFailure }},
	}

	out := &coloredOutput{fg: console.Yellow, bg: console.Black}
	if got := runSelfTests(out); got != qemu.Failed {
		t.Fatalf("expected exit code 0x%x; got 0x%x", qemu.Failed, got)
	}

	expRuns := []string{
		"Running 2 tests\nfirst...\t",
		"[ok]",
		"\nsecond...\t",
		"[failed]",
		"\nError: [test] check failed\n1 of 2 tests failed\n",
	}
	expColors := []console.Color{console.Yellow, console.LightGreen, console.Yellow, console.LightRed, console.Yellow}

	if !reflect.DeepEqual(out.runs, expRuns) {
		t.Fatalf("expected output runs:\n%q\ngot:\n%q", expRuns, out.runs)
	}

	if !reflect.DeepEqual(out.runColor, expColors) {
		t.Fatalf("expected run colors %v; got %v", expColors, out.runColor)
	}

	if out.fg != console.Yellow || out.bg != console.Black {
		t.Fatalf("expected colors to be restored; got %d, %d", out.fg, out.bg)
	}
}

func TestBreakpointCheck(t *testing.T) {
	defer restoreSelfTestMocks()

	calls := 0
	breakpointFn = func() { calls++ }

	if err := testBreakpoint(); err != nil || calls != 1 {
		t.Fatalf("expected a single breakpoint and no error; got %d calls and %v", calls, err)
	}
}

func TestTimerCheck(t *testing.T) {
	defer restoreSelfTestMocks()

	specs := []struct {
		tickAfter int
		expErr    *kernel.Error
	}{
		{0, nil},
		{3, nil},
		{-1, errNoTimerTicks},
	}

	for specIndex, spec := range specs {
		var ticks uint64
		waits := 0
		ticksFn = func() uint64 { return ticks }
		waitForInterruptFn = func() {
			waits++
			if spec.tickAfter != -1 && waits > spec.tickAfter {
				ticks++
			}
		}

		if err := testTimerTicks(); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}

		if spec.expErr != nil && waits != maxTimerWaits {
			t.Errorf("[spec %d] expected %d waits before giving up; got %d", specIndex, maxTimerWaits, waits)
		}
	}
}

func TestTranslateChecks(t *testing.T) {
	defer restoreSelfTestMocks()

	consoleVirtAddr, consolePhysAddr = 0xffff8000000b8000, 0xb8000

	specs := []struct {
		mappings    map[mm.Page]mm.Frame
		expConsole  *kernel.Error
		expUnmapped *kernel.Error
	}{
		{
			map[mm.Page]mm.Frame{mm.PageFromAddress(consoleVirtAddr): mm.FrameFromAddress(consolePhysAddr)},
			nil,
			nil,
		},
		{
			map[mm.Page]mm.Frame{
				mm.PageFromAddress(consoleVirtAddr):  mm.FrameFromAddress(0xb9000),
				mm.PageFromAddress(unmappedTestAddr): mm.Frame(1),
			},
			errTranslationMismatch,
			errUnexpectedMapping,
		},
		{
			map[mm.Page]mm.Frame{},
			vmm.ErrInvalidMapping,
			nil,
		},
	}

	for specIndex, spec := range specs {
		space = &fakeSpace{mappings: spec.mappings}

		if err := testTranslateConsole(); err != spec.expConsole {
			t.Errorf("[spec %d] expected console check error %v; got %v", specIndex, spec.expConsole, err)
		}

		if err := testTranslateUnmapped(); err != spec.expUnmapped {
			t.Errorf("[spec %d] expected unmapped check error %v; got %v", specIndex, spec.expUnmapped, err)
		}
	}
}

func TestFrameAllocatorCheck(t *testing.T) {
	defer restoreSelfTestMocks()

	errOOM := &kernel.Error{Module: "test", Message: "out of memory"}

	specs := []struct {
		allocFn func() (mm.Frame, *kernel.Error)
		expErr  *kernel.Error
	}{
		{sequentialFrames(0x100), nil},
		{func() (mm.Frame, *kernel.Error) { return mm.Frame(0x100), nil }, errFrameReused},
		{func() (mm.Frame, *kernel.Error) { return mm.InvalidFrame, nil }, errInvalidFrame},
		{func() (mm.Frame, *kernel.Error) { return mm.InvalidFrame, errOOM }, errOOM},
	}

	for specIndex, spec := range specs {
		allocFrameFn = spec.allocFn
		if err := testFrameAllocator(); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestMapFrameCheck(t *testing.T) {
	defer restoreSelfTestMocks()

	t.Run("success", func(t *testing.T) {
		fs := &fakeSpace{mappings: map[mm.Page]mm.Frame{}}
		space = fs
		allocFrameFn = sequentialFrames(0x200)

		if err := testMapFrame(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if fs.mapCalls != 1 || fs.unmapCalls != 1 {
			t.Fatalf("expected one Map and one Unmap call; got %d and %d", fs.mapCalls, fs.unmapCalls)
		}

		if _, mapped := fs.mappings[mm.PageFromAddress(unmappedTestAddr)]; mapped {
			t.Fatal("expected the test page to be unmapped after the check")
		}
	})

	t.Run("unmap error", func(t *testing.T) {
		space = &fakeSpace{mappings: map[mm.Page]mm.Frame{}, unmapErr: vmm.ErrHugePageUnsupported}
		allocFrameFn = sequentialFrames(0x200)

		if err := testMapFrame(); err != vmm.ErrHugePageUnsupported {
			t.Fatalf("expected to get ErrHugePageUnsupported; got %v", err)
		}
	})

	t.Run("map error", func(t *testing.T) {
		space = &fakeSpace{mappings: map[mm.Page]mm.Frame{}, mapErr: vmm.ErrPageAlreadyMapped}
		allocFrameFn = sequentialFrames(0x200)

		if err := testMapFrame(); err != vmm.ErrPageAlreadyMapped {
			t.Fatalf("expected to get ErrPageAlreadyMapped; got %v", err)
		}
	})

	t.Run("alloc error", func(t *testing.T) {
		fs := &fakeSpace{mappings: map[mm.Page]mm.Frame{}}
		space = fs
		allocFrameFn = func() (mm.Frame, *kernel.Error) { return mm.InvalidFrame, errTestFailure }

		if err := testMapFrame(); err != errTestFailure {
			t.Fatalf("expected to get errTestFailure; got %v", err)
		}

		if fs.mapCalls != 0 {
			t.Fatal("expected Map not to be called when allocation fails")
		}
	})
}
