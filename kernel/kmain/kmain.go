package kmain

import (
	"github.com/DrakulaD3a/redos/device/video/console"
	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
	"github.com/DrakulaD3a/redos/kernel/gate"
	"github.com/DrakulaD3a/redos/kernel/gdt"
	"github.com/DrakulaD3a/redos/kernel/irq"
	"github.com/DrakulaD3a/redos/kernel/kfmt"
	"github.com/DrakulaD3a/redos/kernel/mm/pmm"
	"github.com/DrakulaD3a/redos/kernel/mm/vmm"
	"github.com/DrakulaD3a/redos/kernel/pic"
	"github.com/DrakulaD3a/redos/kernel/qemu"
	"github.com/DrakulaD3a/redos/multiboot"
)

const (
	// The hardware interrupt lines are remapped right after the CPU
	// exception vectors.
	picPrimaryOffset   = 32
	picSecondaryOffset = picPrimaryOffset + 8
)

var (
	vgaConsole console.VgaTextConsole
	conWriter  console.Writer

	idt  gate.Table
	pics pic.ChainedPICs

	logWriter = kfmt.PrefixWriter{Prefix: []byte("[kmain] ")}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code
// after setting up the GDT and setting up a a minimal g0 struct that allows
// Go code using the 4K stack allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by
// the bootloader, the virtual address where the bootloader mapped the
// complete physical memory and the physical addresses for the kernel
// start/end.
//
// Kmain is not expected to return.
//
//go:noinline
func Kmain(multibootInfoPtr, physMemOffset, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	columns, rows, fbPhysAddr := console.ProbeFramebuffer()
	vgaConsole.Init(columns, rows, physMemOffset+fbPhysAddr)
	conWriter.AttachTo(&vgaConsole)
	kfmt.SetOutputSink(&conWriter)

	kfmt.Printf("Hello World%c\n", '!')

	cfg := loadConfig()
	kfmt.Fprintf(&logWriter, "timer trace: %s, keyboard: %s, self-test: %s\n",
		onOff(cfg.irq.TimerTrace), onOff(cfg.irq.Keyboard), onOff(cfg.selfTest),
	)

	var (
		mapper *vmm.Mapper
		err    *kernel.Error
	)

	if err = gdt.Init(); err != nil {
		kfmt.Panic(err)
	} else if err = pics.SetOffsets(picPrimaryOffset, picSecondaryOffset); err != nil {
		kfmt.Panic(err)
	}

	irq.Init(&pics, cfg.irq)
	if err = irq.Install(&idt); err != nil {
		kfmt.Panic(err)
	} else if err = idt.Install(); err != nil {
		kfmt.Panic(err)
	} else if err = pics.Init(); err != nil {
		kfmt.Panic(err)
	}

	maskUnhandledLines(&pics, cfg.irq)
	cpu.EnableInterrupts()

	if mapper, err = vmm.DeriveMapper(physMemOffset); err != nil {
		kfmt.Panic(err)
	} else if err = pmm.Init(kernelStart, kernelEnd); err != nil {
		kfmt.Panic(err)
	}

	if cfg.selfTest {
		space = mapper
		consoleVirtAddr, consolePhysAddr = physMemOffset+fbPhysAddr, fbPhysAddr
		exitCode := runSelfTests(&conWriter)
		pmm.PrintAllocStats()
		qemu.Exit(exitCode)
	}

	kfmt.Fprintf(&logWriter, "boot complete\n")
	for {
		cpu.WaitForInterrupt()
	}
}

// lineMasker is implemented by pic.ChainedPICs.
type lineMasker interface {
	Masks() (primary, secondary uint8)
	SetMasks(primary, secondary uint8)
}

// maskUnhandledLines unmasks the hardware lines that have a handler installed
// and masks the keyboard line when keyboard input is disabled. The remaining
// lines keep the masks left by the firmware.
func maskUnhandledLines(m lineMasker, cfg irq.Config) {
	primary, secondary := m.Masks()

	primary &^= 1 << pic.TimerLine
	if cfg.Keyboard {
		primary &^= 1 << pic.KeyboardLine
	} else {
		primary |= 1 << pic.KeyboardLine
	}

	m.SetMasks(primary, secondary)
}
