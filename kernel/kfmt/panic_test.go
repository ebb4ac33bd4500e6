package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/DrakulaD3a/redos/kernel"
	"github.com/DrakulaD3a/redos/kernel/cpu"
)

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	specs := []struct {
		descr string
		arg   interface{}
		exp   string
	}{
		{
			"with *kernel.Error",
			&kernel.Error{Module: "irq", Message: "double fault"},
			"\n-----------------------------------\n[irq] unrecoverable error: double fault\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with error",
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with string",
			"string error",
			"\n-----------------------------------\n[rt] unrecoverable error: string error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"without error",
			nil,
			"\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var buf bytes.Buffer
			outputSink = &buf
			cpuHaltCalled = false

			Panic(spec.arg)

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.exp, got)
			}

			if !cpuHaltCalled {
				t.Fatal("expected cpu.Halt() to be called by Panic")
			}
		})
	}
}

func TestNestedPanicHaltsImmediately(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
		panicking = false
	}()

	var (
		buf       bytes.Buffer
		haltCount int
	)
	cpuHaltFn = func() { haltCount++ }
	outputSink = &buf

	panicking = true
	Panic(&kernel.Error{Module: "test", Message: "fault while panicking"})

	if buf.Len() != 0 {
		t.Fatalf("expected nested panic not to print anything; got %q", buf.String())
	}

	if haltCount != 1 {
		t.Fatalf("expected nested panic to halt exactly once; got %d", haltCount)
	}
}

func TestPanicString(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var buf bytes.Buffer
	cpuHaltFn = func() {}
	outputSink = &buf

	panicString("runtime throw")

	if exp := "[rt] unrecoverable error: runtime throw"; !bytes.Contains(buf.Bytes(), []byte(exp)) {
		t.Fatalf("expected output to contain %q; got %q", exp, buf.String())
	}
}
