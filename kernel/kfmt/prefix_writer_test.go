package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{
			"",
			"",
		},
		{
			"\n",
			"[pmm] \n",
		},
		{
			"no line break anywhere",
			"[pmm] no line break anywhere",
		},
		{
			"line feed at the end\n",
			"[pmm] line feed at the end\n",
		},
		{
			"\nusable region\n[0x100000 - 0x200000]\nframes: 256",
			"[pmm] \n[pmm] usable region\n[pmm] [0x100000 - 0x200000]\n[pmm] frames: 256",
		},
	}

	var (
		buf bytes.Buffer
		w   = PrefixWriter{
			Sink:   &buf,
			Prefix: []byte("[pmm] "),
		}
	)

	for specIndex, spec := range specs {
		buf.Reset()
		w.bytesAfterPrefix = 0

		wrote, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if expLen := len(spec.input); expLen != wrote {
			t.Errorf("[spec %d] expected writer to write %d bytes; wrote %d", specIndex, expLen, wrote)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterAcrossWrites(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf, Prefix: []byte("> ")}
	)

	Fprintf(&w, "frame: 0x%x", uint64(0x100000))
	Fprintf(&w, " ok\nnext")

	if exp, got := "> frame: 0x100000 ok\n> next", buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestPrefixWriterErrors(t *testing.T) {
	w := PrefixWriter{Sink: errWriter{}, Prefix: []byte("> ")}

	for specIndex, input := range []string{"with newline\n", "without newline"} {
		w.bytesAfterPrefix = 0
		if _, err := w.Write([]byte(input)); err == nil {
			t.Errorf("[spec %d] expected an error", specIndex)
		}
	}
}

func TestPrefixWriterDefaultSink(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	var (
		buf bytes.Buffer
		w   = PrefixWriter{Prefix: []byte("[irq] ")}
	)

	outputSink = &buf
	Fprintf(&w, "tick\n")

	if exp, got := "[irq] tick\n", buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}
