package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. It is used to tag diagnostics with the
// subsystem that emitted them (e.g. "[pmm] ").
type PrefixWriter struct {
	// A writer where all writes get sent to. If nil, writes go to the
	// same destination as Printf.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	bytesAfterPrefix int
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// back the number of bytes written. The injected prefix is not included in
// the number of written bytes returned by this method.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var (
		written              int
		startIndex, curIndex int
	)

	sink := w.sink()
	if w.bytesAfterPrefix == 0 && len(p) != 0 {
		_, _ = sink.Write(w.Prefix)
	}

	for ; curIndex < len(p); curIndex++ {
		if p[curIndex] != '\n' {
			continue
		}

		n, err := sink.Write(p[startIndex : curIndex+1])
		written += n
		if err != nil {
			return written, err
		}

		if curIndex+1 != len(p) {
			_, _ = sink.Write(w.Prefix)
		}
		w.bytesAfterPrefix = 0
		startIndex = curIndex + 1
	}

	if startIndex < curIndex {
		n, err := sink.Write(p[startIndex:curIndex])
		written += n
		w.bytesAfterPrefix += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

func (w *PrefixWriter) sink() io.Writer {
	switch {
	case w.Sink != nil:
		return w.Sink
	case outputSink != nil:
		return outputSink
	default:
		return &earlyPrintBuffer
	}
}
