package classify

// DefaultWindowSize is the window capacity in bytes used when no override
// is configured.
const DefaultWindowSize = 4096

// Window is a bounded sliding window over a session's ANSI-stripped output.
//
// It behaves like a fixed-capacity ring: once the window fills, each
// appended byte evicts the oldest one, so the window always holds the most
// recent output without unbounded growth.
//
// Visual example with a 5-byte window:
//
//	Initial:      [_, _, _, _, _]  start=0, end=0
//	Append "abc": [a, b, c, _, _]  start=0, end=3
//	Append "de":  [a, b, c, d, e]  start=0, end=0, full=true
//	Append "fg":  [f, g, c, d, e]  start=2, end=2 → String() returns "cdefg"
//
// Window is not safe for concurrent use on its own: the classifier guards
// each session's window with that session's lock, so the window itself
// carries no locking.
type Window struct {
	data  []byte
	size  int
	start int
	end   int
	full  bool
}

// NewWindow creates a window with the given capacity in bytes.
// Non-positive capacities fall back to DefaultWindowSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{
		data: make([]byte, size),
		size: size,
	}
}

// Append adds stripped output to the window, evicting the oldest bytes once
// the capacity is reached. Appending more than the capacity in one call
// leaves the window holding the final capacity bytes of the input.
func (w *Window) Append(p []byte) {
	for _, b := range p {
		w.data[w.end] = b
		w.end = (w.end + 1) % w.size

		if w.full {
			w.start = (w.start + 1) % w.size
		}

		if w.end == w.start {
			w.full = true
		}
	}
}

// String returns the window contents in chronological order (oldest to
// newest). The result is a copy.
func (w *Window) String() string {
	if !w.full && w.start == 0 {
		return string(w.data[:w.end])
	}

	buf := make([]byte, 0, w.Len())
	if w.full || w.end < w.start {
		buf = append(buf, w.data[w.start:]...)
		buf = append(buf, w.data[:w.end]...)
	} else {
		buf = append(buf, w.data[w.start:w.end]...)
	}
	return string(buf)
}

// Len returns the number of bytes currently held, never more than Cap.
func (w *Window) Len() int {
	if w.full {
		return w.size
	}
	if w.end >= w.start {
		return w.end - w.start
	}
	return w.size - w.start + w.end
}

// Cap returns the window capacity in bytes.
func (w *Window) Cap() int {
	return w.size
}

// Reset discards the window contents, retaining the capacity.
func (w *Window) Reset() {
	w.start = 0
	w.end = 0
	w.full = false
}
