package spread

// Window is a fixed-capacity ring of samples ordered oldest to newest.
// Pushing past capacity evicts the oldest sample.
type Window[T any] struct {
	buf   []T
	start int
	n     int
}

// NewWindow creates an empty window. Capacity below 1 is raised to 1.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Push appends v and returns the evicted sample, if any.
func (w *Window[T]) Push(v T) (evicted T, ok bool) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = v
		w.n++
		return evicted, false
	}
	evicted = w.buf[w.start]
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
	return evicted, true
}

func (w *Window[T]) Len() int   { return w.n }
func (w *Window[T]) Cap() int   { return len(w.buf) }
func (w *Window[T]) Full() bool { return w.n == len(w.buf) }

// At returns the i-th sample, 0 being the oldest. It panics when i is out of range.
func (w *Window[T]) At(i int) T {
	if i < 0 || i >= w.n {
		panic("spread: window index out of range")
	}
	return w.buf[(w.start+i)%len(w.buf)]
}

// Last returns the newest sample.
func (w *Window[T]) Last() (T, bool) {
	var zero T
	if w.n == 0 {
		return zero, false
	}
	return w.At(w.n - 1), true
}

// Values appends the samples oldest-first to dst[:0] and returns it.
func (w *Window[T]) Values(dst []T) []T {
	dst = dst[:0]
	for i := 0; i < w.n; i++ {
		dst = append(dst, w.buf[(w.start+i)%len(w.buf)])
	}
	return dst
}

// Reset empties the window, keeping its capacity.
func (w *Window[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.start, w.n = 0, 0
}
