package realtime

// DefaultCapacity is the number of values kept per metric.
const DefaultCapacity = 20

// Window is a fixed-capacity FIFO of the most recent values. Pushing into a
// full window overwrites the oldest value.
type Window struct {
	data  []float64
	head  int
	count int
}

// NewWindow creates a window holding at most capacity values. A
// non-positive capacity falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when the window is full.
func (w *Window) Push(v float64) {
	idx := (w.head + w.count) % len(w.data)
	w.data[idx] = v
	if w.count < len(w.data) {
		w.count++
		return
	}
	w.head = (w.head + 1) % len(w.data)
}

// Values returns a copy of the window, oldest first and most recent last.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.data[(w.head+i)%len(w.data)]
	}
	return out
}

func (w *Window) Len() int {
	return w.count
}

func (w *Window) Cap() int {
	return len(w.data)
}
