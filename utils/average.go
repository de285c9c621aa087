package utils

// RollingAverage is the mean of the last NumSamples values added.
type RollingAverage struct {
	data []float64
	pos  int
	n    int
	sum  float64
}

// NewRollingAverage returns an empty RollingAverage over numSamples values.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]float64, numSamples)}
}

// NumSamples returns the size of the window.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Len returns how many values the average is currently taken over.
func (ra *RollingAverage) Len() int {
	return ra.n
}

// Add adds x, evicting the oldest value once the window is full.
func (ra *RollingAverage) Add(x float64) {
	ra.sum += x - ra.data[ra.pos]
	ra.data[ra.pos] = x
	ra.pos = (ra.pos + 1) % len(ra.data)
	if ra.n < len(ra.data) {
		ra.n++
	}
}

// Average returns the mean of the values in the window, 0 if there are none.
func (ra *RollingAverage) Average() float64 {
	if ra.n == 0 {
		return 0
	}
	return ra.sum / float64(ra.n)
}

// Reset empties the window.
func (ra *RollingAverage) Reset() {
	clear(ra.data)
	ra.pos, ra.n, ra.sum = 0, 0, 0
}
