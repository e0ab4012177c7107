package features

// MovingAverageSame is a k-period moving average with same-length convolution semantics:
// the kernel ones(k)/k is centered on each index the way a "same" mode convolution crops
// the full result (offset (k-1)/2), and samples outside the series count as zero.
// The output always has len(data) elements, so edges are biased toward zero and k > len(data) is allowed.
func MovingAverageSame(data []float64, k int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 || k <= 0 {
		return out
	}
	w := 1.0 / float64(k)
	off := (k - 1) / 2
	for i := 0; i < n; i++ {
		hi := i + off
		lo := hi - (k - 1)
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		var s float64
		for j := lo; j <= hi; j++ {
			s += data[j] * w
		}
		out[i] = s
	}
	return out
}
