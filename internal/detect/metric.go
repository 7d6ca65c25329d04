package detect

import "fmt"

// LumaBuffer is a raw brightness-only sample of a single frame, laid out
// row-major. It exists for exactly one comparison cycle.
type LumaBuffer struct {
	Pix    []byte
	Width  int
	Height int
}

// MeanSquaredDiff computes the mean squared pixel-wise difference between two
// luma buffers. Two identical buffers score 0; two buffers differing by a
// constant offset d in every pixel score d². Mismatched dimensions are a
// precondition violation and are reported as an error rather than truncated.
func MeanSquaredDiff(prev, cur LumaBuffer) (float64, error) {
	if prev.Width != cur.Width || prev.Height != cur.Height {
		return 0, fmt.Errorf("luma dimensions differ: %dx%d vs %dx%d",
			prev.Width, prev.Height, cur.Width, cur.Height)
	}

	n := cur.Width * cur.Height
	if len(prev.Pix) != n || len(cur.Pix) != n {
		return 0, fmt.Errorf("luma buffer length does not match %dx%d grid", cur.Width, cur.Height)
	}
	if n == 0 {
		return 0, fmt.Errorf("luma buffer is empty")
	}

	// Max per-pixel square is 255² and buffers top out around 8 MP, so the
	// sum fits a uint64 with plenty of headroom.
	var sum uint64
	for i := 0; i < n; i++ {
		d := int(cur.Pix[i]) - int(prev.Pix[i])
		sum += uint64(d * d)
	}

	return float64(sum) / float64(n), nil
}
