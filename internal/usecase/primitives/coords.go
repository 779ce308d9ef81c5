package primitives

import "math"

// Range is the virtual coordinate space the reasoning backend works in.
const Range = 1000

// Denormalize maps a normalized coordinate onto [0, dimension] pixels.
func Denormalize(v float64, dimension int) int {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(0, math.Min(Range, v))
	return int(math.Round(v / Range * float64(dimension)))
}

// Normalize is the inverse of Denormalize, used when reporting positions back.
func Normalize(px, dimension int) float64 {
	if dimension <= 0 {
		return 0
	}
	return math.Max(0, math.Min(Range, float64(px)/float64(dimension)*Range))
}
