package utils

import "math"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs32 is math.Abs for float32.
func Abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Distance returns the euclidean distance between two points.
func Distance(x1, y1, x2, y2 float32) float32 {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

// Hypot32 returns the magnitude of a 2-D vector.
func Hypot32(x, y float32) float32 {
	return float32(math.Hypot(float64(x), float64(y)))
}

// Round1 rounds to one decimal place, the broadcast precision for positions
// and velocities.
func Round1(v float32) float32 {
	return float32(math.Round(float64(v)*10) / 10)
}

// Round2 rounds to two decimal places, used for ball rotation.
func Round2(v float32) float32 {
	return float32(math.Round(float64(v)*100) / 100)
}
