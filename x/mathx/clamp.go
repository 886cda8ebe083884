package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Unit maps an integer level in [0, top] onto [0, 1], clamping first.
func Unit[T constraints.Integer](level, top T) float64 {
	if top <= 0 {
		return 0
	}
	return float64(Clamp(level, 0, top)) / float64(top)
}

// ScaleU8 scales a channel value by f in [0, 1], rounding to nearest.
func ScaleU8(v uint8, f float64) uint8 {
	f = Clamp(f, 0, 1)
	return uint8(float64(v)*f + 0.5)
}

// Min/Max for convenience.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
