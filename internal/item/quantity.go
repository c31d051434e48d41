package item

import "math"

// MaxQuantity is the largest stack arithmetic result accepted anywhere in
// storage or crafting.
const MaxQuantity = math.MaxInt32

// MulQuantity multiplies a per-unit amount by a count in 64-bit space and
// reports false when the product is negative or does not fit in MaxQuantity.
func MulQuantity(perUnit, count int) (int, bool) {
	if perUnit < 0 || count < 0 {
		return 0, false
	}
	p := int64(perUnit) * int64(count)
	if perUnit != 0 && p/int64(perUnit) != int64(count) {
		return 0, false
	}
	if p > MaxQuantity {
		return 0, false
	}
	return int(p), true
}

// AddQuantity adds two non-negative amounts, clamping at MaxQuantity.
func AddQuantity(a, b int) int {
	s := int64(a) + int64(b)
	if s > MaxQuantity {
		return MaxQuantity
	}
	if s < 0 {
		return 0
	}
	return int(s)
}

// CeilDiv returns ceil(n/d) for positive d; zero when n <= 0.
func CeilDiv(n, d int) int {
	if n <= 0 || d <= 0 {
		return 0
	}
	return int((int64(n) + int64(d) - 1) / int64(d))
}
