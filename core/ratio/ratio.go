// Package ratio holds the integer helpers used to size a schedule table.
package ratio

import (
	"errors"
	"math"
)

// ErrOverflow is returned when a least common multiple does not fit in an int.
var ErrOverflow = errors.New("ratio: integer overflow")

// GCD returns the greatest common divisor of a and b using Euclid's algorithm.
// The result is always non-negative.
func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b.
// LCM(0, x) is 0.
func LCM(a, b int) (int, error) {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	q := a / GCD(a, b)
	if q > math.MaxInt/b {
		return 0, ErrOverflow
	}
	return q * b, nil
}

// LCMAll folds LCM over vals. An empty slice yields 0.
func LCMAll(vals []int) (int, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	res := vals[0]
	if res < 0 {
		res = -res
	}
	for _, v := range vals[1:] {
		l, err := LCM(res, v)
		if err != nil {
			return 0, err
		}
		res = l
	}
	return res, nil
}
