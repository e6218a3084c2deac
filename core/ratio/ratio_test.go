package ratio

import (
	"errors"
	"math"
	"testing"
)

func TestGCD(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{12, 18, 6},
		{7, 13, 1},
		{0, 5, 5},
		{5, 0, 5},
		{-4, 6, 2},
	}
	for _, c := range cases {
		if got := GCD(c.a, c.b); got != c.want {
			t.Errorf("GCD(%d,%d)=%d want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestLCMAll(t *testing.T) {
	got, err := LCMAll([]int{1, 2, 2})
	if err != nil {
		t.Fatalf("lcm: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 got %d", got)
	}
	got, err = LCMAll([]int{4, 6, 10})
	if err != nil {
		t.Fatalf("lcm: %v", err)
	}
	if got != 60 {
		t.Fatalf("expected 60 got %d", got)
	}
	for _, p := range []int{4, 6, 10} {
		if got%p != 0 {
			t.Fatalf("%d does not divide %d", p, got)
		}
	}
	if v, _ := LCMAll(nil); v != 0 {
		t.Fatalf("empty set should give 0, got %d", v)
	}
}

func TestLCMOverflow(t *testing.T) {
	if _, err := LCM(math.MaxInt, math.MaxInt-1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := LCMAll([]int{math.MaxInt / 2, 3, 7}); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
