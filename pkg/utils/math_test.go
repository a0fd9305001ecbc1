package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	if n := NormalizeL2(x); n != 5 {
		t.Errorf("norm = %v, want 5", n)
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v", x)
	}

	zero := []float32{0, 0}
	if n := NormalizeL2(zero); n != 0 || zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v (norm %v)", zero, n)
	}
}
