package rangeheader

import (
	"math"
	"testing"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		offset, length uint64
		want           string
	}{
		{0, 1048576, "bytes=0-1048575"},
		{1024, 1, "bytes=1024-1024"},
		{0, 1, "bytes=0-0"},
	}
	for _, c := range cases {
		got, err := Compute(c.offset, c.length)
		if err != nil {
			t.Fatalf("Compute(%d, %d): unexpected error: %v", c.offset, c.length, err)
		}
		if got != c.want {
			t.Fatalf("Compute(%d, %d) = %q, want %q", c.offset, c.length, got, c.want)
		}
	}
}

func TestCompute_ZeroLengthErrors(t *testing.T) {
	if _, err := Compute(0, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestCompute_Overflow(t *testing.T) {
	_, err := Compute(math.MaxUint64, 1)
	if err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
