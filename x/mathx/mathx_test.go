package mathx

import "testing"

func TestClampAndBetween(t *testing.T) {
	if Clamp(12, 0, 9) != 9 || Clamp(-1, 9, 0) != 0 || Clamp(4, 0, 9) != 4 {
		t.Fatalf("clamp")
	}
	if !Between(9, 0, 9) || Between(10, 0, 9) || !Between(3, 9, 0) {
		t.Fatalf("between")
	}
	if Max(3, 7) != 7 {
		t.Fatalf("max")
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ a, b, want uint64 }{
		{10, 4, 3},
		{9, 4, 2},
		{7, 0, 0},
		{44100 << 22, 48000, 3853517},
	}
	for _, c := range cases {
		if got := RoundDiv(c.a, c.b); got != c.want {
			t.Fatalf("RoundDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
