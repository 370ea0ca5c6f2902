package common

import "testing"

func assertTrue(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestDirOffsets(t *testing.T) {
	// The four directions walk a closed loop around a cell.
	x, y := 5, 5
	for dir := 0; dir < 4; dir++ {
		x += DirOffsetX(dir)
		y += DirOffsetY(dir)
	}
	assertTrue(t, x == 5 && y == 5, "direction offsets do not cancel: got (%d,%d)", x, y)

	for dir := 0; dir < 4; dir++ {
		dx := DirOffsetX(dir)
		dy := DirOffsetY(dir)
		assertTrue(t, Abs(dx)+Abs(dy) == 1, "dir %d is not a unit step: (%d,%d)", dir, dx, dy)
	}
}

func TestClamp(t *testing.T) {
	assertTrue(t, Clamp(5, 0, 10) == 5, "in-range value changed")
	assertTrue(t, Clamp(-1, 0, 10) == 0, "below min not clamped")
	assertTrue(t, Clamp(11, 0, 10) == 10, "above max not clamped")
	assertTrue(t, Clamp(float32(2.5), 0, 1) == 1, "float clamp broken")
}

func TestNextPow2(t *testing.T) {
	cases := [][2]int{{0, 0}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {16, 16}, {1000, 1024}}
	for _, c := range cases {
		got := NextPow2(c[0])
		assertTrue(t, got == c[1], "NextPow2(%d) = %d, want %d", c[0], got, c[1])
	}
}

func TestIlog2(t *testing.T) {
	cases := [][2]int{{1, 0}, {2, 1}, {4, 2}, {7, 2}, {8, 3}, {1024, 10}}
	for _, c := range cases {
		got := Ilog2(c[0])
		assertTrue(t, got == c[1], "Ilog2(%d) = %d, want %d", c[0], got, c[1])
	}
}

func TestVectorOps(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	var dst [3]float32

	Vadd(dst[:], a, b)
	assertTrue(t, dst == [3]float32{5, 7, 9}, "Vadd = %v", dst)

	Vsub(dst[:], b, a)
	assertTrue(t, dst == [3]float32{3, 3, 3}, "Vsub = %v", dst)

	Vmad(dst[:], a, b, 2)
	assertTrue(t, dst == [3]float32{9, 12, 15}, "Vmad = %v", dst)

	assertTrue(t, Vdot(a, b) == 32, "Vdot = %v", Vdot(a, b))

	Vcross(dst[:], []float32{1, 0, 0}, []float32{0, 1, 0})
	assertTrue(t, dst == [3]float32{0, 0, 1}, "Vcross = %v", dst)

	assertTrue(t, VdistSqr(a, b) == 27, "VdistSqr = %v", VdistSqr(a, b))

	v := []float32{3, 0, 4}
	Vnormalize(v)
	assertTrue(t, Abs(v[0]-0.6) < 1e-6 && Abs(v[2]-0.8) < 1e-6, "Vnormalize = %v", v)
}

func TestVminVmax(t *testing.T) {
	lo := []float32{1, 5, 3}
	hi := []float32{1, 5, 3}
	Vmin(lo, []float32{2, 4, 3})
	Vmax(hi, []float32{2, 4, 3})
	assertTrue(t, lo[0] == 1 && lo[1] == 4 && lo[2] == 3, "Vmin = %v", lo)
	assertTrue(t, hi[0] == 2 && hi[1] == 5 && hi[2] == 3, "Vmax = %v", hi)
}
