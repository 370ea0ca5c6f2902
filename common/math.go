package common

import "math"

// Number covers the scalar types the grid math operates on.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

func Sqr[T Number](v T) T { return v * v }

func Abs[T Number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var (
	dirOffsetX = [4]int{-1, 0, 1, 0}
	dirOffsetY = [4]int{0, 1, 0, -1}
)

// DirOffsetX returns the x grid delta for a 4-neighbour direction.
func DirOffsetX(dir int) int { return dirOffsetX[dir&0x3] }

// DirOffsetY returns the y (z-axis) grid delta for a 4-neighbour direction.
func DirOffsetY(dir int) int { return dirOffsetY[dir&0x3] }

func NextPow2(v int) int {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}

func Ilog2(v int) int {
	var r, shift int
	if v > 0xffff {
		r = 1 << 4
	}
	v >>= r
	if v > 0xff {
		shift = 1 << 3
	} else {
		shift = 0
	}
	v >>= shift
	r |= shift
	if v > 0xf {
		shift = 1 << 2
	} else {
		shift = 0
	}
	v >>= shift
	r |= shift
	if v > 0x3 {
		shift = 1 << 1
	} else {
		shift = 0
	}
	v >>= shift
	r |= shift
	r |= v >> 1
	return r
}

// Vector helpers over flat [x,y,z] slices.

func Vcopy(dst, src []float32) {
	dst[0] = src[0]
	dst[1] = src[1]
	dst[2] = src[2]
}

func Vmin(mn, v []float32) {
	mn[0] = min(mn[0], v[0])
	mn[1] = min(mn[1], v[1])
	mn[2] = min(mn[2], v[2])
}

func Vmax(mx, v []float32) {
	mx[0] = max(mx[0], v[0])
	mx[1] = max(mx[1], v[1])
	mx[2] = max(mx[2], v[2])
}

func Vadd(dst, a, b []float32) {
	dst[0] = a[0] + b[0]
	dst[1] = a[1] + b[1]
	dst[2] = a[2] + b[2]
}

func Vsub(dst, a, b []float32) {
	dst[0] = a[0] - b[0]
	dst[1] = a[1] - b[1]
	dst[2] = a[2] - b[2]
}

func Vmad(dst, a, b []float32, s float32) {
	dst[0] = a[0] + b[0]*s
	dst[1] = a[1] + b[1]*s
	dst[2] = a[2] + b[2]*s
}

func Vlerp(dst, a, b []float32, t float32) {
	dst[0] = a[0] + (b[0]-a[0])*t
	dst[1] = a[1] + (b[1]-a[1])*t
	dst[2] = a[2] + (b[2]-a[2])*t
}

func Vcross(dst, a, b []float32) {
	dst[0] = a[1]*b[2] - a[2]*b[1]
	dst[1] = a[2]*b[0] - a[0]*b[2]
	dst[2] = a[0]*b[1] - a[1]*b[0]
}

func Vdot(a, b []float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func VdistSqr(a, b []float32) float32 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	dz := b[2] - a[2]
	return dx*dx + dy*dy + dz*dz
}

func Vdist(a, b []float32) float32 {
	return float32(math.Sqrt(float64(VdistSqr(a, b))))
}

func Vnormalize(v []float32) {
	d := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if d == 0 {
		return
	}
	d = 1.0 / d
	v[0] *= d
	v[1] *= d
	v[2] *= d
}
