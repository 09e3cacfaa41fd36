package rsvg

// Matrix is a 2D affine transform in SVG's row-major [a b c d e f] form:
//
//	| a c e |   x' = a*x + c*y + e
//	| b d f |   y' = b*x + d*y + f
//	| 0 0 1 |
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the identity transform.
var Identity = Matrix{A: 1, D: 1}

// Mul composes m then n, i.e. returns the matrix that applies m first
// and n second: for a point p, n.Mul(m).Apply(p) == n.Apply(m.Apply(p)).
func (n Matrix) Mul(m Matrix) Matrix {
	return Matrix{
		A: n.A*m.A + n.C*m.B,
		B: n.B*m.A + n.D*m.B,
		C: n.A*m.C + n.C*m.D,
		D: n.B*m.C + n.D*m.D,
		E: n.A*m.E + n.C*m.F + n.E,
		F: n.B*m.E + n.D*m.F + n.F,
	}
}

// Apply transforms a point by m.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// ApplyVector transforms a vector (ignores translation).
func (m Matrix) ApplyVector(x, y float64) (float64, float64) {
	return m.A*x + m.C*y, m.B*x + m.D*y
}

func translate(tx, ty float64) Matrix { return Matrix{A: 1, D: 1, E: tx, F: ty} }
func scale(sx, sy float64) Matrix     { return Matrix{A: sx, D: sy} }

// Invert returns m's inverse, or Identity if m is singular. The draw2d
// backend uses this to map device-pixel coordinates back into a
// gradient's own space when it samples the gradient per pixel.
func (m Matrix) Invert() Matrix {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	inv := 1 / det
	return Matrix{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}
}
