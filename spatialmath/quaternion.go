package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	radToDeg = 180 / math.Pi
	degToRad = math.Pi / 180
)

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * radToDeg
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * degToRad
}

// Normalize returns q scaled to unit length. The zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 || math.IsNaN(norm) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// QuatFromXYZW builds a quaternion from [x, y, z, w].
func QuatFromXYZW(xyzw [4]float64) quat.Number {
	return quat.Number{Real: xyzw[3], Imag: xyzw[0], Jmag: xyzw[1], Kmag: xyzw[2]}
}

// QuatFromAxisAngle returns the rotation by theta radians about axis.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	axis = axis.Normalize()
	s := math.Sin(theta / 2)
	return quat.Number{Real: math.Cos(theta / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// QuaternionAlmostEqual returns true if q1 and q2 describe the same rotation within tol.
func QuaternionAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	same := func(a, b quat.Number) bool {
		return math.Abs(a.Real-b.Real) <= tol &&
			math.Abs(a.Imag-b.Imag) <= tol &&
			math.Abs(a.Jmag-b.Jmag) <= tol &&
			math.Abs(a.Kmag-b.Kmag) <= tol
	}
	return same(q1, q2) || same(q1, quat.Scale(-1, q2))
}

// rotationMatrix returns the row major rotation matrix of the unit quaternion q.
func rotationMatrix(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// quatFromRotationMatrix converts a row major rotation matrix to a unit quaternion.
func quatFromRotationMatrix(m [3][3]float64) quat.Number {
	mat := mgl64.Mat3FromRows(
		mgl64.Vec3{m[0][0], m[0][1], m[0][2]},
		mgl64.Vec3{m[1][0], m[1][1], m[1][2]},
		mgl64.Vec3{m[2][0], m[2][1], m[2][2]},
	)
	q := mgl64.Mat4ToQuat(mat.Mat4())
	return Normalize(quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()})
}
