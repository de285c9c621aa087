package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// If the middle angle is closer to ±90° than this, the decomposition is treated as
// gimbal locked.
const gimbalEpsilon = 1e-9

// EulerAngles holds three rotation angles in radians about x, y and z.
type EulerAngles struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Degrees returns the angles in degrees as a vector.
func (e EulerAngles) Degrees() r3.Vector {
	return r3.Vector{X: e.X * radToDeg, Y: e.Y * radToDeg, Z: e.Z * radToDeg}
}

// EulerXYZ decomposes q into intrinsic rotations about x, then the new y, then the new
// z axis, i.e. R = Rx(X) * Ry(Y) * Rz(Z). In gimbal lock X is set to 0.
func EulerXYZ(q quat.Number) EulerAngles {
	m := rotationMatrix(Normalize(q))
	sinY := clamp(m[0][2], -1, 1)
	e := EulerAngles{Y: math.Asin(sinY)}
	if 1-math.Abs(sinY) < gimbalEpsilon {
		e.Z = math.Atan2(m[1][0], m[1][1])
		return e
	}
	e.X = math.Atan2(-m[1][2], m[2][2])
	e.Z = math.Atan2(-m[0][1], m[0][0])
	return e
}

// QuatFromEulerXYZ is the inverse of EulerXYZ.
func QuatFromEulerXYZ(e EulerAngles) quat.Number {
	qx := QuatFromAxisAngle(r3.Vector{X: 1}, e.X)
	qy := QuatFromAxisAngle(r3.Vector{Y: 1}, e.Y)
	qz := QuatFromAxisAngle(r3.Vector{Z: 1}, e.Z)
	return Normalize(quat.Mul(quat.Mul(qx, qy), qz))
}

// ExtrinsicEulerXYZ decomposes q into rotations about the fixed x, y and z axes
// applied in that order, i.e. R = Rz(Z) * Ry(Y) * Rx(X). In gimbal lock X is set to 0.
func ExtrinsicEulerXYZ(q quat.Number) EulerAngles {
	m := rotationMatrix(Normalize(q))
	sinY := clamp(-m[2][0], -1, 1)
	e := EulerAngles{Y: math.Asin(sinY)}
	if 1-math.Abs(sinY) < gimbalEpsilon {
		e.Z = math.Atan2(-m[0][1], m[1][1])
		return e
	}
	e.X = math.Atan2(m[2][1], m[2][2])
	e.Z = math.Atan2(m[1][0], m[0][0])
	return e
}

// QuatFromExtrinsicEulerXYZ is the inverse of ExtrinsicEulerXYZ.
func QuatFromExtrinsicEulerXYZ(e EulerAngles) quat.Number {
	qx := QuatFromAxisAngle(r3.Vector{X: 1}, e.X)
	qy := QuatFromAxisAngle(r3.Vector{Y: 1}, e.Y)
	qz := QuatFromAxisAngle(r3.Vector{Z: 1}, e.Z)
	return Normalize(quat.Mul(quat.Mul(qz, qy), qx))
}

// YawOnly keeps only the rotation about z of the intrinsic XYZ decomposition of q.
func YawOnly(q quat.Number) quat.Number {
	return QuatFromAxisAngle(r3.Vector{Z: 1}, EulerXYZ(q).Z)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
