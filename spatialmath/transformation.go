// Package spatialmath defines rigid body transformations and the least squares fits
// used to estimate them from point observations.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transformation is a rigid body transformation: a rotation followed by a translation.
// Transformations are values; every operation returns a new one.
type Transformation struct {
	rotation    quat.Number
	translation r3.Vector
}

// Identity returns the transformation that maps every point onto itself.
func Identity() Transformation {
	return Transformation{rotation: quat.Number{Real: 1}}
}

// NewTransformation returns the transformation rotating by q and then translating by t.
// q is normalized; a zero quaternion is treated as no rotation.
func NewTransformation(q quat.Number, t r3.Vector) Transformation {
	return Transformation{rotation: Normalize(q), translation: t}
}

// NewTransformationFromQuatXYZW is like NewTransformation but takes the rotation as
// [x, y, z, w].
func NewTransformationFromQuatXYZW(xyzw [4]float64, t r3.Vector) Transformation {
	return NewTransformation(QuatFromXYZW(xyzw), t)
}

// NewTranslation returns a pure translation.
func NewTranslation(t r3.Vector) Transformation {
	return Transformation{rotation: quat.Number{Real: 1}, translation: t}
}

// NewRotation returns a pure rotation.
func NewRotation(q quat.Number) Transformation {
	return NewTransformation(q, r3.Vector{})
}

// Rotation returns the unit quaternion of the transformation.
func (t Transformation) Rotation() quat.Number {
	if t.rotation == (quat.Number{}) {
		// zero value Transformation
		return quat.Number{Real: 1}
	}
	return t.rotation
}

// Translation returns the translation of the transformation.
func (t Transformation) Translation() r3.Vector {
	return t.translation
}

// QuatXYZW returns the rotation as [x, y, z, w].
func (t Transformation) QuatXYZW() [4]float64 {
	q := t.Rotation()
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// Compose returns the transformation that first applies b and then a.
func Compose(a, b Transformation) Transformation {
	return a.Compose(b)
}

// Compose returns t * other, i.e. other is applied first.
func (t Transformation) Compose(other Transformation) Transformation {
	r := t.Rotation()
	return Transformation{
		rotation:    Normalize(quat.Mul(r, other.Rotation())),
		translation: t.translation.Add(RotateVector(r, other.translation)),
	}
}

// Inverse returns the transformation undoing t.
func (t Transformation) Inverse() Transformation {
	inv := quat.Conj(t.Rotation())
	return Transformation{
		rotation:    inv,
		translation: RotateVector(inv, t.translation).Mul(-1),
	}
}

// Apply transforms the point p.
func (t Transformation) Apply(p r3.Vector) r3.Vector {
	return RotateVector(t.Rotation(), p).Add(t.translation)
}

// Matrix returns the homogeneous 4x4 matrix of the transformation.
func (t Transformation) Matrix() mgl64.Mat4 {
	q := t.Rotation()
	rot := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Mat4()
	return mgl64.Translate3D(t.translation.X, t.translation.Y, t.translation.Z).Mul4(rot)
}

// AlmostEqual returns true if the translations differ by at most tol in every
// component and the rotations describe the same orientation within tol. q and -q are
// considered equal.
func (t Transformation) AlmostEqual(other Transformation, tol float64) bool {
	d := t.translation.Sub(other.translation)
	if math.Abs(d.X) > tol || math.Abs(d.Y) > tol || math.Abs(d.Z) > tol {
		return false
	}
	return QuaternionAlmostEqual(t.Rotation(), other.Rotation(), tol)
}

func (t Transformation) String() string {
	q := t.QuatXYZW()
	return fmt.Sprintf("Transformation(translation=[%g, %g, %g], rotation=[%g, %g, %g, %g])",
		t.translation.X, t.translation.Y, t.translation.Z, q[0], q[1], q[2], q[3])
}
