package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/stat"
)

// Relative size of the second singular value below which the vectors are considered
// collinear.
const collinearTolerance = 1e-9

// ErrDegenerateVectors is returned when the input does not determine a unique rotation,
// i.e. all vectors are zero or collinear.
var ErrDegenerateVectors = errors.New("vectors are degenerate, rotation is not unique")

// AlignVectors returns the rotation R that minimizes sum |a_i - R b_i|^2 (Kabsch / Wahba)
// and the root of that sum.
func AlignVectors(a, b []r3.Vector) (quat.Number, float64, error) {
	if len(a) != len(b) {
		return quat.Number{}, 0, errors.Errorf("expected the same number of vectors, got %d and %d", len(a), len(b))
	}
	if len(a) < 2 {
		return quat.Number{}, 0, errors.Errorf("need at least two vector pairs, got %d", len(a))
	}

	m := mat.NewDense(3, 3, nil)
	for i := range a {
		ai := []float64{a[i].X, a[i].Y, a[i].Z}
		bi := []float64{b[i].X, b[i].Y, b[i].Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				m.Set(r, c, m.At(r, c)+ai[r]*bi[c])
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return quat.Number{}, 0, errors.New("failed to factorize the covariance matrix")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[1] <= collinearTolerance*values[0] {
		return quat.Number{}, 0, ErrDegenerateVectors
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// flip the last axis if U V^T is a reflection
	d := mat.Det(&u) * mat.Det(&v)
	diag := mat.NewDiagDense(3, []float64{1, 1, math.Copysign(1, d)})

	var rot mat.Dense
	rot.Product(&u, diag, v.T())

	var rows [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rows[r][c] = rot.At(r, c)
		}
	}
	q := quatFromRotationMatrix(rows)

	var sum float64
	for i := range a {
		residual := a[i].Sub(RotateVector(q, b[i]))
		sum += residual.Norm2()
	}
	return q, math.Sqrt(sum), nil
}

// Centroid returns the mean of the points.
func Centroid(points []r3.Vector) r3.Vector {
	if len(points) == 0 {
		return r3.Vector{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	return r3.Vector{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
}

// FitTransform returns the rigid transformation T that best maps source onto target in
// the least squares sense, i.e. target_i ~ T * source_i. No scaling is estimated.
func FitTransform(source, target []r3.Vector) (Transformation, error) {
	if len(source) != len(target) {
		return Transformation{}, errors.Errorf("point clouds differ in size: %d vs %d", len(source), len(target))
	}
	sourceCentroid := Centroid(source)
	targetCentroid := Centroid(target)

	centeredSource := make([]r3.Vector, len(source))
	centeredTarget := make([]r3.Vector, len(target))
	for i := range source {
		centeredSource[i] = source[i].Sub(sourceCentroid)
		centeredTarget[i] = target[i].Sub(targetCentroid)
	}

	q, _, err := AlignVectors(centeredTarget, centeredSource)
	if err != nil {
		return Transformation{}, errors.Wrap(err, "cannot fit transform")
	}
	return NewTransformation(q, targetCentroid.Sub(RotateVector(q, sourceCentroid))), nil
}

// MeanTransformError returns the mean distance between tf applied to the source points
// and the corresponding target points.
func MeanTransformError(source, target []r3.Vector, tf Transformation) (float64, error) {
	if len(source) != len(target) {
		return 0, errors.Errorf("point clouds differ in size: %d vs %d", len(source), len(target))
	}
	if len(source) == 0 {
		return 0, errors.New("point clouds are empty")
	}
	distances := make([]float64, len(source))
	for i := range source {
		distances[i] = tf.Apply(source[i]).Distance(target[i])
	}
	return stat.Mean(distances, nil), nil
}
