package tablepose

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/spatialmath"
)

const (
	dx = DefaultWidth / 2
	dy = DefaultLength / 2
)

func newEstimator(t *testing.T) *Estimator {
	t.Helper()
	est, err := NewEstimator(DefaultDimensions(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return est
}

func transformCorners(tf spatialmath.Transformation) [4]r3.Vector {
	var corners [4]r3.Vector
	for i, c := range DefaultDimensions().Corners() {
		corners[i] = tf.Apply(c)
	}
	return corners
}

func TestCorners(t *testing.T) {
	corners := Dimensions{Length: 2, Width: 1}.Corners()
	test.That(t, corners, test.ShouldResemble, [4]r3.Vector{
		{X: -0.5, Y: 1},
		{X: 0.5, Y: 1},
		{X: 0.5, Y: -1},
		{X: -0.5, Y: -1},
	})
}

func TestDimensionsValidate(t *testing.T) {
	test.That(t, DefaultDimensions().Validate("table"), test.ShouldBeNil)

	err := Dimensions{Length: 0, Width: 1}.Validate("table")
	test.That(t, err.Error(), test.ShouldContainSubstring, "table.length")

	_, err = NewEstimator(Dimensions{Length: 1, Width: -1}, logging.NewTestLogger(t))
	test.That(t, err.Error(), test.ShouldContainSubstring, "table.width")
}

func TestEstimateAxisAligned(t *testing.T) {
	est, err := newEstimator(t).Estimate(DefaultDimensions().Corners(), false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Pose.AlmostEqual(spatialmath.Identity(), 1e-9), test.ShouldBeTrue)
	test.That(t, est.RSSD, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestEstimateTranslated(t *testing.T) {
	offset := r3.Vector{X: 1.2, Y: -0.7, Z: 1.4}
	est, err := newEstimator(t).Estimate(transformCorners(spatialmath.NewTranslation(offset)), false)
	test.That(t, err, test.ShouldBeNil)

	pos := est.Pose.Translation()
	test.That(t, pos.X, test.ShouldAlmostEqual, 1.2, 1e-9)
	test.That(t, pos.Y, test.ShouldAlmostEqual, -0.7, 1e-9)
	test.That(t, pos.Z, test.ShouldAlmostEqual, 1.4, 1e-9)
	test.That(t, spatialmath.QuaternionAlmostEqual(est.Pose.Rotation(), quat.Number{Real: 1}, 1e-9), test.ShouldBeTrue)
}

func TestEstimateRotated(t *testing.T) {
	corners := [4]r3.Vector{
		{X: -dy, Y: -dx},
		{X: -dy, Y: dx},
		{X: dy, Y: dx},
		{X: dy, Y: -dx},
	}
	est, err := newEstimator(t).Estimate(corners, false)
	test.That(t, err, test.ShouldBeNil)

	deg := spatialmath.EulerXYZ(est.Pose.Rotation()).Degrees()
	test.That(t, deg.X, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, deg.Y, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, deg.Z, test.ShouldAlmostEqual, 90, 1e-6)
	test.That(t, est.Pose.Translation().Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, est.RSSD, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestEstimateYawOnly(t *testing.T) {
	tilted := spatialmath.NewTransformation(
		spatialmath.QuatFromEulerXYZ(spatialmath.EulerAngles{
			X: spatialmath.DegToRad(1.2),
			Y: spatialmath.DegToRad(-0.8),
			Z: spatialmath.DegToRad(90),
		}),
		r3.Vector{X: 0.3, Y: 2.1, Z: 0.76},
	)
	corners := transformCorners(tilted)

	full, err := newEstimator(t).Estimate(corners, false)
	test.That(t, err, test.ShouldBeNil)
	deg := spatialmath.EulerXYZ(full.Pose.Rotation()).Degrees()
	test.That(t, deg.X, test.ShouldAlmostEqual, 1.2, 1e-6)
	test.That(t, deg.Y, test.ShouldAlmostEqual, -0.8, 1e-6)
	test.That(t, deg.Z, test.ShouldAlmostEqual, 90, 1e-6)
	test.That(t, full.Pose.AlmostEqual(tilted, 1e-9), test.ShouldBeTrue)

	yaw, err := newEstimator(t).Estimate(corners, true)
	test.That(t, err, test.ShouldBeNil)
	deg = spatialmath.EulerXYZ(yaw.Pose.Rotation()).Degrees()
	test.That(t, deg.X, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, deg.Y, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, deg.Z, test.ShouldAlmostEqual, 90, 1e-6)
	test.That(t, yaw.Pose.Translation(), test.ShouldResemble, full.Pose.Translation())
	// the diagnostics describe the unreduced fit
	test.That(t, yaw.Euler, test.ShouldResemble, full.Euler)
}

func TestEstimateNoisy(t *testing.T) {
	corners := DefaultDimensions().Corners()
	corners[0] = corners[0].Add(r3.Vector{X: 0.01})
	corners[2] = corners[2].Add(r3.Vector{Y: -0.01, Z: 0.005})

	est, err := newEstimator(t).Estimate(corners, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.RSSD, test.ShouldBeGreaterThan, 0)
	test.That(t, est.RSSD, test.ShouldBeLessThan, 0.02)
	test.That(t, math.Abs(spatialmath.EulerXYZ(est.Pose.Rotation()).Z), test.ShouldBeLessThan, spatialmath.DegToRad(1))
}

func TestEstimateDegenerate(t *testing.T) {
	same := r3.Vector{X: 1, Y: 1, Z: 1}
	_, err := newEstimator(t).Estimate([4]r3.Vector{same, same, same, same}, false)
	test.That(t, errors.Is(err, ErrDegenerateCorners), test.ShouldBeTrue)

	line := [4]r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	_, err = newEstimator(t).Estimate(line, true)
	test.That(t, errors.Is(err, ErrDegenerateCorners), test.ShouldBeTrue)
}

func TestEstimateLogs(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	est, err := NewEstimator(DefaultDimensions(), logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = est.Estimate(DefaultDimensions().Corners(), true)
	test.That(t, err, test.ShouldBeNil)

	entries := logs.FilterMessage("table pose").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	fields := entries[0].ContextMap()
	test.That(t, fields, test.ShouldContainKey, "position")
	test.That(t, fields, test.ShouldContainKey, "rotation_xyz")
	test.That(t, fields, test.ShouldContainKey, "rssd")
	test.That(t, logs.FilterMessageSnippet("yaw").Len(), test.ShouldEqual, 1)
}
