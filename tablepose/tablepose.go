// Package tablepose estimates the pose of a rectangular table from the positions of
// markers on its four corners.
//
// Expected order of the corners, seen from above, with the table frame in the centre:
//
//	1┌───────────┐2
//	 │     y     │
//	 │     ▲     │  length
//	 │     └──► x│
//	 │           │
//	4└───────────┘3
//	     width
package tablepose

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/spatialmath"
)

// Dimensions of a regulation table tennis table (ITTF), in metres.
const (
	DefaultLength = 2.740
	DefaultWidth  = 1.525
)

// ErrDegenerateCorners is returned when the corner positions do not span a plane, e.g.
// because markers coincide.
var ErrDegenerateCorners = errors.New("table corner positions are degenerate")

// Dimensions describes the size of the table in metres.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// DefaultDimensions returns the dimensions of a regulation table.
func DefaultDimensions() Dimensions {
	return Dimensions{Length: DefaultLength, Width: DefaultWidth}
}

// Validate ensures the dimensions describe a real table.
func (d Dimensions) Validate(path string) error {
	if d.Length <= 0 {
		return errors.Errorf("%s.length must be positive, got %v", path, d.Length)
	}
	if d.Width <= 0 {
		return errors.Errorf("%s.width must be positive, got %v", path, d.Width)
	}
	return nil
}

// Corners returns the corner positions in the table frame.
func (d Dimensions) Corners() [4]r3.Vector {
	dx := d.Width / 2
	dy := d.Length / 2
	return [4]r3.Vector{
		{X: -dx, Y: dy},
		{X: dx, Y: dy},
		{X: dx, Y: -dy},
		{X: -dx, Y: -dy},
	}
}

// Estimate is the result of a table pose fit.
type Estimate struct {
	// Pose of the table frame.
	Pose spatialmath.Transformation
	// Orientation of the unreduced fit as intrinsic XYZ Euler angles.
	Euler spatialmath.EulerAngles
	// RSSD is the root of the summed squared distances between observed and fitted
	// corners, after removing the centroid.
	RSSD float64
}

// Estimator fits the table frame to observed corner positions.
type Estimator struct {
	dims   Dimensions
	logger logging.Logger
}

// NewEstimator returns an Estimator for a table of the given size.
func NewEstimator(dims Dimensions, logger logging.Logger) (*Estimator, error) {
	if err := dims.Validate("table"); err != nil {
		return nil, err
	}
	return &Estimator{dims: dims, logger: logger}, nil
}

// Estimate returns the table pose for corners given in the order documented on the
// package. The position is the centroid of the corners. If yawOnly is set, roll and
// pitch of the fitted orientation are discarded, i.e. the table is assumed to stand flat.
func (e *Estimator) Estimate(corners [4]r3.Vector, yawOnly bool) (*Estimate, error) {
	position := spatialmath.Centroid(corners[:])

	template := e.dims.Corners()
	observed := make([]r3.Vector, len(corners))
	for i, c := range corners {
		observed[i] = c.Sub(position)
	}

	rotation, rssd, err := spatialmath.AlignVectors(observed, template[:])
	if err != nil {
		if errors.Is(err, spatialmath.ErrDegenerateVectors) {
			return nil, ErrDegenerateCorners
		}
		return nil, err
	}
	euler := spatialmath.EulerXYZ(rotation)

	e.logger.Infow("table pose",
		"position", []float64{position.X, position.Y, position.Z},
		"rotation_xyz", []float64{euler.X, euler.Y, euler.Z},
		"rssd", rssd)

	if yawOnly {
		e.logger.Info("only using yaw angle of table rotation")
		rotation = spatialmath.YawOnly(rotation)
	}

	return &Estimate{
		Pose:  spatialmath.NewTransformation(rotation, position),
		Euler: euler,
		RSSD:  rssd,
	}, nil
}
