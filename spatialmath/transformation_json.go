package spatialmath

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

type transformationJSON struct {
	Position    []float64 `json:"position"`
	Orientation []float64 `json:"orientation"`
}

// MarshalJSON encodes the transformation as
// {"position": [x, y, z], "orientation": [qx, qy, qz, qw]}.
func (t Transformation) MarshalJSON() ([]byte, error) {
	q := t.QuatXYZW()
	return json.Marshal(transformationJSON{
		Position:    []float64{t.translation.X, t.translation.Y, t.translation.Z},
		Orientation: q[:],
	})
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (t *Transformation) UnmarshalJSON(data []byte) error {
	var raw transformationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Position) != 3 {
		return errors.Errorf("position must have 3 elements, got %d", len(raw.Position))
	}
	if len(raw.Orientation) != 4 {
		return errors.Errorf("orientation must have 4 elements, got %d", len(raw.Orientation))
	}
	*t = NewTransformationFromQuatXYZW(
		[4]float64{raw.Orientation[0], raw.Orientation[1], raw.Orientation[2], raw.Orientation[3]},
		r3.Vector{X: raw.Position[0], Y: raw.Position[1], Z: raw.Position[2]},
	)
	return nil
}
