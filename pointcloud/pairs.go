// Package pointcloud reads corresponding point sets, e.g. the same ball trajectory seen
// by two tracking systems, and fits the rigid transformation between them.
package pointcloud

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/pam-robotics/vicontransformer/spatialmath"
)

// Default keys of the calibration file written when recording tennicam and Vicon ball
// positions side by side.
const (
	DefaultSourceKey = "tennicam_position"
	DefaultTargetKey = "vicon_position"
)

// Pairs holds two equally long point sets where Source[i] corresponds to Target[i].
type Pairs struct {
	Source []r3.Vector
	Target []r3.Vector
}

// Len returns the number of correspondences.
func (p *Pairs) Len() int {
	return len(p.Source)
}

// ReadPairs decodes a JSON list of objects, taking the source point from sourceKey and
// the target point from targetKey of every entry.
func ReadPairs(r io.Reader, sourceKey, targetKey string) (*Pairs, error) {
	var entries []map[string][]float64
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "cannot decode point pairs")
	}

	pairs := &Pairs{
		Source: make([]r3.Vector, 0, len(entries)),
		Target: make([]r3.Vector, 0, len(entries)),
	}
	for i, entry := range entries {
		src, err := vectorFromEntry(entry, sourceKey)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		dst, err := vectorFromEntry(entry, targetKey)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		pairs.Source = append(pairs.Source, src)
		pairs.Target = append(pairs.Target, dst)
	}
	return pairs, nil
}

// ReadPairsFile is ReadPairs on the file at path.
func ReadPairsFile(path, sourceKey, targetKey string) (*Pairs, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPairs(f, sourceKey, targetKey)
}

func vectorFromEntry(entry map[string][]float64, key string) (r3.Vector, error) {
	v, ok := entry[key]
	if !ok {
		return r3.Vector{}, errors.Errorf("missing key %q", key)
	}
	if len(v) != 3 {
		return r3.Vector{}, errors.Errorf("%q must have 3 elements, got %d", key, len(v))
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Calibration is the result of fitting a transformation to point pairs.
type Calibration struct {
	Transform spatialmath.Transformation
	// MeanError is the mean distance between the transformed source and the target
	// points, in the unit of the input.
	MeanError float64
	NumPairs  int
}

// Calibrate fits the rigid transformation mapping the source points onto the target
// points.
func Calibrate(pairs *Pairs) (*Calibration, error) {
	if pairs.Len() < 3 {
		return nil, errors.Errorf("need at least 3 point pairs, got %d", pairs.Len())
	}
	tf, err := spatialmath.FitTransform(pairs.Source, pairs.Target)
	if err != nil {
		return nil, err
	}
	meanErr, err := spatialmath.MeanTransformError(pairs.Source, pairs.Target, tf)
	if err != nil {
		return nil, err
	}
	return &Calibration{Transform: tf, MeanError: meanErr, NumPairs: pairs.Len()}, nil
}
