package vicon

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/spatialmath"
	"github.com/pam-robotics/vicontransformer/tablepose"
)

// Transformer pulls frames from a FrameSource and provides the poses of all subjects
// relative to the origin subject of its Setup.
//
// A Transformer is not safe for concurrent use.
type Transformer struct {
	source FrameSource
	setup  Setup
	table  *tablepose.Estimator
	logger logging.Logger

	// nil until the first successful update
	frame         *Frame
	originInverse spatialmath.Transformation
}

// NewTransformer returns a Transformer reading from source.
func NewTransformer(source FrameSource, setup Setup, logger logging.Logger) (*Transformer, error) {
	if err := setup.Validate("setup"); err != nil {
		return nil, err
	}
	table, err := tablepose.NewEstimator(setup.Table, logger.Sublogger("table"))
	if err != nil {
		return nil, err
	}
	return &Transformer{
		source:        source,
		setup:         setup,
		table:         table,
		logger:        logger,
		originInverse: spatialmath.Identity(),
	}, nil
}

// Setup returns the setup the transformer was created with.
func (t *Transformer) Setup() Setup {
	return t.setup
}

// Update reads the next frame from the source and makes it the current frame.
func (t *Transformer) Update(ctx context.Context) error {
	frame, err := t.source.Read(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot read frame")
	}
	return t.SetFrame(frame)
}

// SetFrame makes frame the current frame and recomputes the origin. If the origin
// subject is not visible in frame, an error is returned and the previous frame stays
// current.
func (t *Transformer) SetFrame(frame Frame) error {
	originInverse := spatialmath.Identity()
	if name := t.setup.OriginSubject; name != "" {
		origin, err := t.lookup(&frame, name)
		if err != nil {
			return err
		}
		if !origin.IsVisible {
			t.logger.Warnw("origin subject not visible, keeping previous frame",
				"subject", name, "frame_number", frame.FrameNumber)
			return NewSubjectNotVisibleError(name)
		}
		originInverse = origin.GlobalPose.Inverse()
	}

	t.frame = &frame
	t.originInverse = originInverse
	return nil
}

// Ready returns true once a frame has been accepted.
func (t *Transformer) Ready() bool {
	return t.frame != nil
}

// Frame returns a copy of the current frame.
func (t *Transformer) Frame() (Frame, error) {
	if t.frame == nil {
		return Frame{}, ErrNoFrameData
	}
	return t.frame.Clone(), nil
}

// TimestampNs returns the timestamp of the current frame in nanoseconds.
func (t *Transformer) TimestampNs() (int64, error) {
	if t.frame == nil {
		return 0, ErrNoFrameData
	}
	return t.frame.TimestampNs, nil
}

// Timestamp returns the timestamp of the current frame in seconds.
func (t *Transformer) Timestamp() (float64, error) {
	ns, err := t.TimestampNs()
	if err != nil {
		return 0, err
	}
	return float64(ns) * 1e-9, nil
}

// FrameNumber returns the number of the current frame.
func (t *Transformer) FrameNumber() (int, error) {
	if t.frame == nil {
		return 0, ErrNoFrameData
	}
	return t.frame.FrameNumber, nil
}

// SubjectNames returns the sorted names of the subjects in the current frame.
func (t *Transformer) SubjectNames() ([]string, error) {
	if t.frame == nil {
		return nil, ErrNoFrameData
	}
	return t.frame.SubjectNames(), nil
}

// IsVisible returns whether the subject is visible in the current frame.
func (t *Transformer) IsVisible(name string) (bool, error) {
	sd, err := t.subject(name)
	if err != nil {
		return false, err
	}
	return sd.IsVisible, nil
}

// RawTransform returns the pose of the subject in the capture system's world frame.
func (t *Transformer) RawTransform(name string) (spatialmath.Transformation, error) {
	sd, err := t.subject(name)
	if err != nil {
		return spatialmath.Transformation{}, err
	}
	if !sd.IsVisible {
		return spatialmath.Transformation{}, NewSubjectNotVisibleError(name)
	}
	return sd.GlobalPose, nil
}

// Transform returns the pose of the subject relative to the origin subject.
func (t *Transformer) Transform(name string) (spatialmath.Transformation, error) {
	raw, err := t.RawTransform(name)
	if err != nil {
		return spatialmath.Transformation{}, err
	}
	return t.originInverse.Compose(raw), nil
}

// VisibleTransforms returns the origin relative poses of all visible subjects.
func (t *Transformer) VisibleTransforms() (map[string]spatialmath.Transformation, error) {
	if t.frame == nil {
		return nil, ErrNoFrameData
	}
	poses := make(map[string]spatialmath.Transformation, len(t.frame.Subjects))
	for _, name := range t.frame.VisibleSubjectNames() {
		poses[name] = t.originInverse.Compose(t.frame.Subjects[name].GlobalPose)
	}
	return poses, nil
}

// RobotPose returns the origin relative pose of the robot base.
func (t *Transformer) RobotPose() (spatialmath.Transformation, error) {
	if t.setup.RobotBaseSubject == "" {
		return spatialmath.Transformation{}, errors.New("no robot base subject configured")
	}
	return t.Transform(t.setup.RobotBaseSubject)
}

// RobotShoulderPose returns the origin relative pose of the robot shoulder, i.e. the
// robot base pose moved by the configured shoulder offset.
func (t *Transformer) RobotShoulderPose() (spatialmath.Transformation, error) {
	base, err := t.RobotPose()
	if err != nil {
		return spatialmath.Transformation{}, err
	}
	return base.Compose(spatialmath.NewTranslation(t.setup.ShoulderOffsetVector())), nil
}

// TableCornerPositions returns the origin relative positions of the table corner
// markers. All four corners have to be visible.
func (t *Transformer) TableCornerPositions() ([4]r3.Vector, error) {
	var corners [4]r3.Vector
	if len(t.setup.TableCornerSubjects) != 4 {
		return corners, errors.New("no table corner subjects configured")
	}
	for i, name := range t.setup.TableCornerSubjects {
		pose, err := t.Transform(name)
		if err != nil {
			return corners, err
		}
		corners[i] = pose.Translation()
	}
	return corners, nil
}

// TablePoseEstimate is like TablePose but also returns the fit diagnostics.
func (t *Transformer) TablePoseEstimate(yawOnly bool) (*tablepose.Estimate, error) {
	corners, err := t.TableCornerPositions()
	if err != nil {
		return nil, err
	}
	return t.table.Estimate(corners, yawOnly)
}

// TablePose returns the origin relative pose of the table estimated from its corner
// markers. If yawOnly is set the table is assumed to stand flat.
func (t *Transformer) TablePose(yawOnly bool) (spatialmath.Transformation, error) {
	est, err := t.TablePoseEstimate(yawOnly)
	if err != nil {
		return spatialmath.Transformation{}, err
	}
	return est.Pose, nil
}

func (t *Transformer) subject(name string) (SubjectData, error) {
	if t.frame == nil {
		return SubjectData{}, ErrNoFrameData
	}
	return t.lookup(t.frame, name)
}

// lookup finds a subject of frame. With a catalogue, names outside of it are unknown
// even if the frame carries them.
func (t *Transformer) lookup(frame *Frame, name string) (SubjectData, error) {
	catalogued := len(t.setup.Subjects) > 0 && lo.Contains(t.setup.Subjects, name)
	if len(t.setup.Subjects) > 0 && !catalogued {
		return SubjectData{}, NewUnknownSubjectError(name)
	}
	sd, ok := frame.Subjects[name]
	if ok {
		return sd, nil
	}
	if catalogued {
		// configured but missing from the frame, e.g. disabled in the capture software
		return SubjectData{}, NewSubjectNotVisibleError(name)
	}
	return SubjectData{}, NewUnknownSubjectError(name)
}
