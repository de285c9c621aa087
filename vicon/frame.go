// Package vicon provides access to Vicon motion capture frames and re-expresses the
// tracked subjects relative to a chosen origin subject.
package vicon

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/pam-robotics/vicontransformer/spatialmath"
)

// SubjectData is the observation of a single subject in one frame.
type SubjectData struct {
	IsVisible bool
	// GlobalPose is the pose of the subject in the capture system's world frame. The
	// translation is in metres.
	GlobalPose spatialmath.Transformation
	// Quality of the fit reported by the capture system, nil if not provided.
	Quality *float64
}

// Frame is one capture of all configured subjects.
type Frame struct {
	FrameNumber int
	// FrameRate in Hz.
	FrameRate float64
	// Latency of the capture system in seconds.
	Latency float64
	// TimestampNs is the time the frame was received, in nanoseconds since the epoch.
	TimestampNs int64
	Subjects    map[string]SubjectData
}

// Time returns the timestamp of the frame.
func (f *Frame) Time() time.Time {
	return time.Unix(0, f.TimestampNs)
}

// SubjectNames returns the names of all subjects of the frame, sorted.
func (f *Frame) SubjectNames() []string {
	names := lo.Keys(f.Subjects)
	sort.Strings(names)
	return names
}

// VisibleSubjectNames returns the sorted names of the subjects visible in the frame.
func (f *Frame) VisibleSubjectNames() []string {
	return lo.Filter(f.SubjectNames(), func(name string, _ int) bool {
		return f.Subjects[name].IsVisible
	})
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() Frame {
	clone := *f
	clone.Subjects = make(map[string]SubjectData, len(f.Subjects))
	for name, sd := range f.Subjects {
		if sd.Quality != nil {
			q := *sd.Quality
			sd.Quality = &q
		}
		clone.Subjects[name] = sd
	}
	return clone
}
