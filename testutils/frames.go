// Package testutils provides frames and helpers shared by the package tests.
package testutils

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/pam-robotics/vicontransformer/spatialmath"
	"github.com/pam-robotics/vicontransformer/vicon"
)

const (
	// TestFrameRate is the frame rate of generated frames.
	TestFrameRate = 300.0
	// TestStartNs is the timestamp of frame 0.
	TestStartNs = int64(1638538681615901200)
)

// FramePeriod is the time between two generated frames.
var FramePeriod = time.Second / time.Duration(TestFrameRate)

// NewFrame returns frame number n with the given subjects, all visible. The timestamp
// follows from n and TestFrameRate.
func NewFrame(n int, poses map[string]spatialmath.Transformation) vicon.Frame {
	frame := vicon.Frame{
		FrameNumber: n,
		FrameRate:   TestFrameRate,
		TimestampNs: TestStartNs + int64(n)*int64(FramePeriod),
		Subjects:    make(map[string]vicon.SubjectData, len(poses)),
	}
	for name, pose := range poses {
		frame.Subjects[name] = vicon.SubjectData{IsVisible: true, GlobalPose: pose}
	}
	return frame
}

// Occlude returns a copy of frame in which the named subjects are not visible.
func Occlude(frame vicon.Frame, names ...string) vicon.Frame {
	clone := frame.Clone()
	for _, name := range names {
		sd := clone.Subjects[name]
		sd.IsVisible = false
		clone.Subjects[name] = sd
	}
	return clone
}

// MovingFrames returns n consecutive frames starting at frame first, in which subject
// moves by step per frame from start.
func MovingFrames(first, n int, subject string, start, step r3.Vector) []vicon.Frame {
	frames := make([]vicon.Frame, 0, n)
	for i := 0; i < n; i++ {
		pos := start.Add(step.Mul(float64(i)))
		frames = append(frames, NewFrame(first+i, map[string]spatialmath.Transformation{
			subject: spatialmath.NewTranslation(pos),
		}))
	}
	return frames
}

// VerifySameFrame checks that two frames carry the same data, allowing for the rounding
// of an encode and decode cycle.
func VerifySameFrame(t *testing.T, actual, expected vicon.Frame) {
	t.Helper()
	test.That(t, actual.FrameNumber, test.ShouldEqual, expected.FrameNumber)
	test.That(t, actual.TimestampNs, test.ShouldEqual, expected.TimestampNs)
	test.That(t, actual.FrameRate, test.ShouldAlmostEqual, expected.FrameRate)
	test.That(t, actual.SubjectNames(), test.ShouldResemble, expected.SubjectNames())
	for name, sd := range expected.Subjects {
		got := actual.Subjects[name]
		test.That(t, got.IsVisible, test.ShouldEqual, sd.IsVisible)
		test.That(t, got.GlobalPose.AlmostEqual(sd.GlobalPose, 1e-9), test.ShouldBeTrue)
	}
}
