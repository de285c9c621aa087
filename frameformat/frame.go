package frameformat

import (
	"github.com/golang/geo/r3"

	"github.com/pam-robotics/vicontransformer/spatialmath"
	"github.com/pam-robotics/vicontransformer/vicon"
)

const (
	mmToM = 1e-3
	mToMM = 1e3
)

// ToFrame converts a record to a frame, scaling translations to metres.
func ToFrame(r RecordV3) vicon.Frame {
	frame := vicon.Frame{
		FrameNumber: r.FrameNumber,
		FrameRate:   r.FrameRate,
		Latency:     r.Latency,
		TimestampNs: r.TimeStamp,
		Subjects:    make(map[string]vicon.SubjectData, len(r.Subjects)),
	}
	for name, s := range r.Subjects {
		t := s.GlobalTranslation
		frame.Subjects[name] = vicon.SubjectData{
			IsVisible: s.IsVisible,
			GlobalPose: spatialmath.NewTransformationFromQuatXYZW(
				s.GlobalRotationQuaternion,
				r3.Vector{X: t[0] * mmToM, Y: t[1] * mmToM, Z: t[2] * mmToM},
			),
			Quality: s.Quality,
		}
	}
	return frame
}

// FromFrame converts a frame to a record of the current format, scaling translations
// to millimetres.
func FromFrame(frame vicon.Frame) RecordV3 {
	r := RecordV3{
		FormatVersion: CurrentVersion,
		FrameNumber:   frame.FrameNumber,
		FrameRate:     frame.FrameRate,
		Latency:       frame.Latency,
		TimeStamp:     frame.TimestampNs,
		Subjects:      make(SubjectsV3, len(frame.Subjects)),
	}
	for name, s := range frame.Subjects {
		t := s.GlobalPose.Translation()
		r.Subjects[name] = SubjectV3{
			IsVisible:                s.IsVisible,
			GlobalTranslation:        [3]float64{t.X * mToMM, t.Y * mToMM, t.Z * mToMM},
			GlobalRotationQuaternion: s.GlobalPose.QuatXYZW(),
			Quality:                  s.Quality,
		}
	}
	return r
}

// MarshalFrame encodes a frame as a current format record.
func MarshalFrame(frame vicon.Frame) ([]byte, error) {
	return json.Marshal(FromFrame(frame))
}

// UnmarshalFrame decodes a record of any known format into a frame.
func UnmarshalFrame(data []byte) (vicon.Frame, error) {
	r, err := Decode(data)
	if err != nil {
		return vicon.Frame{}, err
	}
	return ToFrame(r), nil
}
