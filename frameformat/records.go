// Package frameformat implements the JSON record formats in which Vicon frames have been
// published and recorded over time, and the migration of old records to the current
// format.
//
// Translations in all formats are in millimetres, as reported by the capture system.
// They are converted to metres when a record is turned into a vicon.Frame.
package frameformat

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CurrentVersion is the format version written by this package.
const CurrentVersion = 3

// UnsupportedVersionError is returned for records of an unknown format version.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported frame format version %d", e.Version)
}

// Occludable is a value paired with an occlusion flag, encoded as [value, occluded].
type Occludable[T any] struct {
	Value    T
	Occluded bool
}

// MarshalJSON encodes the pair as a two element list.
func (o Occludable[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{o.Value, o.Occluded})
}

// UnmarshalJSON decodes a two element list.
func (o *Occludable[T]) UnmarshalJSON(data []byte) error {
	var parts []jsoniter.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return errors.Errorf("expected [value, occluded], got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &o.Value); err != nil {
		return err
	}
	return json.Unmarshal(parts[1], &o.Occluded)
}

// SubjectV1 is a subject of a format 1 record.
type SubjectV1 struct {
	Name              string                 `json:"name"`
	GlobalTranslation Occludable[[3]float64] `json:"global_translation"`
	GlobalRotation    RotationV1             `json:"global_rotation"`
	Quality           *float64               `json:"quality"`
}

// RotationV1 holds the rotation of a format 1 subject in several representations. Only
// the quaternion is carried over to later formats.
type RotationV1 struct {
	Quaternion Occludable[[4]float64] `json:"quaternion"`
	Matrix     jsoniter.RawMessage    `json:"matrix,omitempty"`
	EulerXYZ   jsoniter.RawMessage    `json:"eulerxyz,omitempty"`
	Helical    jsoniter.RawMessage    `json:"helical,omitempty"`
}

// RecordV1 is the original record format. Subjects are stored as "subject_<i>" entries
// next to a list of their names.
type RecordV1 struct {
	FrameNumber   int
	FrameRate     float64
	Latency       float64
	MyFrameNumber int
	NumSubjects   int
	OnTime        float64
	TimeStamp     int64
	SubjectNames  []string
	Subjects      []SubjectV1
}

type recordV1Header struct {
	FrameNumber   int      `json:"frame_number"`
	FrameRate     float64  `json:"frame_rate"`
	Latency       float64  `json:"latency"`
	MyFrameNumber int      `json:"my_frame_number"`
	NumSubjects   int      `json:"num_subjects"`
	OnTime        float64  `json:"on_time"`
	TimeStamp     int64    `json:"time_stamp"`
	SubjectNames  []string `json:"subjectNames"`
}

const subjectKeyPrefix = "subject_"

// UnmarshalJSON decodes a format 1 record.
func (r *RecordV1) UnmarshalJSON(data []byte) error {
	var header recordV1Header
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = RecordV1{
		FrameNumber:   header.FrameNumber,
		FrameRate:     header.FrameRate,
		Latency:       header.Latency,
		MyFrameNumber: header.MyFrameNumber,
		NumSubjects:   header.NumSubjects,
		OnTime:        header.OnTime,
		TimeStamp:     header.TimeStamp,
		SubjectNames:  header.SubjectNames,
		Subjects:      make([]SubjectV1, len(header.SubjectNames)),
	}
	seen := make([]bool, len(header.SubjectNames))
	for key, raw := range fields {
		if !strings.HasPrefix(key, subjectKeyPrefix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(key, subjectKeyPrefix))
		if err != nil || idx < 0 || idx >= len(header.SubjectNames) {
			return errors.Errorf("unexpected subject entry %q", key)
		}
		if err := json.Unmarshal(raw, &r.Subjects[idx]); err != nil {
			return errors.Wrapf(err, "cannot decode %s", key)
		}
		seen[idx] = true
	}
	for i, ok := range seen {
		if !ok {
			return errors.Errorf("missing entry %s%d for subject %q", subjectKeyPrefix, i, header.SubjectNames[i])
		}
		if r.Subjects[i].Name == "" {
			r.Subjects[i].Name = header.SubjectNames[i]
		}
	}
	return nil
}

// SubjectV2 is a subject of a format 2 record.
type SubjectV2 struct {
	GlobalTranslation Occludable[[3]float64] `json:"global_translation"`
	GlobalRotation    RotationV2             `json:"global_rotation"`
	Quality           *float64               `json:"quality"`
}

// RotationV2 is the quaternion of a format 2 subject. Records converted from format 1
// keep it nested as {"quaternion": [q, occluded]}, records published directly store
// [q, occluded]. Both are accepted; the latter is written.
type RotationV2 struct {
	Quaternion Occludable[[4]float64]
}

// MarshalJSON encodes the rotation as [q, occluded].
func (r RotationV2) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Quaternion)
}

// UnmarshalJSON accepts both encodings of a format 2 rotation.
func (r *RotationV2) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var nested struct {
			Quaternion *Occludable[[4]float64] `json:"quaternion"`
		}
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return err
		}
		if nested.Quaternion == nil {
			return errors.New("global_rotation has no quaternion")
		}
		r.Quaternion = *nested.Quaternion
		return nil
	}
	return json.Unmarshal(data, &r.Quaternion)
}

// RecordV2 replaced the numbered subject entries by a map keyed by subject name.
type RecordV2 struct {
	FormatVersion int                  `json:"format_version"`
	FrameNumber   int                  `json:"frame_number"`
	FrameRate     float64              `json:"frame_rate"`
	Latency       float64              `json:"latency"`
	TimeStamp     int64                `json:"time_stamp"`
	MyFrameNumber int                  `json:"my_frame_number"`
	OnTime        float64              `json:"on_time"`
	Subjects      map[string]SubjectV2 `json:"subjects"`
}

// SubjectV3 is a subject of a format 3 record.
type SubjectV3 struct {
	IsVisible         bool       `json:"is_visible"`
	GlobalTranslation [3]float64 `json:"global_translation"`
	// GlobalRotationQuaternion is ordered x, y, z, w.
	GlobalRotationQuaternion [4]float64 `json:"global_rotation_quaternion"`
	Quality                  *float64   `json:"quality"`
}

// SubjectsV3 maps subject names to subjects. It is written as a JSON object; the
// [{"key": name, "value": subject}] list form of the C++ serializer is accepted too.
type SubjectsV3 map[string]SubjectV3

// UnmarshalJSON accepts both encodings of the subject map.
func (s *SubjectsV3) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []struct {
			Key   string    `json:"key"`
			Value SubjectV3 `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		subjects := make(SubjectsV3, len(entries))
		for _, e := range entries {
			subjects[e.Key] = e.Value
		}
		*s = subjects
		return nil
	}
	var subjects map[string]SubjectV3
	if err := json.Unmarshal(data, &subjects); err != nil {
		return err
	}
	*s = subjects
	return nil
}

// RecordV3 is the current record format.
type RecordV3 struct {
	FormatVersion int        `json:"format_version"`
	FrameNumber   int        `json:"frame_number"`
	FrameRate     float64    `json:"frame_rate"`
	Latency       float64    `json:"latency"`
	TimeStamp     int64      `json:"time_stamp"`
	Subjects      SubjectsV3 `json:"subjects"`
}
