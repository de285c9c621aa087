package frameformat

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Migrate1To2 converts a format 1 record. The subject name list and count are dropped,
// subjects are keyed by name and only the quaternion of the rotation is kept.
func Migrate1To2(r RecordV1) RecordV2 {
	subjects := make(map[string]SubjectV2, len(r.Subjects))
	for _, s := range r.Subjects {
		subjects[s.Name] = SubjectV2{
			GlobalTranslation: s.GlobalTranslation,
			GlobalRotation:    RotationV2{Quaternion: s.GlobalRotation.Quaternion},
			Quality:           s.Quality,
		}
	}
	return RecordV2{
		FormatVersion: 2,
		FrameNumber:   r.FrameNumber,
		FrameRate:     r.FrameRate,
		Latency:       r.Latency,
		TimeStamp:     r.TimeStamp,
		MyFrameNumber: r.MyFrameNumber,
		OnTime:        r.OnTime,
		Subjects:      subjects,
	}
}

// Migrate2To3 converts a format 2 record. A subject is visible if neither its
// translation nor its rotation is occluded. The unused my_frame_number and on_time
// fields are dropped.
func Migrate2To3(r RecordV2) RecordV3 {
	subjects := make(SubjectsV3, len(r.Subjects))
	for name, s := range r.Subjects {
		subjects[name] = SubjectV3{
			IsVisible:                !s.GlobalTranslation.Occluded && !s.GlobalRotation.Quaternion.Occluded,
			GlobalTranslation:        s.GlobalTranslation.Value,
			GlobalRotationQuaternion: s.GlobalRotation.Quaternion.Value,
			Quality:                  s.Quality,
		}
	}
	return RecordV3{
		FormatVersion: CurrentVersion,
		FrameNumber:   r.FrameNumber,
		FrameRate:     r.FrameRate,
		Latency:       r.Latency,
		TimeStamp:     r.TimeStamp,
		Subjects:      subjects,
	}
}

// Version returns the format version of an encoded record. Records without a version
// tag are format 1.
func Version(data []byte) (int, error) {
	var tag struct {
		FormatVersion *int `json:"format_version"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return 0, errors.Wrap(err, "cannot decode frame record")
	}
	if tag.FormatVersion == nil {
		return 1, nil
	}
	return *tag.FormatVersion, nil
}

// Decode decodes a record of any known format and migrates it to the current one.
func Decode(data []byte) (RecordV3, error) {
	version, err := Version(data)
	if err != nil {
		return RecordV3{}, err
	}
	switch version {
	case 1:
		var r RecordV1
		if err := json.Unmarshal(data, &r); err != nil {
			return RecordV3{}, errors.Wrap(err, "cannot decode format 1 record")
		}
		return Migrate2To3(Migrate1To2(r)), nil
	case 2:
		var r RecordV2
		if err := json.Unmarshal(data, &r); err != nil {
			return RecordV3{}, errors.Wrap(err, "cannot decode format 2 record")
		}
		return Migrate2To3(r), nil
	case CurrentVersion:
		var r RecordV3
		if err := json.Unmarshal(data, &r); err != nil {
			return RecordV3{}, errors.Wrap(err, "cannot decode format 3 record")
		}
		return r, nil
	default:
		return RecordV3{}, &UnsupportedVersionError{Version: version}
	}
}

// DecodeMany decodes either a single record or a list of records. single reports which
// of the two was found.
func DecodeMany(data []byte) (records []RecordV3, single bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		r, err := Decode(trimmed)
		if err != nil {
			return nil, true, err
		}
		return []RecordV3{r}, true, nil
	}

	var raw []jsoniter.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, false, errors.Wrap(err, "cannot decode record list")
	}
	records = make([]RecordV3, 0, len(raw))
	for i, r := range raw {
		record, err := Decode(r)
		if err != nil {
			return nil, false, errors.Wrapf(err, "record %d", i)
		}
		records = append(records, record)
	}
	return records, false, nil
}
