package vicon

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pam-robotics/vicontransformer/tablepose"
)

// Setup describes which subjects of a capture configuration play which role.
type Setup struct {
	// OriginSubject is the subject whose frame all poses are expressed in. Empty means
	// the capture system's global frame.
	OriginSubject string `json:"origin_subject"`
	// RobotBaseSubject is the subject mounted on the robot base.
	RobotBaseSubject string `json:"robot_base_subject"`
	// TableCornerSubjects are the four table corner markers in the order expected by
	// package tablepose.
	TableCornerSubjects []string `json:"table_corner_subjects"`
	// Table holds the nominal table dimensions.
	Table tablepose.Dimensions `json:"table"`
	// ShoulderOffset is the position of the robot shoulder in the robot base frame.
	ShoulderOffset []float64 `json:"shoulder_offset"`
	// Subjects is the subject catalogue. If empty, every subject of a frame is known.
	Subjects []string `json:"subjects"`
}

// Validate ensures all parts of the setup are valid.
func (s *Setup) Validate(path string) error {
	if len(s.TableCornerSubjects) != 0 && len(s.TableCornerSubjects) != 4 {
		return errors.Errorf("%s.table_corner_subjects must name 4 subjects, got %d", path, len(s.TableCornerSubjects))
	}
	if len(s.ShoulderOffset) != 0 && len(s.ShoulderOffset) != 3 {
		return errors.Errorf("%s.shoulder_offset must have 3 elements, got %d", path, len(s.ShoulderOffset))
	}
	if err := s.Table.Validate(path + ".table"); err != nil {
		return err
	}
	if dups := lo.FindDuplicates(s.Subjects); len(dups) > 0 {
		return errors.Errorf("%s.subjects contains duplicates: %v", path, dups)
	}
	if len(s.Subjects) == 0 {
		return nil
	}
	roles := append([]string{s.OriginSubject, s.RobotBaseSubject}, s.TableCornerSubjects...)
	for _, name := range roles {
		if name != "" && !lo.Contains(s.Subjects, name) {
			return errors.Wrapf(NewUnknownSubjectError(name), "%s: not part of %s.subjects", path, path)
		}
	}
	return nil
}

// ShoulderOffsetVector returns the shoulder offset, zero if unset.
func (s *Setup) ShoulderOffsetVector() r3.Vector {
	if len(s.ShoulderOffset) != 3 {
		return r3.Vector{}
	}
	return r3.Vector{X: s.ShoulderOffset[0], Y: s.ShoulderOffset[1], Z: s.ShoulderOffset[2]}
}
