// Package pam describes the Vicon setup of the PAM table tennis robot lab.
package pam

import (
	"github.com/samber/lo"

	"github.com/pam-robotics/vicontransformer/tablepose"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// Subject identifies a subject of the lab's capture configuration. The values are
// stable and used as indices, e.g. in fixed size frame layouts.
type Subject int

// The subjects of the lab, in catalogue order.
const (
	PingBase Subject = iota
	BallLauncher
	Arm
	TableCorner1
	TableCorner2
	TableCorner3
	TableCorner4
	LEDStick
	MuscleBase
	MuscleRacket

	// NumSubjects is the number of subjects in the catalogue.
	NumSubjects = int(MuscleRacket) + 1
)

var subjectNames = [NumSubjects]string{
	PingBase:     "rll_ping_base",
	BallLauncher: "Marker Ballmaschine",
	Arm:          "Marker_Arm",
	TableCorner1: "TT Platte_Eckteil 1",
	TableCorner2: "TT Platte_Eckteil 2",
	TableCorner3: "TT Platte_Eckteil 3",
	TableCorner4: "TT Platte_Eckteil 4",
	LEDStick:     "rll_led_stick",
	MuscleBase:   "rll_muscle_base",
	MuscleRacket: "rll_muscle_racket",
}

// String returns the name of the subject in the capture configuration.
func (s Subject) String() string {
	if s < 0 || int(s) >= NumSubjects {
		return "unknown"
	}
	return subjectNames[s]
}

// SubjectNames returns the subject names in catalogue order.
func SubjectNames() []string {
	return append([]string(nil), subjectNames[:]...)
}

// SubjectByName returns the subject with the given name.
func SubjectByName(name string) (Subject, bool) {
	_, idx, ok := lo.FindIndexOf(subjectNames[:], func(n string) bool { return n == name })
	return Subject(idx), ok
}

// Offset of the robot shoulder in the frame of the robot base marker, in metres.
var shoulderOffset = []float64{-0.255, 0.0785, 0.0}

// DefaultSetup returns the setup of the lab: poses relative to the ping base, the
// muscle robot base and the four table corners.
func DefaultSetup() vicon.Setup {
	return vicon.Setup{
		OriginSubject:    PingBase.String(),
		RobotBaseSubject: MuscleBase.String(),
		TableCornerSubjects: lo.Map([]Subject{TableCorner1, TableCorner2, TableCorner3, TableCorner4},
			func(s Subject, _ int) string { return s.String() }),
		Table:          tablepose.DefaultDimensions(),
		ShoulderOffset: append([]float64(nil), shoulderOffset...),
		Subjects:       SubjectNames(),
	}
}
