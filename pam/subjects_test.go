package pam

import (
	"testing"

	"go.viam.com/test"
)

func TestSubjects(t *testing.T) {
	names := SubjectNames()
	test.That(t, names, test.ShouldHaveLength, NumSubjects)
	test.That(t, names[0], test.ShouldEqual, "rll_ping_base")
	test.That(t, names[NumSubjects-1], test.ShouldEqual, "rll_muscle_racket")
	test.That(t, TableCorner3.String(), test.ShouldEqual, "TT Platte_Eckteil 3")
	test.That(t, Subject(42).String(), test.ShouldEqual, "unknown")

	for i, name := range names {
		s, ok := SubjectByName(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, int(s), test.ShouldEqual, i)
	}
	_, ok := SubjectByName("rll_ping_base ")
	test.That(t, ok, test.ShouldBeFalse)

	// callers get their own copy
	names[0] = "changed"
	test.That(t, PingBase.String(), test.ShouldEqual, "rll_ping_base")
}

func TestDefaultSetup(t *testing.T) {
	setup := DefaultSetup()
	test.That(t, setup.Validate("setup"), test.ShouldBeNil)
	test.That(t, setup.OriginSubject, test.ShouldEqual, "rll_ping_base")
	test.That(t, setup.RobotBaseSubject, test.ShouldEqual, "rll_muscle_base")
	test.That(t, setup.TableCornerSubjects, test.ShouldResemble, []string{
		"TT Platte_Eckteil 1",
		"TT Platte_Eckteil 2",
		"TT Platte_Eckteil 3",
		"TT Platte_Eckteil 4",
	})
	test.That(t, setup.Table.Length, test.ShouldEqual, 2.74)
	test.That(t, setup.Table.Width, test.ShouldEqual, 1.525)

	offset := setup.ShoulderOffsetVector()
	test.That(t, offset.X, test.ShouldEqual, -0.255)
	test.That(t, offset.Y, test.ShouldEqual, 0.0785)
	test.That(t, offset.Z, test.ShouldEqual, 0.0)
}
