package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/recording"
	"github.com/pam-robotics/vicontransformer/spatialmath"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// PrintAction prints frames of the selected source.
func PrintAction(c *cli.Context) error {
	logger := newLogger(c)
	src, _, err := openSource(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warnw("cannot close source", "error", err)
		}
	}()

	num := c.Int(printFlagNum)
	for i := 0; num <= 0 || i < num; i++ {
		frame, err := src.Read(c.Context)
		if err != nil {
			if errors.Is(err, recording.ErrEndOfTape) || c.Context.Err() != nil {
				return nil
			}
			return err
		}
		if c.Bool(printFlagJSON) {
			data, err := frameformat.MarshalFrame(frame)
			if err != nil {
				return err
			}
			printf(c.App.Writer, "%s", data)
			continue
		}
		writeFrame(c.App.Writer, frame)
	}
	return nil
}

func writeFrame(w io.Writer, frame vicon.Frame) {
	printf(w, "Frame Number: %d", frame.FrameNumber)
	printf(w, "Frame Rate: %g", frame.FrameRate)
	printf(w, "Latency: %g", frame.Latency)
	printf(w, "Timestamp: %d", frame.TimestampNs)
	names := frame.SubjectNames()
	printf(w, "Subjects (%d):", len(names))
	for _, name := range names {
		sd := frame.Subjects[name]
		t := sd.GlobalPose.Translation()
		q := sd.GlobalPose.QuatXYZW()
		printf(w, "  %s", name)
		printf(w, "    Visible: %t", sd.IsVisible)
		printf(w, "    Translation: (%g, %g, %g)", t.X, t.Y, t.Z)
		printf(w, "    Rotation: (%g, %g, %g, %g)", q[0], q[1], q[2], q[3])
		if sd.Quality != nil {
			printf(w, "    Quality: %g", *sd.Quality)
		}
	}
	printf(w, "")
}

// PosesAction prints the origin relative poses of all visible subjects of one frame.
func PosesAction(c *cli.Context) error {
	logger := newLogger(c)
	return withTransformer(c, logger, func(t *vicon.Transformer) error {
		return writePoses(c.App.Writer, t, logger)
	})
}

func writePoses(w io.Writer, t *vicon.Transformer, logger logging.Logger) error {
	frameNumber, err := t.FrameNumber()
	if err != nil {
		return err
	}
	origin := t.Setup().OriginSubject
	if origin == "" {
		origin = "world"
	}
	printf(w, "Frame %d, poses relative to %s", frameNumber, origin)

	poses, err := t.VisibleTransforms()
	if err != nil {
		return err
	}
	names, err := t.SubjectNames()
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"#", "Subject", "Translation [m]", "Orientation [deg]"})
	for i, name := range names {
		pose, ok := poses[name]
		if !ok {
			tw.AppendRow(table.Row{i + 1, name, "not visible", ""})
			continue
		}
		tw.AppendRow(poseRow(i+1, name, pose))
	}
	if t.Setup().RobotBaseSubject != "" {
		if pose, err := t.RobotPose(); err == nil {
			tw.AppendRow(poseRow("", "robot base", pose))
		} else {
			logger.Debugw("no robot pose", "error", err)
		}
		if pose, err := t.RobotShoulderPose(); err == nil {
			tw.AppendRow(poseRow("", "robot shoulder", pose))
		}
	}
	printf(w, "%s", tw.Render())
	return nil
}

// TableAction prints the table pose estimated from the corner markers of one frame.
func TableAction(c *cli.Context) error {
	return withTransformer(c, newLogger(c), func(t *vicon.Transformer) error {
		estimate, err := t.TablePoseEstimate(c.Bool(tableFlagYawOnly))
		if err != nil {
			return errors.Wrap(err, "cannot estimate table pose")
		}
		pos := estimate.Pose.Translation()
		rot := spatialmath.EulerXYZ(estimate.Pose.Rotation()).Degrees()
		printf(c.App.Writer, "position:     [%.4f, %.4f, %.4f]", pos.X, pos.Y, pos.Z)
		printf(c.App.Writer, "rotation_xyz: [%.2f, %.2f, %.2f]", rot.X, rot.Y, rot.Z)
		printf(c.App.Writer, "rssd:         %.6f", estimate.RSSD)
		return nil
	})
}

// poseRow returns the translation in metres and the intrinsic XYZ Euler angles in
// degrees of pose.
func poseRow(idx interface{}, name string, pose spatialmath.Transformation) table.Row {
	t := pose.Translation()
	e := spatialmath.EulerXYZ(pose.Rotation()).Degrees()
	return table.Row{
		idx,
		name,
		fmt.Sprintf("X:%.4f, Y:%.4f, Z:%.4f", t.X, t.Y, t.Z),
		fmt.Sprintf("Roll:%.2f, Pitch:%.2f, Yaw:%.2f", e.X, e.Y, e.Z),
	}
}

// printf writes a line to w. Output errors are ignored, like those of fmt.Printf.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, strings.TrimSuffix(format, "\n")+"\n", a...)
}
