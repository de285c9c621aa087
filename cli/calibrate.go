package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/pam-robotics/vicontransformer/pointcloud"
	"github.com/pam-robotics/vicontransformer/spatialmath"
)

// CalibrateAction fits the transform mapping the source trajectory of a recorded point
// pair file onto its target trajectory and prints it as a TOML table.
func CalibrateAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected the path of a trajectory file")
	}
	logger := newLogger(c)

	pairs, err := pointcloud.ReadPairsFile(c.Args().First(),
		c.String(calibrateFlagSourceKey), c.String(calibrateFlagTargetKey))
	if err != nil {
		return err
	}
	logger.Infof("Loaded trajectory with %d steps", pairs.Len())

	cal, err := pointcloud.Calibrate(pairs)
	if err != nil {
		return err
	}
	logger.Infow("Mean error", "error", cal.MeanError, "pairs", cal.NumPairs)

	t := cal.Transform.Translation()
	rot := spatialmath.ExtrinsicEulerXYZ(cal.Transform.Rotation())
	printf(c.App.Writer, "[transform]")
	printf(c.App.Writer, "translation = [%v, %v, %v]", t.X, t.Y, t.Z)
	printf(c.App.Writer, "# extrinsic xyz Euler angles")
	printf(c.App.Writer, "rotation = [%v, %v, %v]", rot.X, rot.Y, rot.Z)
	return nil
}
