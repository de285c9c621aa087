package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/pam"
	"github.com/pam-robotics/vicontransformer/recording"
	"github.com/pam-robotics/vicontransformer/spatialmath"
	"github.com/pam-robotics/vicontransformer/tablepose"
	"github.com/pam-robotics/vicontransformer/testutils"
	"github.com/pam-robotics/vicontransformer/vicon"
)

var (
	originPos = r3.Vector{X: 1}
	tablePos  = r3.Vector{X: 1, Y: 0.5, Z: 0.76}
)

// labFrame returns a frame of the lab setup: the table stands level at tablePos relative
// to the ping base and the racket is the only other visible subject.
func labFrame(n int) vicon.Frame {
	poses := map[string]spatialmath.Transformation{
		pam.PingBase.String():     spatialmath.NewTranslation(originPos),
		pam.MuscleRacket.String(): spatialmath.NewTranslation(r3.Vector{X: 1.5, Y: 0.2, Z: 0.3}),
	}
	corners := tablepose.DefaultDimensions().Corners()
	for i, s := range []pam.Subject{pam.TableCorner1, pam.TableCorner2, pam.TableCorner3, pam.TableCorner4} {
		poses[s.String()] = spatialmath.NewTranslation(originPos.Add(tablePos).Add(corners[i]))
	}
	poses[pam.MuscleBase.String()] = spatialmath.NewTranslation(r3.Vector{X: 3})
	return testutils.Occlude(testutils.NewFrame(n, poses), pam.MuscleBase.String())
}

func writeFrameFile(t *testing.T, frame vicon.Frame) string {
	t.Helper()
	data, err := frameformat.MarshalFrame(frame)
	test.That(t, err, test.ShouldBeNil)
	path := filepath.Join(t.TempDir(), "frame.json")
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}

func writeTestTape(t *testing.T, frames []vicon.Frame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames"+recording.TapeExt)
	tw, err := recording.CreateTape(path, recording.NewTapeMetadata("test", ""))
	test.That(t, err, test.ShouldBeNil)
	for _, frame := range frames {
		test.That(t, tw.Write(context.Background(), frame), test.ShouldBeNil)
	}
	test.That(t, tw.Close(), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"vicon"}, args...))
	return out.String(), err
}

func TestPrint(t *testing.T) {
	path := writeFrameFile(t, labFrame(42))

	out, err := runApp(t, "print", "--file", path, "-n", "2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(out, "Frame Number: 42"), test.ShouldEqual, 2)
	test.That(t, out, test.ShouldContainSubstring, "Subjects (7):")
	test.That(t, out, test.ShouldContainSubstring, "  rll_muscle_racket\n    Visible: true\n")
	test.That(t, out, test.ShouldContainSubstring, "  rll_muscle_base\n    Visible: false\n")

	out, err = runApp(t, "print", "--file", path, "--json")
	test.That(t, err, test.ShouldBeNil)
	frame, err := frameformat.UnmarshalFrame([]byte(out))
	test.That(t, err, test.ShouldBeNil)
	testutils.VerifySameFrame(t, frame, labFrame(42))

	_, err = runApp(t, "print")
	test.That(t, err, test.ShouldBeError, errNoSource)
}

func TestPoses(t *testing.T) {
	path := writeFrameFile(t, labFrame(1))

	out, err := runApp(t, "poses", "--file", path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Frame 1, poses relative to rll_ping_base")
	test.That(t, out, test.ShouldContainSubstring, "X:0.5000, Y:0.2000, Z:0.3000")
	test.That(t, out, test.ShouldContainSubstring, "not visible")

	out, err = runApp(t, "poses", "--file", path, "--origin", "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "poses relative to world")
	test.That(t, out, test.ShouldContainSubstring, "X:1.5000, Y:0.2000, Z:0.3000")

	_, err = runApp(t, "poses", "--file", path, "--origin", "nobody")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, vicon.IsUnknownSubject(err), test.ShouldBeTrue)
}

func TestTable(t *testing.T) {
	path := writeFrameFile(t, labFrame(1))

	for _, yawOnly := range []bool{false, true} {
		args := []string{"table", "--file", path}
		if yawOnly {
			args = append(args, "--yaw-only")
		}
		out, err := runApp(t, args...)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "position:     [1.0000, 0.5000, 0.7600]")
		test.That(t, out, test.ShouldContainSubstring, "rssd:")
	}

	occluded := writeFrameFile(t, testutils.Occlude(labFrame(1), pam.TableCorner3.String()))
	_, err := runApp(t, "table", "--file", occluded)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, vicon.IsSubjectNotVisible(err), test.ShouldBeTrue)
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join("..", "frameformat", "testdata", "frame_format1.json")

	out := filepath.Join(dir, "frame.json")
	stdout, err := runApp(t, "convert", in, out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "converted 1 record(s) to format 3")
	//nolint:gosec
	data, err := os.ReadFile(out)
	test.That(t, err, test.ShouldBeNil)
	version, err := frameformat.Version(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, version, test.ShouldEqual, frameformat.CurrentVersion)

	tape := filepath.Join(dir, "frame"+recording.TapeExt)
	_, err = runApp(t, "convert", in, tape)
	test.That(t, err, test.ShouldBeNil)
	md, frames, err := recording.ReadTape(tape)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, md.Source, test.ShouldEqual, in)
	test.That(t, frames, test.ShouldHaveLength, 1)

	_, err = runApp(t, "convert", in)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCalibrate(t *testing.T) {
	tf := spatialmath.NewTransformation(
		spatialmath.QuatFromEulerXYZ(spatialmath.EulerAngles{Z: 0.3}),
		r3.Vector{X: 0.1, Y: -2, Z: 0.4},
	)
	var entries []string
	for i := 0; i < 10; i++ {
		p := r3.Vector{X: float64(i) * 0.1, Y: float64(i*i) * 0.02, Z: float64(i%3) * 0.5}
		q := tf.Apply(p)
		entries = append(entries, fmt.Sprintf(`{"tennicam_position": [%v, %v, %v], "vicon_position": [%v, %v, %v]}`,
			p.X, p.Y, p.Z, q.X, q.Y, q.Z))
	}
	path := filepath.Join(t.TempDir(), "trajectory.json")
	test.That(t, os.WriteFile(path, []byte("["+strings.Join(entries, ",")+"]"), 0o600), test.ShouldBeNil)

	out, err := runApp(t, "calibrate", path)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	test.That(t, lines, test.ShouldHaveLength, 4)
	test.That(t, lines[0], test.ShouldEqual, "[transform]")
	test.That(t, lines[1], test.ShouldStartWith, "translation = [")
	test.That(t, lines[2], test.ShouldEqual, "# extrinsic xyz Euler angles")
	test.That(t, lines[3], test.ShouldStartWith, "rotation = [")

	_, err = runApp(t, "calibrate", "--source-key", "camera", path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlot(t *testing.T) {
	racket := pam.MuscleRacket.String()
	frames := testutils.MovingFrames(0, 20, racket, r3.Vector{}, r3.Vector{X: 0.01, Z: 0.02})
	frames[5] = testutils.Occlude(frames[5], racket)
	tape := writeTestTape(t, frames)
	out := filepath.Join(t.TempDir(), "racket.png")

	_, err := runApp(t, "plot", "--file", tape, "--origin", "", "--subject", racket, "--out", out)
	test.That(t, err, test.ShouldBeNil)
	info, err := os.Stat(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	_, err = runApp(t, "plot", "--file", tape, "--origin", "", "--subject", pam.LEDStick.String(), "--out", out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not visible in any of 20 frames")

	// a single frame file is not a recording
	_, err = runApp(t, "plot", "--file", writeFrameFile(t, labFrame(1)), "--subject", racket, "--out", out)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRecordAndPlayback(t *testing.T) {
	frames := testutils.MovingFrames(100, 5, "ball", r3.Vector{}, r3.Vector{Y: 1})
	tape := writeTestTape(t, frames)

	t.Run("tape", func(t *testing.T) {
		out, err := runApp(t, "record", "--file", tape, "--out", t.TempDir(), "--note", "copy")
		test.That(t, err, test.ShouldBeNil)
		md, recorded, err := recording.ReadTape(strings.TrimSpace(out))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, md.Note, test.ShouldEqual, "copy")
		test.That(t, md.Source, test.ShouldEqual, tape)
		test.That(t, recorded, test.ShouldHaveLength, len(frames))
	})

	t.Run("store", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "recordings.db")
		out, err := runApp(t, "record", "--file", tape, "--store", db)
		test.That(t, err, test.ShouldBeNil)
		id := strings.TrimSpace(out)

		out, err = runApp(t, "recordings", db)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, id)
		test.That(t, out, test.ShouldContainSubstring, "| FRAMES")

		out, err = runApp(t, "playback", "--store", db, "--recording", id, "--fast", "--listen", "127.0.0.1:0")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "serving frames on ws://127.0.0.1:")
	})

	_, err := runApp(t, "record", "--file", tape)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = runApp(t, "playback", "--url", "ws://localhost:1/frames")
	test.That(t, err, test.ShouldNotBeNil)
}
