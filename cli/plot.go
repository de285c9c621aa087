package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/pam-robotics/vicontransformer/recording"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// PlotAction plots the origin relative position of a subject over a whole recording.
func PlotAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	subject := c.String(plotFlagSubject)

	src, cfg, err := openSource(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warnw("cannot close source", "error", err)
		}
	}()
	if cfg.Source.Loop {
		return errors.New("cannot plot a looping source")
	}
	if _, ok := src.(*recording.Playback); !ok {
		return errors.Errorf("can only plot recordings, got a %s source", cfg.Source.Type)
	}

	t, err := vicon.NewTransformer(src, cfg.Setup, logger)
	if err != nil {
		return err
	}

	var (
		xs, ys, zs plotter.XYs
		startNs    int64
		frames     int
	)
	for {
		if err := t.Update(c.Context); err != nil {
			if errors.Is(err, recording.ErrEndOfTape) {
				break
			}
			// frames without the origin are skipped like the ones without the subject
			if vicon.IsSubjectNotVisible(err) {
				continue
			}
			return err
		}
		frames++
		pose, err := t.Transform(subject)
		if err != nil {
			if vicon.IsSubjectNotVisible(err) {
				continue
			}
			return err
		}
		ts, err := t.TimestampNs()
		if err != nil {
			return err
		}
		if startNs == 0 {
			startNs = ts
		}
		sec := float64(ts-startNs) / 1e9
		pos := pose.Translation()
		xs = append(xs, plotter.XY{X: sec, Y: pos.X})
		ys = append(ys, plotter.XY{X: sec, Y: pos.Y})
		zs = append(zs, plotter.XY{X: sec, Y: pos.Z})
	}
	if len(xs) == 0 {
		return errors.Errorf("%s is not visible in any of %d frames", subject, frames)
	}

	p := plot.New()
	p.Title.Text = subject
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = "position [m]"
	for i, series := range []struct {
		label string
		pts   plotter.XYs
	}{{"x", xs}, {"y", ys}, {"z", zs}} {
		line, err := plotter.NewLine(series.pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.label, line)
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	out := c.String(plotFlagOut)
	if err := p.Save(10*vg.Inch, 4*vg.Inch, out); err != nil {
		return errors.Wrapf(err, "cannot save plot to %s", out)
	}
	logger.Infow("plotted trajectory", "subject", subject, "samples", len(xs), "frames", frames)
	printf(c.App.Writer, "%s", out)
	return nil
}
