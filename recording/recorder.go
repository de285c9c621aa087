package recording

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// Stats summarizes a recording run.
type Stats struct {
	NumFrames  int
	FirstFrame int
	LastFrame  int
	// Span is the time between the first and the last recorded frame, from their timestamps.
	Span time.Duration
}

// Recorder copies frames from a source into a sink.
type Recorder struct {
	logger logging.Logger
}

// NewRecorder returns a new Recorder.
func NewRecorder(logger logging.Logger) *Recorder {
	return &Recorder{logger: logger.Sublogger("recorder")}
}

// Record reads frames from src and writes them to sink until duration has passed, ctx
// ends or src has no more frames. A duration of zero records until one of the others
// happens. Frames with the same frame number as their predecessor are skipped.
// The sink is not closed.
func (r *Recorder) Record(ctx context.Context, src vicon.FrameSource, sink Sink, duration time.Duration) (Stats, error) {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	var (
		stats      Stats
		firstStamp int64
		lastStamp  int64
	)
	done := func() Stats {
		stats.Span = time.Duration(lastStamp - firstStamp)
		r.logger.Infow("recording finished",
			"frames", stats.NumFrames, "first_frame", stats.FirstFrame, "last_frame", stats.LastFrame, "span", stats.Span)
		return stats
	}

	for {
		frame, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfTape) || ctx.Err() != nil {
				return done(), nil
			}
			return done(), errors.Wrap(err, "cannot read frame")
		}
		if stats.NumFrames > 0 && frame.FrameNumber == stats.LastFrame {
			continue
		}
		if err := sink.Write(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return done(), nil
			}
			return done(), err
		}
		if stats.NumFrames == 0 {
			stats.FirstFrame = frame.FrameNumber
			firstStamp = frame.TimestampNs
			r.logger.Debugw("recording started", "frame", frame.FrameNumber)
		}
		stats.NumFrames++
		stats.LastFrame = frame.FrameNumber
		lastStamp = frame.TimestampNs
	}
}
