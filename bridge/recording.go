package bridge

import (
	"context"

	"go.uber.org/multierr"

	"github.com/pam-robotics/vicontransformer/config"
	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/pubsub"
	"github.com/pam-robotics/vicontransformer/recording"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// recordingPublisher writes published frames to a recording sink. Republished frames
// are recorded once.
type recordingPublisher struct {
	sink      recording.Sink
	store     *recording.Store
	logger    logging.Logger
	count     int
	lastFrame int
}

var _ pubsub.Publisher = (*recordingPublisher)(nil)

func newRecordingPublisher(
	ctx context.Context,
	cfg *config.RecordingConfig,
	sourceName string,
	logger logging.Logger,
) (*recordingPublisher, error) {
	logger = logger.Sublogger("recording")
	md := recording.NewTapeMetadata(sourceName, cfg.Note)

	if cfg.Dir != "" {
		tw, err := recording.NewTapeWriter(cfg.Dir, md)
		if err != nil {
			return nil, err
		}
		logger.Infow("recording to tape", "path", tw.Path(), "id", md.ID)
		return &recordingPublisher{sink: tw, logger: logger}, nil
	}

	store, err := recording.OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	id, err := store.CreateRecording(ctx, md)
	if err != nil {
		return nil, multierr.Combine(err, store.Close())
	}
	logger.Infow("recording to store", "path", cfg.Store, "id", id)
	return &recordingPublisher{sink: store.Sink(id), store: store, logger: logger}, nil
}

func (p *recordingPublisher) Publish(ctx context.Context, frame vicon.Frame) error {
	if p.count > 0 && frame.FrameNumber == p.lastFrame {
		return nil
	}
	if err := p.sink.Write(ctx, frame); err != nil {
		return err
	}
	p.count++
	p.lastFrame = frame.FrameNumber
	return nil
}

func (p *recordingPublisher) Close() error {
	err := p.sink.Close()
	if p.store != nil {
		err = multierr.Combine(err, p.store.Close())
	}
	p.logger.Infow("recording closed", "frames", p.count)
	return err
}
