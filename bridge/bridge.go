// Package bridge reads frames from a configured source and forwards them to the
// configured publishers.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/pam-robotics/vicontransformer/config"
	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/pubsub"
	"github.com/pam-robotics/vicontransformer/recording"
	"github.com/pam-robotics/vicontransformer/source"
	"github.com/pam-robotics/vicontransformer/utils"
	"github.com/pam-robotics/vicontransformer/vicon"
)

const (
	// frames of sources not reporting a frame rate are repeated at this rate
	defaultFrameRate = 100.0
	// longest wait before reading again after a repeated frame
	repeatPollInterval = 10 * time.Millisecond
	// the measured frame rate is logged every rateLogInterval frames
	rateLogInterval = 1000
)

// NewSource opens the source described by cfg.
func NewSource(ctx context.Context, cfg config.SourceConfig, logger logging.Logger) (vicon.ClosableFrameSource, error) {
	opts := recording.PlaybackOptions{Realtime: cfg.Realtime, Loop: cfg.Loop}
	subOpts := pubsub.SubscriberOptions{Timeout: cfg.Timeout}
	switch cfg.Type {
	case config.SourceJSONFile:
		src, err := source.NewJSONFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceTape:
		src, err := recording.OpenTapePlayback(cfg.Path, opts)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceStore:
		store, err := recording.OpenStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		// the frames are loaded up front, the store is not needed afterwards
		src, err := recording.OpenStorePlayback(ctx, store, cfg.RecordingID, opts)
		if err = multierr.Combine(err, store.Close()); err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceWebsocket:
		src, err := pubsub.DialWebsocket(ctx, cfg.URL, subOpts, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceRedis:
		src, err := pubsub.NewRedisSubscriber(ctx, cfg.Redis, subOpts, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, errors.Errorf("unknown source type %q", cfg.Type)
	}
}

// NewPublishers starts all publishers of cfg, plus a recording publisher if cfg enables
// recording. On error, the publishers already started are closed.
func NewPublishers(ctx context.Context, cfg *config.Config, logger logging.Logger) (pubs []pubsub.Publisher, err error) {
	defer func() {
		if err != nil {
			err = multierr.Combine(err, ClosePublishers(pubs))
			pubs = nil
		}
	}()

	for i, pc := range cfg.Publishers {
		var pub pubsub.Publisher
		switch pc.Type {
		case config.PublisherWebsocket:
			pub, err = pubsub.ListenWebsocket(pc.Address, pc.WebsocketPath(), logger)
		case config.PublisherRedis:
			pub, err = pubsub.NewRedisPublisher(ctx, pc.Redis, logger)
		default:
			err = errors.Errorf("unknown publisher type %q", pc.Type)
		}
		if err != nil {
			return pubs, errors.Wrapf(err, "publishers.%d", i)
		}
		pubs = append(pubs, pub)
	}

	if cfg.Recording != nil {
		pub, err := newRecordingPublisher(ctx, cfg.Recording, DescribeSource(cfg.Source), logger)
		if err != nil {
			return pubs, errors.Wrap(err, "recording")
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// ClosePublishers closes all publishers.
func ClosePublishers(pubs []pubsub.Publisher) error {
	var err error
	for _, pub := range pubs {
		err = multierr.Combine(err, pub.Close())
	}
	return err
}

// DescribeSource returns a short human readable name of the source.
func DescribeSource(cfg config.SourceConfig) string {
	switch cfg.Type {
	case config.SourceWebsocket:
		return cfg.URL
	case config.SourceRedis:
		return fmt.Sprintf("redis://%s/%s", cfg.Redis.Address, cfg.Redis.Channel)
	case config.SourceJSONFile, config.SourceTape, config.SourceStore:
		return cfg.Path
	default:
		return string(cfg.Type)
	}
}

// Run forwards frames from src to all publishers until ctx ends. A failed publish is
// logged and the frame skipped for that publisher; a source error ends the run, except
// for receive timeouts which are logged once until frames arrive again. A frame read
// again within its frame period is dropped.
func Run(ctx context.Context, src vicon.FrameSource, pubs []pubsub.Publisher, logger logging.Logger) error {
	var (
		forwarded int
		waiting   bool
		lastFrame = -1
		lastStamp int64
		lastSent  time.Time
		intervals = utils.NewRollingAverage(rateLogInterval)
	)
	defer func() {
		logger.Infow("bridge stopped", "frames", forwarded)
	}()

	for {
		frame, err := src.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, pubsub.ErrReceiveTimeout):
				if !waiting {
					logger.Warn("no frames received, waiting")
					waiting = true
				}
				continue
			case errors.Is(err, recording.ErrEndOfTape):
				logger.Info("end of recording reached")
				return nil
			default:
				return errors.Wrap(err, "cannot read frame")
			}
		}
		if waiting {
			logger.Info("receiving frames again")
			waiting = false
		}
		// Sources without new data, e.g. a frame file, return the same frame again. It is
		// republished once per frame period so that late subscribers still receive it.
		if frame.FrameNumber == lastFrame {
			if wait := framePeriod(frame) - time.Since(lastSent); wait > 0 {
				goutils.SelectContextOrWait(ctx, min(wait, repeatPollInterval))
				continue
			}
		} else {
			lastFrame = frame.FrameNumber
			if lastStamp != 0 && frame.TimestampNs > lastStamp {
				intervals.Add(float64(frame.TimestampNs - lastStamp))
			}
			lastStamp = frame.TimestampNs
		}

		for i, pub := range pubs {
			if err := pub.Publish(ctx, frame); err != nil && ctx.Err() == nil {
				logger.Warnw("cannot publish frame", "publisher", i, "frame", frame.FrameNumber, "error", err)
			}
		}
		lastSent = time.Now()
		forwarded++
		switch {
		case forwarded == 1:
			logger.Infow("forwarding frames", "first_frame", frame.FrameNumber, "subjects", frame.SubjectNames())
		case forwarded%rateLogInterval == 0 && intervals.Average() > 0:
			logger.Debugw("frame rate",
				"measured_hz", float64(time.Second)/intervals.Average(),
				"reported_hz", frame.FrameRate,
				"frames", forwarded)
		}
	}
}

func framePeriod(frame vicon.Frame) time.Duration {
	rate := frame.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}
	return time.Duration(float64(time.Second) / rate)
}
