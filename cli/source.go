package cli

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pam-robotics/vicontransformer/bridge"
	"github.com/pam-robotics/vicontransformer/config"
	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/pubsub"
	"github.com/pam-robotics/vicontransformer/recording"
	"github.com/pam-robotics/vicontransformer/vicon"
)

var errNoSource = errors.Errorf(
	"no frame source, use --%s, --%s, --%s, --%s or a config file",
	sourceFlagFile, sourceFlagURL, sourceFlagRedis, sourceFlagStore)

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(generalFlagDebug) {
		return logging.NewDebugLogger("vicon")
	}
	logger := logging.NewLogger("vicon")
	logger.SetLevel(zapcore.WarnLevel)
	return logger
}

// loadConfig reads the config file if one is given and applies the source flags of
// the command on top of it. storeSource tells whether --store selects a source.
func loadConfig(c *cli.Context, logger logging.Logger, storeSource bool) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(generalFlagConfig); path != "" {
		read, err := config.Read(path, logger)
		if err != nil {
			return nil, err
		}
		cfg = *read
	}

	src := &cfg.Source
	switch {
	case c.String(sourceFlagFile) != "":
		path := c.String(sourceFlagFile)
		src.Path = path
		src.Type = config.SourceJSONFile
		if filepath.Ext(path) == recording.TapeExt {
			src.Type = config.SourceTape
		}
	case storeSource && c.String(sourceFlagStore) != "":
		src.Type = config.SourceStore
		src.Path = c.String(sourceFlagStore)
		src.RecordingID = c.String(sourceFlagRecording)
	case c.String(sourceFlagURL) != "":
		src.Type = config.SourceWebsocket
		src.URL = c.String(sourceFlagURL)
	case c.String(sourceFlagRedis) != "":
		src.Type = config.SourceRedis
		src.Redis = pubsub.RedisConfig{
			Address: c.String(sourceFlagRedis),
			Channel: c.String(sourceFlagChannel),
		}
		if src.Redis.Channel == "" {
			src.Redis.Channel = pubsub.DefaultRedisChannel
		}
	}
	if src.Type == "" {
		return nil, errNoSource
	}
	if c.IsSet(sourceFlagOrigin) {
		cfg.Setup.OriginSubject = c.String(sourceFlagOrigin)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// openSource returns the frame source selected by the config file and flags of c.
func openSource(c *cli.Context, logger logging.Logger) (vicon.ClosableFrameSource, *config.Config, error) {
	cfg, err := loadConfig(c, logger, true)
	if err != nil {
		return nil, nil, err
	}
	src, err := bridge.NewSource(c.Context, cfg.Source, logger)
	if err != nil {
		return nil, nil, err
	}
	return src, cfg, nil
}

// withTransformer runs fn with a transformer over the selected source that already
// holds its first frame. The source is closed afterwards.
func withTransformer(c *cli.Context, logger logging.Logger, fn func(t *vicon.Transformer) error) error {
	cfg, err := loadConfig(c, logger, true)
	if err != nil {
		return err
	}
	open := func(ctx context.Context) (vicon.ClosableFrameSource, error) {
		return bridge.NewSource(ctx, cfg.Source, logger)
	}
	return vicon.WithSource(c.Context, open, func(ctx context.Context, src vicon.FrameSource) error {
		t, err := vicon.NewTransformer(src, cfg.Setup, logger)
		if err != nil {
			return err
		}
		if err := t.Update(ctx); err != nil {
			return err
		}
		return fn(t)
	})
}
