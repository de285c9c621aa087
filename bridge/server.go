package bridge

import (
	"context"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/pam-robotics/vicontransformer/config"
	"github.com/pam-robotics/vicontransformer/logging"
)

// Arguments for the bridge server.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=bridge config file"`
	Debug      bool   `flag:"debug,usage=enable debug logging"`
}

// RunServer is the entry point of the bridge server. It reads the config file named in
// args and forwards frames until ctx is done or the source fails.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := config.Read(argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	if argsParsed.Debug {
		cfg.Log.Level = "debug"
	}
	logger, err = logging.NewLoggerFromConfig("bridge", cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	src, err := NewSource(ctx, cfg.Source, logger.Sublogger("source"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, src.Close())
	}()

	pubs, err := NewPublishers(ctx, cfg, logger.Sublogger("publish"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, ClosePublishers(pubs))
	}()

	logger.Infow("bridge started", "config", cfg.ConfigFilePath, "source", DescribeSource(cfg.Source), "publishers", len(pubs))
	return Run(ctx, src, pubs, logger)
}
