package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/pam-robotics/vicontransformer/bridge"
	"github.com/pam-robotics/vicontransformer/pubsub"
	"github.com/pam-robotics/vicontransformer/recording"
)

// RecordAction records frames of the selected source to a tape or a store.
func RecordAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	dir, storePath := c.String(recordFlagOut), c.String(sourceFlagStore)
	if (dir == "") == (storePath == "") {
		return errors.Errorf("need exactly one of --%s and --%s", recordFlagOut, sourceFlagStore)
	}
	// --store names the target here, not a source
	cfg, err := loadConfig(c, logger, false)
	if err != nil {
		return err
	}
	src, err := bridge.NewSource(c.Context, cfg.Source, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, src.Close())
	}()

	md := recording.NewTapeMetadata(bridge.DescribeSource(cfg.Source), c.String(recordFlagNote))
	var (
		sink recording.Sink
		// printed once the recording is complete
		name string
	)
	if dir != "" {
		tw, tapeErr := recording.NewTapeWriter(dir, md)
		if tapeErr != nil {
			return tapeErr
		}
		sink, name = tw, tw.Path()
	} else {
		store, storeErr := recording.OpenStore(storePath)
		if storeErr != nil {
			return storeErr
		}
		defer func() {
			err = multierr.Combine(err, store.Close())
		}()
		id, storeErr := store.CreateRecording(c.Context, md)
		if storeErr != nil {
			return storeErr
		}
		sink, name = store.Sink(id), id
	}
	defer func() {
		if err = multierr.Combine(err, sink.Close()); err == nil {
			printf(c.App.Writer, "%s", name)
		}
	}()

	stats, err := recording.NewRecorder(logger).Record(c.Context, src, sink, c.Duration(recordFlagDuration))
	if err != nil {
		return err
	}
	if stats.NumFrames == 0 {
		logger.Warn("no frames recorded")
	}
	return nil
}

// PlaybackAction publishes the frames of a recording on a websocket until the
// recording ends or the command is interrupted.
func PlaybackAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	if c.String(sourceFlagFile) == "" && c.String(sourceFlagStore) == "" {
		return errors.Errorf("playback needs a tape (--%s) or a store (--%s)", sourceFlagFile, sourceFlagStore)
	}
	cfg, err := loadConfig(c, logger, true)
	if err != nil {
		return err
	}
	cfg.Source.Realtime = !c.Bool(playbackFlagFast)
	cfg.Source.Loop = c.Bool(playbackFlagLoop)

	src, err := bridge.NewSource(c.Context, cfg.Source, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, src.Close())
	}()

	pub, err := pubsub.ListenWebsocket(c.String(playbackFlagListen), c.String(playbackFlagPath), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, pub.Close())
	}()
	printf(c.App.Writer, "serving frames on ws://%s%s", pub.Addr(), c.String(playbackFlagPath))
	return bridge.Run(c.Context, src, []pubsub.Publisher{pub}, logger)
}

// RecordingsAction lists the recordings of a store.
func RecordingsAction(c *cli.Context) (err error) {
	if c.Args().Len() != 1 {
		return errors.New("expected the path of a store")
	}
	store, err := recording.OpenStore(c.Args().First())
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, store.Close())
	}()

	recordings, err := store.Recordings(c.Context)
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Created", "Frames", "Source", "Note"})
	for _, r := range recordings {
		tw.AppendRow(table.Row{r.ID, r.Created.Format("2006-01-02 15:04:05"), r.NumFrames, r.Source, r.Note})
	}
	printf(c.App.Writer, "%s", tw.Render())
	return nil
}
