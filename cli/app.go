// Package cli contains the vicon command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	// Source flags.
	sourceFlagFile      = "file"
	sourceFlagURL       = "url"
	sourceFlagRedis     = "redis"
	sourceFlagChannel   = "channel"
	sourceFlagOrigin    = "origin"
	sourceFlagStore     = "store"
	sourceFlagRecording = "recording"

	printFlagNum  = "num"
	printFlagJSON = "json"

	tableFlagYawOnly = "yaw-only"

	recordFlagOut      = "out"
	recordFlagDuration = "duration"
	recordFlagNote     = "note"

	playbackFlagListen = "listen"
	playbackFlagPath   = "path"
	playbackFlagLoop   = "loop"
	playbackFlagFast   = "fast"

	calibrateFlagSourceKey = "source-key"
	calibrateFlagTargetKey = "target-key"

	plotFlagSubject = "subject"
	plotFlagOut     = "out"
)

// sourceFlags select where a command reads frames from. They override the source of a
// config file.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    sourceFlagFile,
			Aliases: []string{"f"},
			Usage:   "read frames from a JSON frame `FILE` or a tape",
		},
		&cli.StringFlag{
			Name:  sourceFlagURL,
			Usage: "receive frames from the websocket publisher at `URL`",
		},
		&cli.StringFlag{
			Name:  sourceFlagRedis,
			Usage: "receive frames from the redis server at `ADDRESS`",
		},
		&cli.StringFlag{
			Name:  sourceFlagChannel,
			Usage: "redis channel to receive frames on",
		},
		&cli.StringFlag{
			Name:  sourceFlagStore,
			Usage: "play back a recording of the sqlite store at `PATH`",
		},
		&cli.StringFlag{
			Name:  sourceFlagRecording,
			Usage: "`ID` of the recording to play back from the store",
		},
		&cli.StringFlag{
			Name:  sourceFlagOrigin,
			Usage: "express poses relative to `SUBJECT` instead of the configured origin",
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "vicon",
		Usage:           "inspect, record and transform Vicon frames",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "print",
				Usage: "print received frames",
				Flags: append(sourceFlags(),
					&cli.IntFlag{
						Name:    printFlagNum,
						Aliases: []string{"n"},
						Value:   1,
						Usage:   "number of frames to print, 0 for no limit",
					},
					&cli.BoolFlag{
						Name:  printFlagJSON,
						Usage: "print frames as JSON records",
					},
				),
				Action: PrintAction,
			},
			{
				Name:   "poses",
				Usage:  "print the poses of all visible subjects relative to the origin subject",
				Flags:  sourceFlags(),
				Action: PosesAction,
			},
			{
				Name:  "table",
				Usage: "estimate the table pose from the corner markers",
				Flags: append(sourceFlags(),
					&cli.BoolFlag{
						Name:  tableFlagYawOnly,
						Usage: "only keep the rotation about the z-axis",
					},
				),
				Action: TableAction,
			},
			{
				Name:  "record",
				Usage: "record frames to a tape or a sqlite store",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:    recordFlagOut,
						Aliases: []string{"o"},
						Usage:   "write the tape to `DIR`",
					},
					&cli.DurationFlag{
						Name:    recordFlagDuration,
						Aliases: []string{"d"},
						Usage:   "stop recording after this long, 0 to record until interrupted",
					},
					&cli.StringFlag{
						Name:  recordFlagNote,
						Usage: "note stored with the recording",
					},
				),
				Action: RecordAction,
			},
			{
				Name:  "playback",
				Usage: "publish recorded frames on a websocket",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:  playbackFlagListen,
						Value: ":8765",
						Usage: "`ADDRESS` to serve frames on",
					},
					&cli.StringFlag{
						Name:  playbackFlagPath,
						Value: "/frames",
						Usage: "HTTP path to serve frames on",
					},
					&cli.BoolFlag{
						Name:  playbackFlagLoop,
						Usage: "start over at the end of the recording",
					},
					&cli.BoolFlag{
						Name:  playbackFlagFast,
						Usage: "do not wait between frames",
					},
				),
				Action: PlaybackAction,
			},
			{
				Name:      "recordings",
				Usage:     "list the recordings of a sqlite store",
				ArgsUsage: "<store>",
				Action:    RecordingsAction,
			},
			{
				Name:      "convert",
				Usage:     "convert frame records of older formats to the current one",
				ArgsUsage: "<input> <output>",
				Action:    ConvertAction,
			},
			{
				Name:      "calibrate",
				Usage:     "compute the transform between two point trajectories",
				ArgsUsage: "<trajectory>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  calibrateFlagSourceKey,
						Value: "tennicam_position",
						Usage: "key of the points in the source frame",
					},
					&cli.StringFlag{
						Name:  calibrateFlagTargetKey,
						Value: "vicon_position",
						Usage: "key of the points in the target frame",
					},
				},
				Action: CalibrateAction,
			},
			{
				Name:  "plot",
				Usage: "plot the trajectory of a subject",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:     plotFlagSubject,
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "`SUBJECT` to plot",
					},
					&cli.StringFlag{
						Name:    plotFlagOut,
						Aliases: []string{"o"},
						Value:   "trajectory.png",
						Usage:   "write the plot to `FILE`",
					},
				),
				Action: PlotAction,
			},
		},
	}
}
