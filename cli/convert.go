package cli

import (
	"context"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/recording"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConvertAction converts a frame record or a list of records of any known format to
// the current format. An output path with the tape extension produces a tape.
func ConvertAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("expected an input and an output path")
	}
	in, out := c.Args().Get(0), c.Args().Get(1)

	//nolint:gosec
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	records, single, err := frameformat.DecodeMany(data)
	if err != nil {
		return errors.Wrapf(err, "cannot decode %s", in)
	}

	if filepath.Ext(out) == recording.TapeExt {
		if err := writeTape(c.Context, out, in, records); err != nil {
			return err
		}
	} else {
		var v interface{} = records
		if single {
			v = records[0]
		}
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, append(encoded, '\n'), 0o600); err != nil {
			return err
		}
	}
	printf(c.App.Writer, "converted %d record(s) to format %d: %s", len(records), frameformat.CurrentVersion, out)
	return nil
}

func writeTape(ctx context.Context, path, source string, records []frameformat.RecordV3) (err error) {
	tw, err := recording.CreateTape(path, recording.NewTapeMetadata(source, "converted"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, tw.Close())
	}()
	for _, r := range records {
		if err := tw.Write(ctx, frameformat.ToFrame(r)); err != nil {
			return err
		}
	}
	return nil
}
