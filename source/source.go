// Package source contains simple frame sources that do not need a running capture
// system, e.g. for tests and offline evaluation.
package source

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// JSONFile provides the frames loaded from a JSON file holding a single record or a
// list of records. Reads cycle through the frames in file order.
type JSONFile struct {
	*Static
}

// NewJSONFile loads the frames from the file at path. Records of all known formats are
// accepted.
func NewJSONFile(path string) (*JSONFile, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read frame file %q", path)
	}
	records, _, err := frameformat.DecodeMany(data)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode frame file %q", path)
	}
	frames := make([]vicon.Frame, 0, len(records))
	for _, r := range records {
		frames = append(frames, frameformat.ToFrame(r))
	}
	static, err := NewStatic(frames...)
	if err != nil {
		return nil, errors.Wrapf(err, "frame file %q", path)
	}
	return &JSONFile{Static: static}, nil
}

// Static cycles through a fixed list of frames.
type Static struct {
	mu     sync.Mutex
	frames []vicon.Frame
	next   int
}

// NewStatic returns a source providing frames in order, starting over after the last.
func NewStatic(frames ...vicon.Frame) (*Static, error) {
	if len(frames) == 0 {
		return nil, errors.New("need at least one frame")
	}
	return &Static{frames: frames}, nil
}

// Read returns the next frame.
func (s *Static) Read(ctx context.Context) (vicon.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vicon.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame.Clone(), nil
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}
