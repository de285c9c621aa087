package recording

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/pam-robotics/vicontransformer/vicon"
)

// ErrEndOfTape is returned by a Playback that has provided all of its frames.
var ErrEndOfTape = errors.New("reached end of tape")

// PlaybackOptions configures a Playback.
type PlaybackOptions struct {
	// Realtime delays each frame by the timestamp difference to its predecessor.
	Realtime bool
	// Loop starts over after the last frame instead of returning ErrEndOfTape.
	Loop bool
}

// Playback provides recorded frames.
type Playback struct {
	opts   PlaybackOptions
	frames []vicon.Frame

	mu       sync.Mutex
	next     int
	lastSent time.Time
	// timestamp of the frame last sent, in ns
	lastStamp int64
}

// NewPlayback returns a source providing frames in order.
func NewPlayback(frames []vicon.Frame, opts PlaybackOptions) (*Playback, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to play back")
	}
	return &Playback{frames: frames, opts: opts}, nil
}

// OpenTapePlayback loads all frames of the tape at path for playback.
func OpenTapePlayback(path string, opts PlaybackOptions) (*Playback, error) {
	_, frames, err := ReadTape(path)
	if err != nil {
		return nil, err
	}
	return NewPlayback(frames, opts)
}

// OpenStorePlayback loads all frames of a stored recording for playback.
func OpenStorePlayback(ctx context.Context, store *Store, recordingID string, opts PlaybackOptions) (*Playback, error) {
	frames, err := store.Frames(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	return NewPlayback(frames, opts)
}

// Len returns the number of frames of the playback.
func (p *Playback) Len() int {
	return len(p.frames)
}

// Read returns the next frame.
func (p *Playback) Read(ctx context.Context) (vicon.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vicon.Frame{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.next >= len(p.frames) {
		if !p.opts.Loop {
			return vicon.Frame{}, ErrEndOfTape
		}
		p.next = 0
		p.lastSent = time.Time{}
	}
	frame := p.frames[p.next]

	if p.opts.Realtime && !p.lastSent.IsZero() {
		gap := time.Duration(frame.TimestampNs - p.lastStamp)
		if wait := time.Until(p.lastSent.Add(gap)); wait > 0 {
			if !goutils.SelectContextOrWait(ctx, wait) {
				return vicon.Frame{}, ctx.Err()
			}
		}
	}

	p.next++
	p.lastSent = time.Now()
	p.lastStamp = frame.TimestampNs
	return frame.Clone(), nil
}

// Reset starts the playback over.
func (p *Playback) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.lastSent = time.Time{}
}

// Close is a no-op.
func (p *Playback) Close() error {
	return nil
}
