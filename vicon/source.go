package vicon

import (
	"context"
	"io"

	"go.uber.org/multierr"
)

// A FrameSource provides the latest frame of a capture system.
type FrameSource interface {
	// Read blocks until a frame is available and returns it.
	Read(ctx context.Context) (Frame, error)
}

// A ClosableFrameSource is a FrameSource holding resources such as a connection.
type ClosableFrameSource interface {
	FrameSource
	io.Closer
}

// An Opener acquires a frame source, e.g. by connecting to a server.
type Opener func(ctx context.Context) (ClosableFrameSource, error)

// WithSource opens a source, passes it to fn and closes it afterwards, also when fn
// fails.
func WithSource(ctx context.Context, open Opener, fn func(ctx context.Context, src FrameSource) error) (err error) {
	src, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, src.Close())
	}()
	return fn(ctx, src)
}
