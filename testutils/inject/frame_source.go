// Package inject provides frame sources and publishers whose methods are set by tests.
package inject

import (
	"context"

	"github.com/pam-robotics/vicontransformer/vicon"
)

// FrameSource is an injected frame source.
type FrameSource struct {
	vicon.ClosableFrameSource
	ReadFunc  func(ctx context.Context) (vicon.Frame, error)
	CloseFunc func() error
}

// Read calls the injected Read or the real version.
func (s *FrameSource) Read(ctx context.Context) (vicon.Frame, error) {
	if s.ReadFunc == nil {
		return s.ClosableFrameSource.Read(ctx)
	}
	return s.ReadFunc(ctx)
}

// Close calls the injected Close or the real version.
func (s *FrameSource) Close() error {
	if s.CloseFunc == nil {
		if s.ClosableFrameSource == nil {
			return nil
		}
		return s.ClosableFrameSource.Close()
	}
	return s.CloseFunc()
}
