package vicon

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type closableSource struct {
	fakeSource
	closed   bool
	closeErr error
}

func (s *closableSource) Close() error {
	s.closed = true
	return s.closeErr
}

func TestWithSource(t *testing.T) {
	src := &closableSource{fakeSource: fakeSource{frames: []Frame{{FrameNumber: 7}}}}
	opener := func(ctx context.Context) (ClosableFrameSource, error) {
		return src, nil
	}

	var got Frame
	err := WithSource(context.Background(), opener, func(ctx context.Context, s FrameSource) error {
		var err error
		got, err = s.Read(ctx)
		return err
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.FrameNumber, test.ShouldEqual, 7)
	test.That(t, src.closed, test.ShouldBeTrue)

	t.Run("closes on failure", func(t *testing.T) {
		src := &closableSource{closeErr: errors.New("close failed")}
		opener := func(ctx context.Context) (ClosableFrameSource, error) {
			return src, nil
		}
		err := WithSource(context.Background(), opener, func(ctx context.Context, s FrameSource) error {
			return errors.New("work failed")
		})
		test.That(t, src.closed, test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "work failed")
		test.That(t, err.Error(), test.ShouldContainSubstring, "close failed")
	})

	t.Run("open failure", func(t *testing.T) {
		called := false
		opener := func(ctx context.Context) (ClosableFrameSource, error) {
			return nil, ErrNotConnected
		}
		err := WithSource(context.Background(), opener, func(ctx context.Context, s FrameSource) error {
			called = true
			return nil
		})
		test.That(t, errors.Is(err, ErrNotConnected), test.ShouldBeTrue)
		test.That(t, called, test.ShouldBeFalse)
	})
}
