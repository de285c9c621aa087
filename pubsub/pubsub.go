// Package pubsub distributes frames to other processes and receives them again. Frames
// travel as format 3 JSON records.
package pubsub

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// ErrReceiveTimeout is returned by a subscriber that did not receive a frame in time.
var ErrReceiveTimeout = errors.New("timed out waiting for frame")

// DefaultReceiveTimeout is used by subscribers if no timeout is configured.
const DefaultReceiveTimeout = time.Second

// A Publisher sends frames to its consumers.
type Publisher interface {
	Publish(ctx context.Context, frame vicon.Frame) error
	Close() error
}

// SubscriberOptions configures a subscriber.
type SubscriberOptions struct {
	// Timeout is how long Read waits for a frame. DefaultReceiveTimeout if zero.
	Timeout time.Duration
	// Buffer is the number of received frames held until read.
	Buffer int
}

func (o SubscriberOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultReceiveTimeout
	}
	return o.Timeout
}

func (o SubscriberOptions) buffer() int {
	if o.Buffer <= 0 {
		return 64
	}
	return o.Buffer
}

// encodeFrame is the payload of every published frame.
func encodeFrame(frame vicon.Frame) ([]byte, error) {
	data, err := frameformat.MarshalFrame(frame)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode frame %d", frame.FrameNumber)
	}
	return data, nil
}

// receive waits for the next decoded frame from frames, or the error ending the
// subscription.
func receive(ctx context.Context, frames <-chan vicon.Frame, errs <-chan error, timeout time.Duration) (vicon.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-frames:
		if ok {
			return frame, nil
		}
		select {
		case err := <-errs:
			return vicon.Frame{}, err
		default:
			return vicon.Frame{}, errors.New("subscription closed")
		}
	case <-ctx.Done():
		return vicon.Frame{}, ctx.Err()
	case <-timer.C:
		return vicon.Frame{}, ErrReceiveTimeout
	}
}
