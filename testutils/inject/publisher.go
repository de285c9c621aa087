package inject

import (
	"context"

	"github.com/pam-robotics/vicontransformer/pubsub"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// Publisher is an injected publisher.
type Publisher struct {
	pubsub.Publisher
	PublishFunc func(ctx context.Context, frame vicon.Frame) error
	CloseFunc   func() error
}

// Publish calls the injected Publish or the real version.
func (p *Publisher) Publish(ctx context.Context, frame vicon.Frame) error {
	if p.PublishFunc == nil {
		return p.Publisher.Publish(ctx, frame)
	}
	return p.PublishFunc(ctx, frame)
}

// Close calls the injected Close or the real version.
func (p *Publisher) Close() error {
	if p.CloseFunc == nil {
		if p.Publisher == nil {
			return nil
		}
		return p.Publisher.Close()
	}
	return p.CloseFunc()
}
