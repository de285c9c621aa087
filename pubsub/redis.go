package pubsub

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/utils"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// DefaultRedisChannel is the channel frames are published on if none is configured.
const DefaultRedisChannel = "vicon_frames"

// RedisConfig describes the redis server and channel to use.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

func (cfg RedisConfig) channel() string {
	if cfg.Channel == "" {
		return DefaultRedisChannel
	}
	return cfg.Channel
}

func connectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("no redis address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot connect to redis at %s", cfg.Address), client.Close())
	}
	return client, nil
}

// RedisPublisher publishes frames on a redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  logging.Logger
}

// NewRedisPublisher connects to the redis server of cfg.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, logger logging.Logger) (*RedisPublisher, error) {
	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger = logger.Sublogger("redis")
	logger.Infow("publishing frames", "address", cfg.Address, "channel", cfg.channel())
	return &RedisPublisher{client: client, channel: cfg.channel(), logger: logger}, nil
}

// Publish publishes the frame.
func (p *RedisPublisher) Publish(ctx context.Context, frame vicon.Frame) error {
	data, err := encodeFrame(frame)
	if err != nil {
		return err
	}
	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return errors.Wrapf(err, "cannot publish frame %d", frame.FrameNumber)
	}
	if receivers == 0 {
		p.logger.Debugw("no subscribers", "frame", frame.FrameNumber)
	}
	return nil
}

// Close closes the connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisSubscriber receives frames from a redis channel.
type RedisSubscriber struct {
	client  *redis.Client
	sub     *redis.PubSub
	opts    SubscriberOptions
	logger  logging.Logger
	frames  chan vicon.Frame
	errs    chan error
	workers *utils.WorkerGroup
}

// NewRedisSubscriber subscribes to the channel of cfg. Receiving stops when ctx ends.
func NewRedisSubscriber(ctx context.Context, cfg RedisConfig, opts SubscriberOptions, logger logging.Logger) (*RedisSubscriber, error) {
	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sub := client.Subscribe(ctx, cfg.channel())
	// wait for the confirmation so no frame published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot subscribe to %s", cfg.channel()), sub.Close(), client.Close())
	}
	s := &RedisSubscriber{
		client: client,
		sub:    sub,
		opts:   opts,
		logger: logger.Sublogger("redis"),
		frames: make(chan vicon.Frame, opts.buffer()),
		errs:   make(chan error, 1),
	}
	s.workers = utils.NewWorkerGroup(ctx, s.receiveLoop)
	return s, nil
}

func (s *RedisSubscriber) receiveLoop(ctx context.Context) {
	defer close(s.frames)
	messages := s.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() == nil {
					s.errs <- errors.New("redis subscription closed")
				}
				return
			}
			frame, err := frameformat.UnmarshalFrame([]byte(msg.Payload))
			if err != nil {
				s.logger.Warnw("dropping undecodable message", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Read returns the next received frame, ErrReceiveTimeout if none arrives in time.
func (s *RedisSubscriber) Read(ctx context.Context) (vicon.Frame, error) {
	return receive(ctx, s.frames, s.errs, s.opts.timeout())
}

// Close ends the subscription and closes the connection.
func (s *RedisSubscriber) Close() error {
	s.workers.Stop()
	return multierr.Combine(s.sub.Close(), s.client.Close())
}
