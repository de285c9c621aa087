package pubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.viam.com/test"

	"github.com/pam-robotics/vicontransformer/logging"
	viconutils "github.com/pam-robotics/vicontransformer/testutils"
)

func redisConfig(t *testing.T) RedisConfig {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	return RedisConfig{Address: addr, Channel: "vicon_test_" + uuid.NewString()}
}

func TestRedisPublishSubscribe(t *testing.T) {
	cfg := redisConfig(t)
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	sub, err := NewRedisSubscriber(ctx, cfg, SubscriberOptions{Timeout: 2 * time.Second}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, sub.Close(), test.ShouldBeNil)
	}()
	pub, err := NewRedisPublisher(ctx, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, pub.Close(), test.ShouldBeNil)
	}()

	frames := viconutils.MovingFrames(7, 3, "rll_ping_base", r3.Vector{}, r3.Vector{Y: 0.25})
	for _, frame := range frames {
		test.That(t, pub.Publish(ctx, frame), test.ShouldBeNil)
	}
	for _, expected := range frames {
		frame, err := sub.Read(ctx)
		test.That(t, err, test.ShouldBeNil)
		viconutils.VerifySameFrame(t, frame, expected)
	}

	sub.opts.Timeout = 20 * time.Millisecond
	_, err = sub.Read(ctx)
	test.That(t, err, test.ShouldEqual, ErrReceiveTimeout)
}

func TestRedisConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisPublisher(ctx, RedisConfig{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewRedisSubscriber(ctx, RedisConfig{Address: "127.0.0.1:1"}, SubscriberOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot connect to redis")
}

func TestRedisConfigChannel(t *testing.T) {
	test.That(t, RedisConfig{}.channel(), test.ShouldEqual, DefaultRedisChannel)
	test.That(t, RedisConfig{Channel: "x"}.channel(), test.ShouldEqual, "x")
}
