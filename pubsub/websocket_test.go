package pubsub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/pam-robotics/vicontransformer/logging"
	viconutils "github.com/pam-robotics/vicontransformer/testutils"
)

func dialTestServer(t *testing.T, srv *httptest.Server, opts SubscriberOptions) *WebsocketSubscriber {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sub, err := DialWebsocket(context.Background(), url, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return sub
}

func TestWebsocketPublishSubscribe(t *testing.T) {
	logger := logging.NewTestLogger(t)
	pub := NewWebsocketPublisher(logger)
	srv := httptest.NewServer(pub)
	defer srv.Close()
	test.That(t, pub.Addr(), test.ShouldBeNil)

	sub1 := dialTestServer(t, srv, SubscriberOptions{Timeout: 2 * time.Second})
	sub2 := dialTestServer(t, srv, SubscriberOptions{Timeout: 2 * time.Second})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, pub.NumClients(), test.ShouldEqual, 2)
	})

	frames := viconutils.MovingFrames(1, 3, "rll_muscle_racket", r3.Vector{X: 1}, r3.Vector{Z: 0.1})
	ctx := context.Background()
	for _, frame := range frames {
		test.That(t, pub.Publish(ctx, frame), test.ShouldBeNil)
	}
	for _, sub := range []*WebsocketSubscriber{sub1, sub2} {
		for _, expected := range frames {
			frame, err := sub.Read(ctx)
			test.That(t, err, test.ShouldBeNil)
			viconutils.VerifySameFrame(t, frame, expected)
		}
	}

	test.That(t, sub2.Close(), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, pub.NumClients(), test.ShouldEqual, 1)
	})

	test.That(t, pub.Close(), test.ShouldBeNil)
	test.That(t, pub.Close(), test.ShouldBeNil)
	test.That(t, pub.Publish(ctx, frames[0]), test.ShouldNotBeNil)

	// the subscriber notices the publisher going away
	_, err := sub1.Read(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldNotEqual, ErrReceiveTimeout)
	test.That(t, sub1.Close(), test.ShouldBeNil)
}

func TestWebsocketReceiveTimeout(t *testing.T) {
	pub := NewWebsocketPublisher(logging.NewTestLogger(t))
	srv := httptest.NewServer(pub)
	defer srv.Close()
	defer func() {
		test.That(t, pub.Close(), test.ShouldBeNil)
	}()

	sub := dialTestServer(t, srv, SubscriberOptions{Timeout: 20 * time.Millisecond})
	_, err := sub.Read(context.Background())
	test.That(t, err, test.ShouldEqual, ErrReceiveTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sub.Read(ctx)
	test.That(t, err, test.ShouldEqual, context.Canceled)
	test.That(t, sub.Close(), test.ShouldBeNil)
}

func TestWebsocketSubscriberEndsWithContext(t *testing.T) {
	pub := NewWebsocketPublisher(logging.NewTestLogger(t))
	srv := httptest.NewServer(pub)
	defer srv.Close()
	defer func() {
		test.That(t, pub.Close(), test.ShouldBeNil)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sub, err := DialWebsocket(ctx, url, SubscriberOptions{Timeout: 2 * time.Second}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, pub.NumClients(), test.ShouldEqual, 1)
	})

	cancel()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, pub.NumClients(), test.ShouldEqual, 0)
	})
	_, err = sub.Read(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldNotEqual, ErrReceiveTimeout)
	test.That(t, sub.Close(), test.ShouldBeNil)
}

func TestWebsocketDropsSlowClient(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	pub := NewWebsocketPublisher(logger)
	defer func() {
		test.That(t, pub.Close(), test.ShouldBeNil)
	}()

	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			conns <- conn
		}
	}))
	defer srv.Close()
	remote, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	test.That(t, err, test.ShouldBeNil)
	defer remote.Close() //nolint:errcheck

	// a client whose queue never has room
	pub.mu.Lock()
	pub.clients[&wsClient{conn: <-conns, send: make(chan []byte), done: make(chan struct{})}] = struct{}{}
	pub.mu.Unlock()
	test.That(t, pub.NumClients(), test.ShouldEqual, 1)

	test.That(t, pub.Publish(context.Background(), viconutils.NewFrame(1, nil)), test.ShouldBeNil)
	test.That(t, pub.NumClients(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("client dropped").Len(), test.ShouldEqual, 1)
}

func TestListenWebsocket(t *testing.T) {
	pub, err := ListenWebsocket("127.0.0.1:0", "/frames", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, pub.Close(), test.ShouldBeNil)
	}()

	url := "ws://" + pub.Addr().String() + "/frames"
	sub, err := DialWebsocket(context.Background(), url, SubscriberOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer sub.Close() //nolint:errcheck
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, pub.NumClients(), test.ShouldEqual, 1)
	})

	frame := viconutils.NewFrame(42, nil)
	test.That(t, pub.Publish(context.Background(), frame), test.ShouldBeNil)
	got, err := sub.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.FrameNumber, test.ShouldEqual, 42)

	_, err = DialWebsocket(context.Background(), "ws://"+pub.Addr().String()+"/other", SubscriberOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
