package pubsub

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/utils"
	"github.com/pam-robotics/vicontransformer/vicon"
)

const (
	writeTimeout = 5 * time.Second
	// frames queued per client before it counts as too slow and is dropped
	clientBuffer = 32
)

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		//nolint:errcheck
		c.conn.Close()
	})
}

// WebsocketPublisher broadcasts frames to all connected websocket clients. It is an
// http.Handler and can be mounted on any server, or serve on its own with
// ListenWebsocket.
type WebsocketPublisher struct {
	logger   logging.Logger
	upgrader websocket.Upgrader
	workers  *utils.WorkerGroup

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	server   *http.Server
	listener net.Listener
}

// NewWebsocketPublisher returns a publisher without a server of its own.
func NewWebsocketPublisher(logger logging.Logger) *WebsocketPublisher {
	return &WebsocketPublisher{
		logger: logger.Sublogger("websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		workers: utils.NewWorkerGroup(context.Background()),
		clients: map[*wsClient]struct{}{},
	}
}

// ListenWebsocket returns a publisher serving clients at path on addr.
func ListenWebsocket(addr, path string, logger logging.Logger) (*WebsocketPublisher, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot listen on %s", addr)
	}
	p := NewWebsocketPublisher(logger)
	mux := http.NewServeMux()
	mux.Handle(path, p)
	p.listener = listener
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.workers.Go(func(ctx context.Context) {
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Errorw("websocket server stopped", "error", err)
		}
	})
	p.logger.Infow("serving frames", "address", listener.Addr().String(), "path", path)
	return p, nil
}

// Addr returns the address the publisher listens on, nil without a server of its own.
func (p *WebsocketPublisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// ServeHTTP upgrades the request and registers the connection as client.
func (p *WebsocketPublisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Debugw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		client.close()
		return
	}
	p.clients[client] = struct{}{}
	numClients := len(p.clients)
	p.mu.Unlock()
	p.logger.Infow("client connected", "remote", conn.RemoteAddr().String(), "clients", numClients)

	p.workers.Go(
		func(ctx context.Context) { p.writeLoop(ctx, client) },
		func(ctx context.Context) { p.readLoop(client) },
	)
}

func (p *WebsocketPublisher) writeLoop(ctx context.Context, c *wsClient) {
	defer p.remove(c, "")
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			//nolint:errcheck
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Debugw("write to client failed", "remote", c.conn.RemoteAddr().String(), "error", err)
				return
			}
		}
	}
}

// readLoop handles control messages and notices clients going away.
func (p *WebsocketPublisher) readLoop(c *wsClient) {
	defer p.remove(c, "")
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *WebsocketPublisher) remove(c *wsClient, reason string) {
	p.mu.Lock()
	_, ok := p.clients[c]
	delete(p.clients, c)
	numClients := len(p.clients)
	p.mu.Unlock()
	c.close()
	if !ok {
		return
	}
	if reason != "" {
		p.logger.Warnw("client dropped", "remote", c.conn.RemoteAddr().String(), "reason", reason, "clients", numClients)
		return
	}
	p.logger.Infow("client disconnected", "remote", c.conn.RemoteAddr().String(), "clients", numClients)
}

// NumClients returns the number of connected clients.
func (p *WebsocketPublisher) NumClients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Publish queues the frame for all clients. Clients whose queue is full are dropped.
func (p *WebsocketPublisher) Publish(ctx context.Context, frame vicon.Frame) error {
	data, err := encodeFrame(frame)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("publisher closed")
	}
	var slow []*wsClient
	for c := range p.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	p.mu.Unlock()

	for _, c := range slow {
		p.remove(c, "too slow")
	}
	return nil
}

// Close disconnects all clients and stops the server.
func (p *WebsocketPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	clients := p.clients
	p.clients = map[*wsClient]struct{}{}
	p.mu.Unlock()

	var err error
	if p.server != nil {
		err = p.server.Close()
	}
	for c := range clients {
		c.close()
	}
	p.workers.Stop()
	return err
}

// WebsocketSubscriber receives frames from a WebsocketPublisher.
type WebsocketSubscriber struct {
	conn    *websocket.Conn
	opts    SubscriberOptions
	logger  logging.Logger
	frames  chan vicon.Frame
	errs    chan error
	workers *utils.WorkerGroup
}

// DialWebsocket connects to the publisher at url, e.g. ws://localhost:8765/frames. The
// connection is closed when ctx ends.
func DialWebsocket(ctx context.Context, url string, opts SubscriberOptions, logger logging.Logger) (*WebsocketSubscriber, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		//nolint:errcheck
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s", url)
	}

	s := &WebsocketSubscriber{
		conn:   conn,
		opts:   opts,
		logger: logger.Sublogger("websocket"),
		frames: make(chan vicon.Frame, opts.buffer()),
		errs:   make(chan error, 1),
	}
	s.workers = utils.NewWorkerGroup(ctx, s.readLoop, s.closeOnDone)
	return s, nil
}

func (s *WebsocketSubscriber) readLoop(ctx context.Context) {
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.errs <- errors.Wrap(err, "websocket connection lost")
			}
			return
		}
		frame, err := frameformat.UnmarshalFrame(data)
		if err != nil {
			s.logger.Warnw("dropping undecodable message", "error", err)
			continue
		}
		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// closeOnDone unblocks readLoop once the subscription ends.
func (s *WebsocketSubscriber) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	//nolint:errcheck
	s.conn.Close()
}

// Read returns the next received frame, ErrReceiveTimeout if none arrives in time.
func (s *WebsocketSubscriber) Read(ctx context.Context) (vicon.Frame, error) {
	return receive(ctx, s.frames, s.errs, s.opts.timeout())
}

// Close closes the connection.
func (s *WebsocketSubscriber) Close() error {
	//nolint:errcheck
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := s.conn.Close()
	s.workers.Stop()
	// already closed by closeOnDone
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
