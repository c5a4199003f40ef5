// Package connection owns the single live WebSocket to the watch server and
// turns its lifecycle into state-machine messages.
package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"

	"hotpatch/internal/adapter/protocol"
	"hotpatch/internal/domain"
	"hotpatch/internal/infra/tracer"
)

// Event is a lifecycle message tagged with the connection that produced it.
type Event struct {
	ConnID ulid.ULID
	Msg    domain.Message
}

// EmitFunc receives events in the order they occurred on one connection.
type EmitFunc func(Event)

// Options tunes a Manager. Zero values pick the defaults.
type Options struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	QueueSize    int
	Now          func() time.Time
}

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultReadLimit    = 64 << 20 // compiled bundles are large
	defaultQueueSize    = 16
)

// conn tracks one connection attempt.
type conn struct {
	id     ulid.ULID
	url    string
	ts     int64
	cancel context.CancelFunc

	mu sync.Mutex
	ws *websocket.Conn

	sendCh    chan []byte
	closing   chan struct{}
	closeOnce sync.Once
	writeDone chan struct{}
	readDone  chan struct{}

	// quiet suppresses events once the connection is torn down on purpose.
	quiet atomic.Bool
}

func (c *conn) socket() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *conn) setSocket(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *conn) stop() {
	c.quiet.Store(true)
	c.closeOnce.Do(func() { close(c.closing) })
}

// Manager owns at most one live connection. Opening a new one replaces the
// reference; the previous connection is silenced and dropped.
type Manager struct {
	endpoint protocol.Endpoint
	emit     EmitFunc
	logger   *slog.Logger
	opts     Options

	mu      sync.Mutex
	current *conn
}

// NewManager creates a Manager that reports lifecycle events to emit.
func NewManager(endpoint protocol.Endpoint, emit EmitFunc, logger *slog.Logger, opts Options) *Manager {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{endpoint: endpoint, emit: emit, logger: logger, opts: opts}
}

// URL returns the connection URL for compiledTimestamp.
func (m *Manager) URL(compiledTimestamp int64) string {
	return m.endpoint.URL(compiledTimestamp)
}

// Current returns the id of the connection currently referenced, or the
// zero ULID when there is none.
func (m *Manager) Current() ulid.ULID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ulid.ULID{}
	}
	return m.current.id
}

// Open starts a new connection announcing compiledTimestamp and returns its
// id immediately. The dial runs in the background; failure is reported as
// WebSocketClosedMsg.
func (m *Manager) Open(ctx context.Context, compiledTimestamp int64) ulid.ULID {
	connCtx, cancel := context.WithCancel(ctx)
	c := &conn{
		id:        ulid.Make(),
		url:       m.URL(compiledTimestamp),
		ts:        compiledTimestamp,
		cancel:    cancel,
		sendCh:    make(chan []byte, m.opts.QueueSize),
		closing:   make(chan struct{}),
		writeDone: make(chan struct{}),
		readDone:  make(chan struct{}),
	}

	m.mu.Lock()
	prev := m.current
	m.current = c
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
		prev.cancel()
		m.logger.Debug("connection replaced", "conn_id", prev.id.String(), "by", c.id.String())
	}

	go m.run(connCtx, c)
	return c.id
}

func (m *Manager) run(ctx context.Context, c *conn) {
	defer close(c.readDone)

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	spanCtx, span := tracer.StartSpan(dialCtx, "connection.dial",
		tracer.StringAttr("conn_id", c.id.String()),
		tracer.Int64Attr("compiled_timestamp", c.ts),
	)
	ws, _, err := websocket.Dial(spanCtx, c.url, nil)
	cancel()
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		m.logger.Debug("dial failed", "conn_id", c.id.String(), "url", c.url, "error", err)
		m.send(c, domain.WebSocketClosedMsg{Date: m.opts.Now()})
		return
	}
	tracer.SetOK(span)
	span.End()

	ws.SetReadLimit(m.opts.ReadLimit)
	c.setSocket(ws)
	m.logger.Info("connected", "conn_id", c.id.String(), "url", c.url)
	m.send(c, domain.WebSocketConnectedMsg{Date: m.opts.Now()})

	go m.writeLoop(ctx, c, ws)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			m.logger.Info("connection closed", "conn_id", c.id.String(), "status", websocket.CloseStatus(err), "error", err)
			c.closeOnce.Do(func() { close(c.closing) })
			m.send(c, domain.WebSocketClosedMsg{Date: m.opts.Now()})
			return
		}
		if typ != websocket.MessageText {
			m.logger.Warn("ignoring binary frame", "conn_id", c.id.String(), "bytes", len(data))
			continue
		}
		m.send(c, domain.WebSocketMessageReceivedMsg{Date: m.opts.Now(), Data: data})
	}
}

// writeLoop writes queued frames in order. Once the connection is closing it
// flushes what is still queued and exits.
func (m *Manager) writeLoop(ctx context.Context, c *conn, ws *websocket.Conn) {
	defer close(c.writeDone)
	write := func(data []byte) bool {
		wctx, cancel := context.WithTimeout(ctx, m.opts.WriteTimeout)
		defer cancel()
		if err := ws.Write(wctx, websocket.MessageText, data); err != nil {
			m.logger.Warn("write failed", "conn_id", c.id.String(), "error", err)
			return false
		}
		return true
	}
	for {
		select {
		case data := <-c.sendCh:
			if !write(data) {
				return
			}
		case <-c.closing:
			for {
				select {
				case data := <-c.sendCh:
					if !write(data) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) send(c *conn, msg domain.Message) {
	if c.quiet.Load() {
		return
	}
	m.emit(Event{ConnID: c.id, Msg: msg})
}

// Send queues msg on the live connection. key must be the capability of the
// current Idle status; the zero key is always rejected.
func (m *Manager) Send(ctx context.Context, key domain.SendKey, msg domain.ClientMessage) error {
	if !key.Valid() {
		return domain.NewDomainError("Connection.Send", domain.ErrNoSendKey, "")
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return domain.WrapOp("Connection.Send", err)
	}

	m.mu.Lock()
	c := m.current
	m.mu.Unlock()
	if c == nil || c.socket() == nil {
		return domain.NewDomainError("Connection.Send", domain.ErrNotConnected, "")
	}

	select {
	case <-c.closing:
		return domain.NewDomainError("Connection.Send", domain.ErrNotConnected, c.id.String())
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return domain.NewDomainError("Connection.Send", domain.ErrSendQueueFull, c.id.String())
	}
}

// CloseAndWait flushes queued frames, closes the live connection with a
// normal closure and blocks until the close handshake and read loop finish.
// No events are emitted for the closed connection. It is a no-op when there
// is no connection.
func (m *Manager) CloseAndWait(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.mu.Unlock()
	if c == nil {
		return nil
	}

	c.stop()
	defer c.cancel()

	if ws := c.socket(); ws != nil {
		select {
		case <-c.writeDone:
		case <-ctx.Done():
			return domain.WrapOp("Connection.CloseAndWait", ctx.Err())
		}
		err := ws.Close(websocket.StatusNormalClosure, "page reload")
		if err != nil && !isClosed(err) {
			m.logger.Debug("close handshake", "conn_id", c.id.String(), "error", err)
		}
	} else {
		c.cancel()
	}

	select {
	case <-c.readDone:
		m.logger.Info("connection closed for reload", "conn_id", c.id.String())
		return nil
	case <-ctx.Done():
		return domain.WrapOp("Connection.CloseAndWait", ctx.Err())
	}
}

func isClosed(err error) bool {
	var ce websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, context.Canceled)
}
