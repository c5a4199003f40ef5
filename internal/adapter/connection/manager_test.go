package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"hotpatch/internal/adapter/protocol"
	"hotpatch/internal/domain"
)

// --- test doubles ---

// watchServer is a minimal watch server speaking the wire protocol.
type watchServer struct {
	port        int
	queries     chan url.Values
	received    chan map[string]any
	closeStatus chan websocket.StatusCode
	onConnect   func(ctx context.Context, ws *websocket.Conn)
}

func startWatchServer(t *testing.T, onConnect func(ctx context.Context, ws *websocket.Conn)) *watchServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &watchServer{
		port:        ln.Addr().(*net.TCPAddr).Port,
		queries:     make(chan url.Values, 8),
		received:    make(chan map[string]any, 8),
		closeStatus: make(chan websocket.StatusCode, 8),
		onConnect:   onConnect,
	}
	srv := &http.Server{Handler: http.HandlerFunc(s.handle)}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return s
}

func (s *watchServer) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	s.queries <- r.URL.Query()
	if s.onConnect != nil {
		s.onConnect(r.Context(), ws)
	}
	for {
		var frame map[string]any
		if err := wsjson.Read(r.Context(), ws, &frame); err != nil {
			s.closeStatus <- websocket.CloseStatus(err)
			return
		}
		s.received <- frame
	}
}

func (s *watchServer) endpoint() protocol.Endpoint {
	return protocol.Endpoint{Host: "127.0.0.1", Port: s.port, Target: "Main"}
}

type recorder chan Event

func (r recorder) emit(e Event) { r <- e }

func (r recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-r:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("no event received in time")
		return Event{}
	}
}

func (r recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case e := <-r:
		t.Fatalf("unexpected event %#v", e.Msg)
	case <-time.After(wait):
	}
}

func newTestManager(t *testing.T, ep protocol.Endpoint) (*Manager, recorder) {
	t.Helper()
	rec := make(recorder, 32)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(ep, rec.emit, logger, Options{DialTimeout: 2 * time.Second})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.CloseAndWait(ctx)
	})
	return m, rec
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

// --- tests ---

func TestOpenEmitsLifecycleInOrder(t *testing.T) {
	srv := startWatchServer(t, func(ctx context.Context, ws *websocket.Conn) {
		wsjson.Write(ctx, ws, map[string]any{
			"tag":    "StatusChanged",
			"status": map[string]any{"tag": "AlreadyUpToDate"},
		})
	})
	m, rec := newTestManager(t, srv.endpoint())

	id := m.Open(context.Background(), 42)
	assert.Equal(t, id, m.Current())

	q := recv(t, srv.queries)
	assert.Equal(t, "42", q.Get("compiledTimestamp"))
	assert.Equal(t, "Main", q.Get("target"))
	assert.Equal(t, protocol.Version, q.Get("version"))

	e := rec.next(t)
	assert.Equal(t, id, e.ConnID)
	assert.IsType(t, domain.WebSocketConnectedMsg{}, e.Msg)

	e = rec.next(t)
	got, ok := e.Msg.(domain.WebSocketMessageReceivedMsg)
	require.True(t, ok, "got %T", e.Msg)
	msg, err := protocol.Decode(got.Data)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusChanged{Status: domain.AlreadyUpToDate{}}, msg)
	assert.False(t, got.Date.IsZero())
}

func TestDialFailureEmitsClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m, rec := newTestManager(t, protocol.Endpoint{Host: "127.0.0.1", Port: port, Target: "Main"})
	id := m.Open(context.Background(), 0)

	e := rec.next(t)
	assert.Equal(t, id, e.ConnID)
	assert.IsType(t, domain.WebSocketClosedMsg{}, e.Msg)
}

func TestServerCloseEmitsClosed(t *testing.T) {
	srv := startWatchServer(t, func(ctx context.Context, ws *websocket.Conn) {
		ws.Close(websocket.StatusGoingAway, "bye")
	})
	m, rec := newTestManager(t, srv.endpoint())
	m.Open(context.Background(), 0)

	assert.IsType(t, domain.WebSocketConnectedMsg{}, rec.next(t).Msg)
	assert.IsType(t, domain.WebSocketClosedMsg{}, rec.next(t).Msg)
}

func TestSendRequiresKey(t *testing.T) {
	srv := startWatchServer(t, nil)
	m, rec := newTestManager(t, srv.endpoint())

	err := m.Send(context.Background(), domain.NewIdle(time.Now()).Key, domain.FocusedTab{})
	assert.True(t, errors.Is(err, domain.ErrNotConnected), "no connection yet: %v", err)

	m.Open(context.Background(), 0)
	assert.IsType(t, domain.WebSocketConnectedMsg{}, rec.next(t).Msg)

	err = m.Send(context.Background(), domain.SendKey{}, domain.FocusedTab{})
	assert.True(t, errors.Is(err, domain.ErrNoSendKey))

	key := domain.NewIdle(time.Now()).Key
	require.NoError(t, m.Send(context.Background(), key, domain.FocusedTab{}))
	require.NoError(t, m.Send(context.Background(), key, domain.ChangedCompilationMode{Mode: domain.ModeDebug}))

	assert.Equal(t, map[string]any{"tag": "FocusedTab"}, recv(t, srv.received))
	assert.Equal(t, map[string]any{"tag": "ChangedCompilationMode", "compilationMode": "debug"}, recv(t, srv.received))
}

func TestCloseAndWaitFlushesAndIsSilent(t *testing.T) {
	srv := startWatchServer(t, nil)
	m, rec := newTestManager(t, srv.endpoint())
	m.Open(context.Background(), 0)
	assert.IsType(t, domain.WebSocketConnectedMsg{}, rec.next(t).Msg)

	key := domain.NewIdle(time.Now()).Key
	require.NoError(t, m.Send(context.Background(), key, domain.FocusedTab{}))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, m.CloseAndWait(ctx))

	assert.Equal(t, map[string]any{"tag": "FocusedTab"}, recv(t, srv.received))
	assert.Equal(t, websocket.StatusNormalClosure, recv(t, srv.closeStatus))
	rec.none(t, 100*time.Millisecond)

	assert.Equal(t, ulid.ULID{}, m.Current())
	err := m.Send(context.Background(), key, domain.FocusedTab{})
	assert.True(t, errors.Is(err, domain.ErrNotConnected))
}

func TestCloseAndWaitWithoutConnection(t *testing.T) {
	m, _ := newTestManager(t, protocol.Endpoint{Host: "127.0.0.1", Port: 1})
	assert.NoError(t, m.CloseAndWait(context.Background()))
}

func TestOpenReplacesConnection(t *testing.T) {
	srv := startWatchServer(t, nil)
	m, rec := newTestManager(t, srv.endpoint())

	first := m.Open(context.Background(), 1)
	assert.Equal(t, first, rec.next(t).ConnID)
	assert.Equal(t, "1", recv(t, srv.queries).Get("compiledTimestamp"))

	second := m.Open(context.Background(), 2)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, m.Current())

	// The replaced connection is silenced; only the new one reports.
	e := rec.next(t)
	assert.Equal(t, second, e.ConnID)
	assert.IsType(t, domain.WebSocketConnectedMsg{}, e.Msg)
	assert.Equal(t, "2", recv(t, srv.queries).Get("compiledTimestamp"))
}

func TestURL(t *testing.T) {
	m, _ := newTestManager(t, protocol.Endpoint{Host: "localhost", Port: 9000, Target: "App"})
	u, err := url.Parse(m.URL(7))
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, "localhost:"+strconv.Itoa(9000), u.Host)
	assert.Equal(t, "7", u.Query().Get("compiledTimestamp"))
}
