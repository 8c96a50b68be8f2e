package rpcconn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/capabilities"
	"github.com/coredb/rpccore/internal/codec/json"
	"github.com/coredb/rpccore/internal/dispatch"
	"github.com/coredb/rpccore/internal/engine"
	"github.com/coredb/rpccore/internal/livequery"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/txnreg"
	"github.com/coredb/rpccore/internal/value"
)

type fakeEngine struct{}

func (fakeEngine) Execute(ctx context.Context, sess session.Snapshot, text string, vars map[string]value.Value) ([]engine.QueryResult, error) {
	return nil, nil
}
func (fakeEngine) Process(ctx context.Context, sess session.Snapshot, ast any, vars map[string]value.Value) ([]engine.QueryResult, error) {
	return nil, nil
}
func (fakeEngine) ExecuteWithTransaction(ctx context.Context, sess session.Snapshot, text string, vars map[string]value.Value, txn engine.Txn) ([]engine.QueryResult, error) {
	return nil, nil
}
func (fakeEngine) ProcessWithTransaction(ctx context.Context, sess session.Snapshot, ast any, vars map[string]value.Value, txn engine.Txn) ([]engine.QueryResult, error) {
	return nil, nil
}
func (fakeEngine) Transaction(ctx context.Context, kind engine.TransactionKind, lock engine.LockType) (engine.Txn, error) {
	return nil, errors.New("not implemented")
}
func (fakeEngine) Compute(ctx context.Context, sess session.Snapshot, expr string, vars map[string]value.Value) (value.Value, error) {
	return value.None(), nil
}
func (fakeEngine) AllowsQueryBySubject(subj session.Subject) bool         { return true }
func (fakeEngine) EnsureNamespace(ctx context.Context, ns string) error   { return nil }
func (fakeEngine) EnsureDatabase(ctx context.Context, ns, db string) error { return nil }

// fakeStream replays a fixed set of inbound frames, then blocks until closed.
type fakeStream struct {
	mu     sync.Mutex
	inbox  [][]byte
	outbox [][]byte
	pings  int
	closed chan struct{}
}

func newFakeStream(frames ...[]byte) *fakeStream {
	return &fakeStream{inbox: frames, closed: make(chan struct{})}
}

func (s *fakeStream) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if len(s.inbox) > 0 {
		frame := s.inbox[0]
		s.inbox = s.inbox[1:]
		s.mu.Unlock()
		return frame, nil
	}
	s.mu.Unlock()
	select {
	case <-s.closed:
		return nil, errors.New("stream closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, data)
	return nil
}

func (s *fakeStream) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return nil
}

func (s *fakeStream) Close() error {
	close(s.closed)
	return nil
}

func newTestConnection(stream Stream) *Connection {
	c := New(uuid.New(), stream, json.New(), 8)
	c.Dispatcher = &dispatch.Dispatcher{
		Engine:    fakeEngine{},
		Caps:      capabilities.Default(),
		Txns:      txnreg.NewRegistry(4),
		LiveQuery: livequery.NewRegistry(),
	}
	c.Txns = c.Dispatcher.Txns
	c.LiveQuery = c.Dispatcher.LiveQuery
	c.PingInterval = 10 * time.Millisecond
	return c
}

func TestRunEchoesPingResponse(t *testing.T) {
	codecFrame, err := json.New().Encode(value.Object(map[string]value.Value{
		"id":     value.String("1"),
		"method": value.String("ping"),
	}))
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	stream := newFakeStream(codecFrame)
	conn := newTestConnection(stream)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	deadline := time.After(150 * time.Millisecond)
	for {
		stream.mu.Lock()
		n := len(stream.outbox)
		stream.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a response frame")
		case <-time.After(5 * time.Millisecond):
		}
	}
	stream.Close()
	<-done
}

func TestRunTearsDownOnExit(t *testing.T) {
	stream := newFakeStream()
	conn := newTestConnection(stream)
	lqID := uuid.New()
	conn.LiveQuery.Register(lqID, livequery.Entry{ConnectionID: conn.ID})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	stream.Close()
	<-done

	if _, ok := conn.LiveQuery.Lookup(lqID); ok {
		t.Error("expected the connection's live query to be torn down on exit")
	}
}

func TestGracefulShutdownStopsAcceptingFrames(t *testing.T) {
	stream := newFakeStream()
	conn := newTestConnection(stream)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	conn.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected a clean graceful return, got %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for graceful shutdown to finish")
	}
}

func TestPressureProbeRejectsFrame(t *testing.T) {
	codecFrame, err := json.New().Encode(value.Object(map[string]value.Value{
		"id":     value.String("1"),
		"method": value.String("ping"),
	}))
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	stream := newFakeStream(codecFrame)
	conn := newTestConnection(stream)
	conn.PressureProbe = func() bool { return true }

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err = conn.Run(ctx)
	if err == nil {
		t.Fatal("expected Run to return an error when overloaded")
	}
}

func TestAttachThenDetachSession(t *testing.T) {
	stream := newFakeStream()
	conn := newTestConnection(stream)
	conn.Dispatcher.ConnID = conn.ID
	conn.Dispatcher.AttachSession = conn.attachSession
	conn.Dispatcher.DetachSession = conn.detachSession

	id := uuid.New()
	if err := conn.attachSession(id); err != nil {
		t.Fatalf("unexpected error attaching: %v", err)
	}
	if err := conn.attachSession(id); err == nil {
		t.Fatal("expected re-attaching the same id to fail")
	}

	lqID := uuid.New()
	idCopy := id
	conn.LiveQuery.Register(lqID, livequery.Entry{ConnectionID: conn.ID, SessionID: &idCopy})

	if err := conn.detachSession(id); err != nil {
		t.Fatalf("unexpected error detaching: %v", err)
	}
	if _, ok := conn.LiveQuery.Lookup(lqID); ok {
		t.Error("expected detach to kill the session's live queries")
	}
	if err := conn.detachSession(id); err == nil {
		t.Fatal("expected detaching an already-detached id to fail")
	}
}

func TestRegistryReserveAvoidsCollision(t *testing.T) {
	reg := NewRegistry()
	stream := newFakeStream()
	conn := newTestConnection(stream)
	reg.Register(conn)
	defer reg.Unregister(conn.ID)

	got := reg.Reserve(&conn.ID)
	if got == conn.ID {
		t.Error("expected Reserve to avoid a collision with an already-registered id")
	}
}

func TestRegistryShutdownDrainsConnections(t *testing.T) {
	reg := NewRegistry()
	stream := newFakeStream()
	conn := newTestConnection(stream)
	reg.Register(conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		conn.Run(ctx)
		close(done)
	}()

	reg.Shutdown(200 * time.Millisecond)

	select {
	case <-done:
	default:
		t.Fatal("expected connection to have stopped by the time Shutdown returns")
	}
}
