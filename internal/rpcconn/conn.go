// Package rpcconn implements the duplex connection: a reader goroutine that
// decodes inbound frames and dispatches them, a writer goroutine that drains
// completed responses back to the wire in the order they finish (not the
// order they arrived), and a pinger goroutine that keeps the transport's
// keepalive moving. The three are supervised by golang.org/x/sync/errgroup,
// which propagates the first failure as the reason to tear the other two
// down. Graceful shutdown stops the reader from accepting new frames while
// letting in-flight handlers and the writer's drain finish on their own;
// immediate shutdown cancels all three at once.
package rpcconn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coredb/rpccore/internal/codec"
	"github.com/coredb/rpccore/internal/dispatch"
	"github.com/coredb/rpccore/internal/livequery"
	"github.com/coredb/rpccore/internal/rpc"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/txnreg"
)

// Stream abstracts the framed transport underneath a Connection: one
// complete message per Read/Write call. The transport's WebSocket stream
// is the implementation in this module; its Ping sends a real ping frame.
type Stream interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Connection is one logical client connection: its codec, its attached
// sessions (a connection may multiplex several, selected per-request by
// session_id), its open transactions, and the live queries it owns.
type Connection struct {
	ID    uuid.UUID
	Codec codec.Codec

	Dispatcher *dispatch.Dispatcher
	Txns       *txnreg.Registry
	LiveQuery  *livequery.Registry

	PingInterval time.Duration

	// PressureProbe is polled once per inbound frame; when it reports true
	// the reader rejects the frame as overloaded and tears the connection
	// down instead of spawning a handler. Nil means never gate.
	PressureProbe func() bool

	stream   Stream
	outbound chan []byte

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	defaultS *session.Session

	inFlight sync.WaitGroup

	shutdownOnce    sync.Once
	shutdownCh      chan struct{}
	cancelImmediate context.CancelFunc
	done            chan struct{}
}

// New constructs a Connection with one anonymous default session already
// attached (used whenever a request omits session_id).
func New(id uuid.UUID, stream Stream, c codec.Codec, outboundCap int) *Connection {
	conn := &Connection{
		ID:           id,
		Codec:        c,
		stream:       stream,
		outbound:     make(chan []byte, outboundCap),
		sessions:     make(map[uuid.UUID]*session.Session),
		PingInterval: 30 * time.Second,
		shutdownCh:   make(chan struct{}),
		done:         make(chan struct{}),
	}
	conn.defaultS = session.New(nil)
	return conn
}

// Shutdown signals this connection's reader to stop accepting new frames;
// in-flight handlers and the writer's drain are left to finish on their own.
// Safe to call more than once and from any goroutine.
func (c *Connection) Shutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
}

// Wait blocks until Run has returned.
func (c *Connection) Wait() { <-c.done }

// sessionFor resolves the session a request should run against: the
// connection's default session when id is nil, or a previously-attached
// session when id names one. A request naming a session id that was never
// attached is rejected rather than silently given a fresh session.
func (c *Connection) sessionFor(id *uuid.UUID) (*session.Session, bool) {
	if id == nil {
		return c.defaultS, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[*id]
	return s, ok
}

// errSessionExists and errNoSuchSession back the attach/detach handlers.
var (
	errSessionExists = errors.New("session already attached")
	errNoSuchSession = errors.New("no such session")
)

// attachSession creates a new session under the given id, failing if one is
// already attached under it.
func (c *Connection) attachSession(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; ok {
		return errSessionExists
	}
	idCopy := id
	c.sessions[id] = session.New(&idCopy)
	return nil
}

// detachSession removes a previously-attached session and runs the
// live-query and transaction cleanup scoped to it.
func (c *Connection) detachSession(id uuid.UUID) error {
	c.mu.Lock()
	if _, ok := c.sessions[id]; !ok {
		c.mu.Unlock()
		return errNoSuchSession
	}
	delete(c.sessions, id)
	c.mu.Unlock()

	idCopy := id
	c.LiveQuery.KillForSession(c.ID, &idCopy)
	c.Txns.TeardownScope(id.String())
	return nil
}

// listSessionIDs backs the dispatcher's "sessions" introspection method.
func (c *Connection) listSessionIDs() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Run wires this connection's dispatcher plumbing and blocks until the
// stream closes, the immediate context is cancelled, Shutdown is called and
// drains, or one of the three goroutines fails. It tears down every open
// transaction and live query this connection owned before returning.
func (c *Connection) Run(parent context.Context) error {
	defer close(c.done)

	c.Dispatcher.ConnID = c.ID
	c.Dispatcher.ListSessions = c.listSessionIDs
	c.Dispatcher.AttachSession = c.attachSession
	c.Dispatcher.DetachSession = c.detachSession

	immediate, cancel := context.WithCancel(parent)
	c.cancelImmediate = cancel
	defer cancel()

	g, gctx := errgroup.WithContext(immediate)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	g.Go(func() error { return c.pingLoop(gctx) })

	err := g.Wait()
	c.inFlight.Wait()
	c.Txns.TeardownScope("")
	for id := range c.sessions {
		idCopy := id
		c.Txns.TeardownScope(idCopy.String())
	}
	c.LiveQuery.KillForConnection(c.ID)
	return err
}

// errOverloaded signals the reader rejected a frame because PressureProbe
// reported the process is over its allocator pressure threshold.
var errOverloaded = errors.New("rejecting frame: server overloaded")

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		select {
		case <-c.shutdownCh:
			return nil
		default:
		}

		frame, err := c.stream.Read(ctx)
		if err != nil {
			return err
		}
		if c.PressureProbe != nil && c.PressureProbe() {
			c.send(ctx, rpc.Fail(nil, rpcerr.New(rpcerr.KindInternalError, "server overloaded, try again")))
			return errOverloaded
		}
		c.inFlight.Add(1)
		go c.handleFrame(ctx, frame)
	}
}

func (c *Connection) handleFrame(ctx context.Context, frame []byte) {
	defer c.inFlight.Done()

	decoded, err := c.Codec.Decode(frame)
	if err != nil {
		c.send(ctx, rpc.Fail(nil, rpcerr.New(rpcerr.KindParseError, err.Error())))
		return
	}
	req, err := rpc.FromObject(decoded)
	if err != nil {
		c.send(ctx, rpc.Fail(nil, toRPCErr(err)))
		return
	}
	sess, ok := c.sessionFor(req.SessionID)
	if !ok {
		resp := rpc.Fail(req.ID, rpcerr.New(rpcerr.KindSessionNotFound, req.SessionID.String()))
		resp.SessionID = req.SessionID
		c.send(ctx, resp)
		return
	}
	resp := c.Dispatcher.Handle(ctx, sess, req)
	resp.SessionID = req.SessionID
	c.send(ctx, resp)
}

func toRPCErr(err error) *rpcerr.Error {
	if e, ok := err.(*rpcerr.Error); ok {
		return e
	}
	return rpcerr.Internal(err)
}

func (c *Connection) send(ctx context.Context, resp *rpc.Response) {
	out, err := c.Codec.Encode(resp.ToObject())
	if err != nil {
		out, _ = c.Codec.Encode(rpc.Fail(resp.ID, rpcerr.Internal(err)).ToObject())
	}
	select {
	case c.outbound <- out:
	case <-ctx.Done():
	}
}

func (c *Connection) writeLoop(ctx context.Context) error {
	for {
		select {
		case data := <-c.outbound:
			if err := c.stream.Write(ctx, data); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) pingLoop(ctx context.Context) error {
	if c.PingInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.stream.Ping(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
