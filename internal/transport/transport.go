// Package transport serves the RPC surface over HTTP and WebSocket: a
// single POST /rpc request/response exchange, a GET /rpc WebSocket upgrade
// for a duplex connection, and the OPTIONS preflight both need. Codec
// selection follows Content-Type (POST) or the WebSocket sub-protocol (GET).
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coredb/rpccore/internal/capabilities"
	"github.com/coredb/rpccore/internal/codec"
	"github.com/coredb/rpccore/internal/dispatch"
	"github.com/coredb/rpccore/internal/engine"
	"github.com/coredb/rpccore/internal/livequery"
	"github.com/coredb/rpccore/internal/rpc"
	"github.com/coredb/rpccore/internal/rpcconn"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/txnreg"
)

// Factory builds the /rpc handler. It owns the process-wide collaborators
// (engine, auth, graphql, capabilities). Each WebSocket connection gets a
// freshly-scoped Dispatcher with its own transaction and live-query
// registries; every HTTP POST request shares one lazily-built Dispatcher and
// its default session. WebSocket connections are registered in Connections
// for Shutdown's graceful-then-immediate drain.
type Factory struct {
	Codecs  *codec.Registry
	Caps    capabilities.Capabilities
	Engine  engine.Engine
	Auth    engine.Auth
	GraphQL engine.GraphQL

	Connections *rpcconn.Registry

	TxnQuotaPerScope int
	PingInterval     time.Duration
	OutboundCapacity int
	PressureProbe    func() bool

	upgrader websocket.Upgrader

	httpOnce   sync.Once
	httpDisp   *dispatch.Dispatcher
	httpMu     sync.Mutex
	httpSess   *session.Session
	httpScoped map[uuid.UUID]*session.Session
}

// Shutdown drains every live WebSocket connection: graceful for up to
// grace, then immediate for any stragglers.
func (f *Factory) Shutdown(grace time.Duration) {
	if f.Connections != nil {
		f.Connections.Shutdown(grace)
	}
}

// Handler serves /rpc: GET upgrades to WebSocket, POST answers a single
// request, OPTIONS answers the CORS preflight.
func (f *Factory) Handler() http.HandlerFunc {
	if f.upgrader.CheckOrigin == nil {
		f.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			f.serveWebSocket(w, r)
		case http.MethodPost:
			f.serveHTTPOnce(w, r)
		default:
			w.Header().Set("Allow", "GET, POST, OPTIONS")
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	}
}

func writeCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
}

func (f *Factory) serveHTTPOnce(w http.ResponseWriter, r *http.Request) {
	writeCORSHeaders(w)
	c, err := f.Codecs.ByContentType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	decoded, err := c.Decode(body)
	if err != nil {
		writeEncoded(w, c, rpc.Fail(nil, rpcerr.New(rpcerr.KindParseError, err.Error())))
		return
	}
	req, err := rpc.FromObject(decoded)
	if err != nil {
		writeEncoded(w, c, rpc.Fail(nil, toRPCErr(err)))
		return
	}

	d := f.sharedHTTPDispatcher()
	sess, ok := f.sessionForHTTP(req.SessionID)
	if !ok {
		resp := rpc.Fail(req.ID, rpcerr.New(rpcerr.KindSessionNotFound, req.SessionID.String()))
		resp.SessionID = req.SessionID
		writeEncoded(w, c, resp)
		return
	}
	resp := d.Handle(r.Context(), sess, req)
	resp.SessionID = req.SessionID
	writeEncoded(w, c, resp)
}

// sharedHTTPDispatcher lazily builds the single Dispatcher every POST /rpc
// request shares. Unlike a WebSocket connection, HTTP request/response has
// no connection id to scope transactions and sessions per-client, so — per
// this surface's documented, deliberately-preserved behavior — every
// concurrent HTTP caller sees the same default session and the same open
// transactions.
func (f *Factory) sharedHTTPDispatcher() *dispatch.Dispatcher {
	f.httpOnce.Do(func() {
		f.httpDisp = f.newDispatcher()
		f.httpSess = session.New(nil)
		f.httpScoped = make(map[uuid.UUID]*session.Session)
		f.httpDisp.AttachSession = f.attachHTTPSession
		f.httpDisp.DetachSession = f.detachHTTPSession
		f.httpDisp.ListSessions = f.listHTTPSessionIDs
	})
	return f.httpDisp
}

// sessionForHTTP mirrors rpcconn.Connection.sessionFor: nil resolves to the
// shared default session, and a named session_id must have been previously
// attached.
func (f *Factory) sessionForHTTP(id *uuid.UUID) (*session.Session, bool) {
	if id == nil {
		return f.httpSess, true
	}
	f.httpMu.Lock()
	defer f.httpMu.Unlock()
	s, ok := f.httpScoped[*id]
	return s, ok
}

var (
	errHTTPSessionExists = errors.New("session already attached")
	errHTTPNoSuchSession = errors.New("no such session")
)

func (f *Factory) attachHTTPSession(id uuid.UUID) error {
	f.httpMu.Lock()
	defer f.httpMu.Unlock()
	if _, ok := f.httpScoped[id]; ok {
		return errHTTPSessionExists
	}
	idCopy := id
	f.httpScoped[id] = session.New(&idCopy)
	return nil
}

func (f *Factory) detachHTTPSession(id uuid.UUID) error {
	f.httpMu.Lock()
	if _, ok := f.httpScoped[id]; !ok {
		f.httpMu.Unlock()
		return errHTTPNoSuchSession
	}
	delete(f.httpScoped, id)
	f.httpMu.Unlock()

	idCopy := id
	f.httpDisp.LiveQuery.KillForSession(uuid.Nil, &idCopy)
	f.httpDisp.Txns.TeardownScope(id.String())
	return nil
}

func (f *Factory) listHTTPSessionIDs() []uuid.UUID {
	f.httpMu.Lock()
	defer f.httpMu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.httpScoped))
	for id := range f.httpScoped {
		ids = append(ids, id)
	}
	return ids
}

func writeEncoded(w http.ResponseWriter, c codec.Codec, resp *rpc.Response) {
	out, err := c.Encode(resp.ToObject())
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	_, _ = w.Write(out)
}

func toRPCErr(err error) *rpcerr.Error {
	if e, ok := err.(*rpcerr.Error); ok {
		return e
	}
	return rpcerr.Internal(err)
}

func (f *Factory) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	sub := firstSubProtocol(r)
	c, err := f.Codecs.BySubProtocol(sub)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.upgrader.Subprotocols = []string{c.Name()}
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	stream := &wsStream{conn: ws}

	requested := requestedConnID(r)
	var connID uuid.UUID
	switch {
	case f.Connections != nil:
		connID = f.Connections.Reserve(requested)
	case requested != nil:
		connID = *requested
	default:
		connID = uuid.New()
	}
	conn := rpcconn.New(connID, stream, c, f.OutboundCapacity)
	conn.Dispatcher = f.newDispatcher()
	conn.Txns = conn.Dispatcher.Txns
	conn.LiveQuery = conn.Dispatcher.LiveQuery
	conn.PingInterval = f.PingInterval
	conn.PressureProbe = f.PressureProbe

	if f.Connections != nil {
		f.Connections.Register(conn)
		defer f.Connections.Unregister(conn.ID)
	}

	_ = conn.Run(r.Context())
}

// requestedConnID honors a client-supplied "Id" header naming the
// connection id to use, when it parses as a uuid.
func requestedConnID(r *http.Request) *uuid.UUID {
	raw := r.Header.Get("Id")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func firstSubProtocol(r *http.Request) string {
	for _, p := range websocket.Subprotocols(r) {
		return p
	}
	return ""
}

func (f *Factory) newDispatcher() *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Engine:    f.Engine,
		Auth:      f.Auth,
		GraphQL:   f.GraphQL,
		Caps:      f.Caps,
		Txns:      txnreg.NewRegistry(f.TxnQuotaPerScope),
		LiveQuery: livequery.NewRegistry(),
	}
}

// wsStream adapts a gorilla websocket.Conn to rpcconn.Stream: one message
// per Read/Write, and a native control-frame Ping for keepalive.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsStream) Write(ctx context.Context, data []byte) error {
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) Ping(ctx context.Context) error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (s *wsStream) Close() error { return s.conn.Close() }
