package relay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lifebow/assistantd/internal/metrics"
)

// Server is the privileged half of the relay. It accepts one WebSocket per
// restricted-context client and serves any number of concurrent sessions over
// it, each backed by one Backend call.
type Server struct {
	backend  Backend
	upgrader websocket.Upgrader
}

// NewServer creates a relay server delegating to backend.
func NewServer(backend Backend) *Server {
	return &Server{
		backend: backend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Both ends of the relay are trusted local processes.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and serves it until the peer goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("relay upgrade failed", "error", err)
		return
	}
	conn := newServerConn(ws, s.backend)
	conn.run()
}

// serverConn is the per-connection state: the demultiplexing table mapping
// live session ids to their cancel functions, and the single-writer channel
// serializing all outbound frames.
type serverConn struct {
	ws      *websocket.Conn
	backend Backend

	ctx    context.Context
	cancel context.CancelFunc

	writeCh chan envelope

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

func newServerConn(ws *websocket.Conn, backend Backend) *serverConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &serverConn{
		ws:       ws,
		backend:  backend,
		ctx:      ctx,
		cancel:   cancel,
		writeCh:  make(chan envelope, 64),
		sessions: make(map[string]context.CancelFunc),
	}
}

// run reads envelopes until the socket drops, then tears every live session
// down. Only the writer goroutine touches the socket's write side.
func (c *serverConn) run() {
	defer c.teardown()
	go c.writeLoop()

	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("relay connection dropped", "error", err)
			}
			return
		}
		c.dispatch(env)
	}
}

func (c *serverConn) dispatch(env envelope) {
	switch env.Type {
	case typeStart:
		c.startSession(env)
	case typeCancel:
		c.cancelSession(env.Session)
	case typeComplete:
		go c.runComplete(env)
	case typeModels:
		go c.runModels(env)
	default:
		slog.Warn("relay dropping envelope of unknown type", "type", env.Type)
	}
}

// startSession registers the session and spawns its streaming call. A reused
// session id is a client bug; the second start is dropped.
func (c *serverConn) startSession(env envelope) {
	if env.Config == nil {
		c.send(envelope{Type: typeError, Session: env.Session, Error: "start without config"})
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)

	c.mu.Lock()
	if _, exists := c.sessions[env.Session]; exists {
		c.mu.Unlock()
		cancel()
		slog.Warn("relay dropping start for live session", "session", env.Session)
		return
	}
	c.sessions[env.Session] = cancel
	c.mu.Unlock()

	go c.runSession(ctx, env)
}

func (c *serverConn) runSession(ctx context.Context, env envelope) {
	id := env.Session
	res := c.backend.Stream(ctx, env.Messages, *env.Config, func(text string) {
		metrics.RelayFragments.Inc()
		c.send(envelope{Type: typeChunk, Session: id, Chunk: text})
	})

	// A session cancelled via the table was already removed there and gets
	// no terminal frame; frames for it would race the client's teardown.
	if !c.removeSession(id) || res.Cancelled {
		metrics.RelaySessions.WithLabelValues("cancelled").Inc()
		return
	}
	if res.Err != nil {
		metrics.RelaySessions.WithLabelValues("errored").Inc()
		c.send(envelope{Type: typeError, Session: id, Error: res.ErrorMessage()})
		return
	}
	metrics.RelaySessions.WithLabelValues("done").Inc()
	c.send(envelope{Type: typeDone, Session: id, Done: true})
}

func (c *serverConn) runComplete(env envelope) {
	if env.Config == nil {
		c.send(envelope{Type: typeCompletion, Session: env.Session, Error: "complete without config", Failed: true})
		return
	}
	res := c.backend.Complete(c.ctx, env.Messages, *env.Config)
	if res.Cancelled {
		return
	}
	if res.Err != nil {
		c.send(envelope{Type: typeCompletion, Session: env.Session, Error: res.ErrorMessage(), Failed: true})
		return
	}
	c.send(envelope{Type: typeCompletion, Session: env.Session, Text: res.Text})
}

func (c *serverConn) runModels(env envelope) {
	if env.Config == nil {
		c.send(envelope{Type: typeModelsResult, Session: env.Session, Error: "models without config", Failed: true})
		return
	}
	models, err := c.backend.ListModels(c.ctx, *env.Config)
	if err != nil {
		c.send(envelope{Type: typeModelsResult, Session: env.Session, Error: err.Error(), Failed: true})
		return
	}
	c.send(envelope{Type: typeModelsResult, Session: env.Session, Models: models})
}

// cancelSession removes the session from the table and cancels its context.
// Unknown ids are ignored; the session may have finished on its own just
// before the cancel arrived.
func (c *serverConn) cancelSession(id string) {
	c.mu.Lock()
	cancel, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// removeSession deletes the session and reports whether it was still live.
func (c *serverConn) removeSession(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; !ok {
		return false
	}
	delete(c.sessions, id)
	return true
}

func (c *serverConn) send(env envelope) {
	select {
	case c.writeCh <- env:
	case <-c.ctx.Done():
	}
}

func (c *serverConn) writeLoop() {
	for {
		select {
		case env := <-c.writeCh:
			if err := c.ws.WriteJSON(env); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// teardown cancels every live session and closes the socket. In-flight
// session goroutines observe the cancellation through their contexts and
// finish without emitting terminal frames.
func (c *serverConn) teardown() {
	c.mu.Lock()
	for id, cancel := range c.sessions {
		cancel()
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	c.cancel()
	_ = c.ws.Close() //nolint:errcheck
}
