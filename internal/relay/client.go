package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/dispatch"
)

// sessionQueue is an unbounded inbox of inbound frames for one session.
// The read loop must never block on a slow consumer (that would stall every
// other session on the shared socket) and must never drop a frame (a lost
// chunk corrupts the answer; a lost terminal frame strands the session), so
// frames queue without limit until the session's caller drains them.
type sessionQueue struct {
	mu     sync.Mutex
	frames []envelope
	notify chan struct{}
}

func newSessionQueue() *sessionQueue {
	return &sessionQueue{notify: make(chan struct{}, 1)}
}

func (q *sessionQueue) push(env envelope) {
	q.mu.Lock()
	q.frames = append(q.frames, env)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *sessionQueue) pop() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return envelope{}, false
	}
	env := q.frames[0]
	q.frames = q.frames[1:]
	return env, true
}

// Client is the restricted-context half of the relay. It satisfies the same
// contract as dispatch.Dispatcher, so callers choose direct or relayed
// execution purely at construction time.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*sessionQueue

	closed    chan struct{}
	closeErr  error
	closeOnce sync.Once
}

// Dial connects to the relay endpoint. http and https URLs are accepted and
// rewritten to their WebSocket schemes.
func Dial(rawURL string) (*Client, error) {
	wsURL := rawURL
	switch {
	case strings.HasPrefix(rawURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(rawURL, "http://")
	case strings.HasPrefix(rawURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(rawURL, "https://")
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", wsURL, err)
	}
	if resp != nil {
		_ = resp.Body.Close() //nolint:errcheck
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]*sessionQueue),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close shuts the relay connection down. Pending calls return a connection
// error.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.fail(fmt.Errorf("relay connection closed"))
	return err
}

// Stream runs one streaming completion over the relay. Fragments reach sink
// in emission order; ctx cancellation sends a cancel envelope and resolves
// the call as Cancelled immediately, without waiting for the far side.
func (c *Client) Stream(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config, sink core.FragmentSink) core.StreamResult {
	id := uuid.NewString()
	q := c.addPending(id)
	defer c.removePending(id)

	if err := c.writeJSON(envelope{Type: typeStart, Session: id, Messages: messages, Config: &cfg}); err != nil {
		return core.StreamResult{Err: err}
	}

	var full strings.Builder
	for {
		env, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				_ = c.writeJSON(envelope{Type: typeCancel, Session: id}) //nolint:errcheck
				return core.StreamResult{Cancelled: true}
			case <-c.closed:
				return core.StreamResult{Err: c.closeError()}
			case <-q.notify:
			}
			continue
		}

		switch env.Type {
		case typeChunk:
			full.WriteString(env.Chunk)
			if sink != nil {
				sink(env.Chunk)
			}
		case typeDone:
			return core.StreamResult{Text: full.String()}
		case typeError:
			return core.StreamResult{
				Err: core.NewRequestError(core.ProviderType(cfg.Provider), 0, env.Error, nil),
			}
		}
	}
}

// Complete runs one single-shot completion over the relay.
func (c *Client) Complete(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config) core.StreamResult {
	id := uuid.NewString()
	q := c.addPending(id)
	defer c.removePending(id)

	if err := c.writeJSON(envelope{Type: typeComplete, Session: id, Messages: messages, Config: &cfg}); err != nil {
		return core.StreamResult{Err: err}
	}

	for {
		if env, ok := q.pop(); ok {
			if env.Failed {
				return core.StreamResult{
					Err: core.NewRequestError(core.ProviderType(cfg.Provider), 0, env.Error, nil),
				}
			}
			return core.StreamResult{Text: env.Text}
		}
		select {
		case <-ctx.Done():
			_ = c.writeJSON(envelope{Type: typeCancel, Session: id}) //nolint:errcheck
			return core.StreamResult{Cancelled: true}
		case <-c.closed:
			return core.StreamResult{Err: c.closeError()}
		case <-q.notify:
		}
	}
}

// ListModels lists the configured provider's models over the relay.
func (c *Client) ListModels(ctx context.Context, cfg dispatch.Config) ([]string, error) {
	id := uuid.NewString()
	q := c.addPending(id)
	defer c.removePending(id)

	if err := c.writeJSON(envelope{Type: typeModels, Session: id, Config: &cfg}); err != nil {
		return nil, err
	}

	for {
		if env, ok := q.pop(); ok {
			if env.Failed {
				return nil, core.NewRequestError(core.ProviderType(cfg.Provider), 0, env.Error, nil)
			}
			return env.Models, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, c.closeError()
		case <-q.notify:
		}
	}
}

func (c *Client) addPending(id string) *sessionQueue {
	q := newSessionQueue()
	c.mu.Lock()
	c.pending[id] = q
	c.mu.Unlock()
	return q
}

func (c *Client) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop demultiplexes inbound envelopes onto their session queues.
// Pushing never blocks and never discards, so a slow consumer on one session
// neither stalls the socket nor loses frames. Frames for sessions no longer
// in the table are dropped; they belong to calls that were cancelled or
// already resolved.
func (c *Client) readLoop() {
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.fail(fmt.Errorf("relay read: %w", err))
			return
		}

		c.mu.Lock()
		q := c.pending[env.Session]
		c.mu.Unlock()
		if q == nil {
			continue
		}
		q.push(env)
	}
}

func (c *Client) writeJSON(env envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *Client) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}
