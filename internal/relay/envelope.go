// Package relay carries completion requests from a capability-restricted
// context to the privileged context that can make authenticated cross-origin
// network calls, multiplexing any number of concurrent streaming sessions
// over one long-lived WebSocket.
//
// Per-session protocol, caller's view: send exactly one start envelope, then
// receive zero or more chunk envelopes in emission order followed by exactly
// one of done or error. A cancel envelope tears the session down; any frame
// arriving for a cancelled session is ignorable. Sessions are never reused.
package relay

import (
	"context"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/dispatch"
)

// Envelope types.
const (
	typeStart        = "start"
	typeChunk        = "chunk"
	typeDone         = "done"
	typeError        = "error"
	typeCancel       = "cancel"
	typeComplete     = "complete"
	typeCompletion   = "completion"
	typeModels       = "models"
	typeModelsResult = "models_result"
)

// envelope is the single wire shape crossing the relay channel. Which fields
// are populated depends on Type.
type envelope struct {
	Type    string `json:"type"`
	Session string `json:"session"`

	// start / complete / models
	Messages []core.ChatMessage `json:"messages,omitempty"`
	Config   *dispatch.Config   `json:"config,omitempty"`

	// chunk
	Chunk string `json:"chunk,omitempty"`

	// completion
	Text string `json:"text,omitempty"`

	// error / completion / models_result. Failed discriminates a failed
	// completion or models_result explicitly; the message alone cannot,
	// since an error's text may be empty.
	Error  string `json:"error,omitempty"`
	Failed bool   `json:"failed,omitempty"`

	// done
	Done bool `json:"done,omitempty"`

	// models_result
	Models []string `json:"models,omitempty"`
}

// Backend is the privileged-side implementation the relay drives. It is
// satisfied by *dispatch.Dispatcher.
type Backend interface {
	Stream(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config, sink core.FragmentSink) core.StreamResult
	Complete(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config) core.StreamResult
	ListModels(ctx context.Context, cfg dispatch.Config) ([]string, error)
}
