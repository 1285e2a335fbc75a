// Package chat is the front door for completion callers. It hides whether
// requests run in-process against the provider adapters or cross the relay
// to a privileged peer; both paths expose the same contract.
package chat

import (
	"context"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/dispatch"
	"github.com/lifebow/assistantd/internal/relay"
)

// Completer is the execution contract shared by the direct dispatcher and
// the relay client.
type Completer interface {
	Stream(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config, sink core.FragmentSink) core.StreamResult
	Complete(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config) core.StreamResult
	ListModels(ctx context.Context, cfg dispatch.Config) ([]string, error)
}

// Options selects the execution path.
type Options struct {
	// RelayURL, when set, routes every call through the relay at this
	// endpoint instead of calling providers directly.
	RelayURL string
}

// New returns the completer for the given options. The choice is made once;
// callers never branch on the execution path again.
func New(opts Options) (Completer, error) {
	if opts.RelayURL == "" {
		return dispatch.New(), nil
	}
	return relay.Dial(opts.RelayURL)
}
