package core

import "context"

// FragmentSink receives incremental answer text in decode order. Fragment
// boundaries carry no semantic meaning; concatenating every fragment in
// emission order reconstructs the full answer.
type FragmentSink func(text string)

// Adapter is implemented once per provider wire family. Implementations build
// the outbound request from the normalized message list plus credentials and
// speak the provider's framing on the way back.
type Adapter interface {
	// Complete issues a single-shot request and returns the final answer text.
	Complete(ctx context.Context, messages []ChatMessage, creds Credentials) (string, error)

	// Stream issues a streaming request, forwarding every decoded fragment to
	// sink as soon as it is extracted, and returns the accumulated full text.
	// An aborted read surfaces as the context's error, distinguishable from a
	// transport failure via IsCancellation.
	Stream(ctx context.Context, messages []ChatMessage, creds Credentials, sink FragmentSink) (string, error)

	// ListModels returns the identifiers of the models the provider offers.
	ListModels(ctx context.Context, creds Credentials) ([]string, error)
}
