// Package core provides the shared types for the response protocol layer.
package core

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// InlineImage is a self-describing inline-encoded bitmap attached to a message.
type InlineImage struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64, without a data: prefix
}

// ChatMessage is one entry in the conversation sent to a provider.
// The sequence is ordered and immutable once sent; at most one system
// message is expected, conventionally first.
type ChatMessage struct {
	Role    Role         `json:"role"`
	Content string       `json:"content"`
	Image   *InlineImage `json:"image,omitempty"`
}

// ProviderType enumerates the wire families this layer speaks.
type ProviderType string

const (
	ProviderGoogle    ProviderType = "google"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
)

// Normalize folds unknown or custom provider names into the OpenAI-compatible
// family. Only google and anthropic have their own wire formats; everything
// else speaks the OpenAI chat completions shape.
func (p ProviderType) Normalize() ProviderType {
	switch p {
	case ProviderGoogle, ProviderAnthropic:
		return p
	default:
		return ProviderOpenAI
	}
}

// Credentials carries everything an adapter needs to reach one provider.
// APIKey has already been chosen from the configured pool by the dispatcher.
type Credentials struct {
	Provider ProviderType
	APIKey   string
	BaseURL  string
	Model    string
}

// StreamResult is the three-way outcome of an awaitable completion operation.
// Cancellation is a first-class outcome, not an error subtype, so callers
// never report a cancelled request as a failure.
type StreamResult struct {
	Text      string
	Err       error
	Cancelled bool
}

// DeltaKind discriminates what a single decoded protocol unit contributed.
type DeltaKind int

const (
	// DeltaNone means the unit carried no answer text (heartbeat, metadata,
	// role announcement). Skipped.
	DeltaNone DeltaKind = iota
	// DeltaText means the unit carried an incremental text fragment.
	DeltaText
	// DeltaEnd means the unit is an explicit end-of-stream marker.
	DeltaEnd
	// DeltaMalformed means the unit did not parse into the expected shape.
	// Treated like DeltaNone by callers, logged rather than surfaced.
	DeltaMalformed
)

// Delta is the result of extracting one complete protocol unit.
type Delta struct {
	Kind DeltaKind
	Text string
}
