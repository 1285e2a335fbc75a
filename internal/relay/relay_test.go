package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/dispatch"
)

// stubBackend scripts the privileged side of the relay.
type stubBackend struct {
	streamFn   func(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config, sink core.FragmentSink) core.StreamResult
	completeFn func(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config) core.StreamResult
	modelsFn   func(ctx context.Context, cfg dispatch.Config) ([]string, error)
}

func (s *stubBackend) Stream(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config, sink core.FragmentSink) core.StreamResult {
	return s.streamFn(ctx, messages, cfg, sink)
}

func (s *stubBackend) Complete(ctx context.Context, messages []core.ChatMessage, cfg dispatch.Config) core.StreamResult {
	return s.completeFn(ctx, messages, cfg)
}

func (s *stubBackend) ListModels(ctx context.Context, cfg dispatch.Config) ([]string, error) {
	return s.modelsFn(ctx, cfg)
}

// dialTestRelay stands a relay server up around backend and connects a client.
func dialTestRelay(t *testing.T, backend Backend) *Client {
	t.Helper()
	server := httptest.NewServer(NewServer(backend))
	t.Cleanup(server.Close)

	client, err := Dial(server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testConfig() dispatch.Config {
	return dispatch.Config{Provider: "openai", APIKeys: []string{"k"}, Model: "m"}
}

func TestRelay_StreamDeliversFragmentsInOrder(t *testing.T) {
	backend := &stubBackend{
		streamFn: func(_ context.Context, messages []core.ChatMessage, cfg dispatch.Config, sink core.FragmentSink) core.StreamResult {
			assert.Len(t, messages, 1)
			assert.Equal(t, "hi", messages[0].Content)
			assert.Equal(t, "m", cfg.Model)
			sink("Hel")
			sink("lo")
			sink(" world")
			return core.StreamResult{Text: "Hello world"}
		},
	}
	client := dialTestRelay(t, backend)

	var fragments []string
	res := client.Stream(context.Background(),
		[]core.ChatMessage{{Role: core.RoleUser, Content: "hi"}},
		testConfig(),
		func(text string) { fragments = append(fragments, text) })

	require.NoError(t, res.Err)
	require.False(t, res.Cancelled)
	require.Equal(t, "Hello world", res.Text)
	require.Equal(t, []string{"Hel", "lo", " world"}, fragments)
}

func TestRelay_StreamError(t *testing.T) {
	backend := &stubBackend{
		streamFn: func(context.Context, []core.ChatMessage, dispatch.Config, core.FragmentSink) core.StreamResult {
			return core.StreamResult{Err: core.NewRequestError(core.ProviderOpenAI, 401, "bad key", nil)}
		},
	}
	client := dialTestRelay(t, backend)

	res := client.Stream(context.Background(),
		[]core.ChatMessage{{Role: core.RoleUser, Content: "hi"}}, testConfig(), nil)

	require.Error(t, res.Err)
	require.Equal(t, "bad key", res.ErrorMessage())
}

func TestRelay_CancelBeforeFirstFragment(t *testing.T) {
	backendCancelled := make(chan struct{})
	backend := &stubBackend{
		streamFn: func(ctx context.Context, _ []core.ChatMessage, _ dispatch.Config, _ core.FragmentSink) core.StreamResult {
			<-ctx.Done()
			close(backendCancelled)
			return core.StreamResult{Cancelled: true}
		},
	}
	client := dialTestRelay(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var fragments []string
	res := client.Stream(ctx,
		[]core.ChatMessage{{Role: core.RoleUser, Content: "hi"}}, testConfig(),
		func(text string) { fragments = append(fragments, text) })

	// Cancellation is a first-class outcome: not an error, and not an
	// empty success.
	require.True(t, res.Cancelled)
	require.NoError(t, res.Err)
	require.Empty(t, fragments)

	select {
	case <-backendCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never observed the cancellation")
	}
}

func TestRelay_ConcurrentSessionsDemultiplex(t *testing.T) {
	// Each session streams its own prompt back in two fragments; concurrent
	// sessions must not bleed into each other.
	backend := &stubBackend{
		streamFn: func(_ context.Context, messages []core.ChatMessage, _ dispatch.Config, sink core.FragmentSink) core.StreamResult {
			text := messages[0].Content
			sink(text[:1])
			sink(text[1:])
			return core.StreamResult{Text: text}
		},
	}
	client := dialTestRelay(t, backend)

	prompts := []string{"alpha", "bravo", "charlie", "delta"}
	results := make([]core.StreamResult, len(prompts))
	collected := make([][]string, len(prompts))

	var wg sync.WaitGroup
	for i, prompt := range prompts {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			results[i] = client.Stream(context.Background(),
				[]core.ChatMessage{{Role: core.RoleUser, Content: prompt}}, testConfig(),
				func(text string) { collected[i] = append(collected[i], text) })
		}(i, prompt)
	}
	wg.Wait()

	for i, prompt := range prompts {
		require.NoError(t, results[i].Err)
		require.Equal(t, prompt, results[i].Text)
		require.Equal(t, []string{prompt[:1], prompt[1:]}, collected[i])
	}
}

func TestRelay_SlowConsumerLosesNothing(t *testing.T) {
	// The backend outruns the sink by hundreds of frames; every chunk and
	// the terminal frame must still arrive, in order.
	const chunks = 600
	var b strings.Builder
	for i := 0; i < chunks; i++ {
		fmt.Fprintf(&b, "%d;", i)
	}
	want := b.String()

	backend := &stubBackend{
		streamFn: func(_ context.Context, _ []core.ChatMessage, _ dispatch.Config, sink core.FragmentSink) core.StreamResult {
			for i := 0; i < chunks; i++ {
				sink(fmt.Sprintf("%d;", i))
			}
			return core.StreamResult{Text: want}
		},
	}
	client := dialTestRelay(t, backend)

	var fragments []string
	first := true
	done := make(chan core.StreamResult, 1)
	go func() {
		done <- client.Stream(context.Background(),
			[]core.ChatMessage{{Role: core.RoleUser, Content: "hi"}}, testConfig(),
			func(text string) {
				if first {
					// Stall the consumer while the backlog piles up.
					first = false
					time.Sleep(300 * time.Millisecond)
				}
				fragments = append(fragments, text)
			})
	}()

	select {
	case res := <-done:
		require.NoError(t, res.Err)
		require.Equal(t, want, res.Text)
		require.Len(t, fragments, chunks)
		require.Equal(t, want, strings.Join(fragments, ""))
	case <-time.After(10 * time.Second):
		t.Fatal("stream never reached a terminal state")
	}
}

func TestRelay_Complete(t *testing.T) {
	backend := &stubBackend{
		completeFn: func(_ context.Context, messages []core.ChatMessage, _ dispatch.Config) core.StreamResult {
			return core.StreamResult{Text: "answer to " + messages[0].Content}
		},
	}
	client := dialTestRelay(t, backend)

	res := client.Complete(context.Background(),
		[]core.ChatMessage{{Role: core.RoleUser, Content: "q"}}, testConfig())

	require.NoError(t, res.Err)
	require.Equal(t, "answer to q", res.Text)
}

func TestRelay_CompleteError(t *testing.T) {
	backend := &stubBackend{
		completeFn: func(context.Context, []core.ChatMessage, dispatch.Config) core.StreamResult {
			return core.StreamResult{Err: errors.New("upstream unreachable")}
		},
	}
	client := dialTestRelay(t, backend)

	res := client.Complete(context.Background(),
		[]core.ChatMessage{{Role: core.RoleUser, Content: "q"}}, testConfig())

	require.Error(t, res.Err)
	require.Equal(t, "upstream unreachable", res.ErrorMessage())
}

func TestRelay_CompleteErrorWithEmptyMessage(t *testing.T) {
	// Failure is signalled explicitly on the wire, not inferred from a
	// nonempty message; an error whose text is empty must not read as an
	// empty success.
	backend := &stubBackend{
		completeFn: func(context.Context, []core.ChatMessage, dispatch.Config) core.StreamResult {
			return core.StreamResult{Err: errors.New("")}
		},
	}
	client := dialTestRelay(t, backend)

	res := client.Complete(context.Background(),
		[]core.ChatMessage{{Role: core.RoleUser, Content: "q"}}, testConfig())

	require.Error(t, res.Err)
	require.Empty(t, res.Text)
}

func TestRelay_ListModels(t *testing.T) {
	backend := &stubBackend{
		modelsFn: func(_ context.Context, cfg dispatch.Config) ([]string, error) {
			assert.Equal(t, "openai", cfg.Provider)
			return []string{"m1", "m2"}, nil
		},
	}
	client := dialTestRelay(t, backend)

	models, err := client.ListModels(context.Background(), testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, models)
}

func TestRelay_ListModelsError(t *testing.T) {
	backend := &stubBackend{
		modelsFn: func(context.Context, dispatch.Config) ([]string, error) {
			return nil, core.NewNoAPIKeyError("openai")
		},
	}
	client := dialTestRelay(t, backend)

	_, err := client.ListModels(context.Background(), testConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "No API key found for openai")
}

func TestRelay_StreamAfterServerGone(t *testing.T) {
	backend := &stubBackend{
		streamFn: func(context.Context, []core.ChatMessage, dispatch.Config, core.FragmentSink) core.StreamResult {
			return core.StreamResult{Text: "ok"}
		},
	}
	server := httptest.NewServer(NewServer(backend))
	client, err := Dial(server.URL)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	server.CloseClientConnections()
	server.Close()

	// The connection is gone; the call must fail rather than hang.
	done := make(chan core.StreamResult, 1)
	go func() {
		done <- client.Stream(context.Background(),
			[]core.ChatMessage{{Role: core.RoleUser, Content: "hi"}}, testConfig(), nil)
	}()

	select {
	case res := <-done:
		require.Error(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream call hung after connection loss")
	}
}
