// Package main is a command-line client for one-off completions, useful for
// smoke-testing provider configuration and the relay path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lifebow/assistantd/config"
	"github.com/lifebow/assistantd/internal/chat"
	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/logging"
)

func main() {
	provider := flag.String("provider", "", "provider family (openai, anthropic, google); defaults to PROVIDER")
	model := flag.String("model", "", "model override")
	system := flag.String("system", "", "system prompt")
	relayURL := flag.String("relay", "", "relay endpoint; defaults to RELAY_URL, empty for direct calls")
	stream := flag.Bool("stream", true, "stream fragments as they arrive")
	listModels := flag.Bool("models", false, "list the provider's models and exit")
	flag.Parse()

	_ = godotenv.Load() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	logging.Setup(cfg.LogLevel)

	if *relayURL == "" {
		*relayURL = cfg.RelayURL
	}
	completer, err := chat.New(chat.Options{RelayURL: *relayURL})
	if err != nil {
		fatal("connect: %v", err)
	}

	dcfg := cfg.Dispatch(*provider)
	if *model != "" {
		dcfg.Model = *model
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listModels {
		models, err := completer.ListModels(ctx, dcfg)
		if err != nil {
			fatal("list models: %v", err)
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return
	}

	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		fatal("usage: ask [flags] <prompt>")
	}

	var messages []core.ChatMessage
	if *system != "" {
		messages = append(messages, core.ChatMessage{Role: core.RoleSystem, Content: *system})
	}
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: prompt})

	var res core.StreamResult
	if *stream {
		res = completer.Stream(ctx, messages, dcfg, func(text string) {
			fmt.Print(text)
		})
		fmt.Println()
	} else {
		res = completer.Complete(ctx, messages, dcfg)
		if res.Err == nil && !res.Cancelled {
			fmt.Println(res.Text)
		}
	}

	switch {
	case res.Cancelled:
		fmt.Fprintln(os.Stderr, "cancelled")
		os.Exit(130)
	case res.Err != nil:
		fatal("%s", res.ErrorMessage())
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
