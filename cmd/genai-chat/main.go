// genai-chat is a small command-line front-end for OCI Generative AI.
//
// It reads configuration from an optional YAML file, .env files and the
// environment (see package config), then runs one of:
//
//	genai-chat chat   [flags] PROMPT    send a prompt and print the reply
//	genai-chat stream [flags] PROMPT    print the reply as it arrives
//	genai-chat models [flags]           list models usable in the compartment
//	genai-chat embed  [flags] TEXT...   print one embedding summary per input
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/leofalp/ocigenai/config"
	"github.com/leofalp/ocigenai/core/client"
	"github.com/leofalp/ocigenai/core/client/middleware"
	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/ai/ocigenai"
	obsslog "github.com/leofalp/ocigenai/providers/observability/slog"
)

const defaultChatModel = "cohere.command-r-plus"

type options struct {
	configPath  string
	envFiles    []string
	model       string
	system      string
	logLevel    string
	logDetail   string
	jsonOutput  bool
	maxTokens   int
	temperature float64
	embedModel  string
	embedInput  string
	timeout     time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return errors.New("missing command")
	}
	command, args := args[0], args[1:]

	var opts options
	flagSet := pflag.NewFlagSet("genai-chat "+command, pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flagSet.StringVarP(&opts.model, "model", "m", "", "model id (default from config, then "+defaultChatModel+")")
	flagSet.StringVarP(&opts.system, "system", "s", "", "system prompt")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn or error (default from OCI_GENAI_LOG_LEVEL or LOG_LEVEL)")
	flagSet.StringVar(&opts.logDetail, "log-detail", "minimal", "request logging detail: minimal, standard or verbose")
	flagSet.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	flagSet.IntVar(&opts.maxTokens, "max-tokens", 0, "maximum output tokens (0 leaves the model default)")
	flagSet.Float64Var(&opts.temperature, "temperature", -1, "sampling temperature (negative leaves the model default)")
	flagSet.StringVar(&opts.embedModel, "embed-model", "cohere.embed-english-v3.0", "embedding model for the embed command")
	flagSet.StringVar(&opts.embedInput, "input-type", "SEARCH_DOCUMENT", "embedding input type")
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "deadline for the whole chat call (default derived from the configured timeout and retries)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(os.Stderr)
		}
		return err
	}

	logger := newLogger(opts.logLevel)

	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	provider := cfg.NewProvider(cfg.NewInvoker(nil), logger)
	genai, err := client.New(provider,
		client.WithDefaultModel(firstNonEmpty(opts.model, cfg.Model, defaultChatModel)),
		client.WithSystemPrompt(opts.system),
		client.WithObserver(obsslog.New(logger)),
		client.WithMiddleware(
			middleware.NewTimeoutMiddleware(callTimeout(opts, cfg)),
			middleware.NewLoggingMiddleware(logger, middleware.ParseLogLevel(opts.logDetail)),
		),
	)
	if err != nil {
		return err
	}

	positional := flagSet.Args()
	switch command {
	case "chat":
		return runChat(ctx, genai, buildRequest(opts, positional), opts.jsonOutput, out)
	case "stream":
		return runStream(ctx, genai, buildRequest(opts, positional), out)
	case "models":
		return runModels(ctx, provider, opts.jsonOutput, out)
	case "embed":
		return runEmbed(ctx, genai, opts, positional, out)
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}

func buildRequest(opts options, positional []string) ai.ChatRequest {
	request := ai.ChatRequest{
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, strings.Join(positional, " "))},
	}

	var generation ai.GenerationConfig
	if opts.maxTokens > 0 {
		generation.MaxOutputTokens = &opts.maxTokens
	}
	if opts.temperature >= 0 {
		generation.Temperature = &opts.temperature
	}
	if generation.MaxOutputTokens != nil || generation.Temperature != nil {
		request.GenerationConfig = &generation
	}
	return request
}

// callTimeout prefers --timeout over the bound derived from configuration.
// Zero disables the deadline.
func callTimeout(opts options, cfg *config.Config) time.Duration {
	if opts.timeout > 0 {
		return opts.timeout
	}
	return cfg.CallTimeout()
}

func runChat(ctx context.Context, genai *client.Client, request ai.ChatRequest, jsonOutput bool, out io.Writer) error {
	response, err := genai.SendMessage(ctx, request)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, response)
	}

	fmt.Fprintln(out, response.Content)
	for _, toolCall := range response.ToolCalls {
		fmt.Fprintf(out, "tool call %s: %s(%s)\n", toolCall.ID, toolCall.Function.Name, toolCall.Function.Arguments)
	}
	return nil
}

func runStream(ctx context.Context, genai *client.Client, request ai.ChatRequest, out io.Writer) error {
	stream, err := genai.StreamMessage(ctx, request)
	if err != nil {
		return err
	}

	for event, err := range stream.Iter() {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}

		switch event.Type {
		case ai.StreamEventTextDelta:
			fmt.Fprint(out, event.Content)
		case ai.StreamEventToolCallDelta:
			if event.ToolCall != nil && event.ToolCall.Name != "" {
				fmt.Fprintf(out, "\n[tool call %s]", event.ToolCall.Name)
			}
		case ai.StreamEventFinish:
			fmt.Fprintf(out, "\n[%s]\n", event.FinishReason)
		}
	}
	return nil
}

func runModels(ctx context.Context, provider *ocigenai.Provider, jsonOutput bool, out io.Writer) error {
	listing := provider.ListModels(ctx)
	if listing.IsFallback {
		fmt.Fprintf(os.Stderr, "warning: live listing failed, showing built-in registry: %v\n", listing.Err)
	}

	if jsonOutput {
		return writeJSON(out, listing.Items)
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tFAMILY\tKIND\tNAME")
	for _, model := range listing.Items {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", model.ID, model.Family, model.Kind, model.DisplayName)
	}
	return writer.Flush()
}

func runEmbed(ctx context.Context, genai *client.Client, opts options, inputs []string, out io.Writer) error {
	response, err := genai.Embed(ctx, ai.EmbedRequest{
		Model:     opts.embedModel,
		Inputs:    inputs,
		InputType: opts.embedInput,
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return writeJSON(out, response)
	}

	for i, vector := range response.Embeddings {
		preview := vector[:min(4, len(vector))]
		fmt.Fprintf(out, "%d\tdim=%d\t%v...\n", i, len(vector), preview)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	logLevel := obsslog.GetLogLevelFromEnv()
	if level != "" {
		logLevel = obsslog.ParseLogLevel(level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: genai-chat COMMAND [flags] [ARGS]

Commands:
  chat PROMPT      send a prompt and print the reply
  stream PROMPT    stream the reply as it arrives
  models           list models usable in the compartment
  embed TEXT...    embed each argument

Run "genai-chat COMMAND --help" for flags.
`)
}
