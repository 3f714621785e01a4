// ABOUTME: Streaming command-line client for the gateway.
// ABOUTME: Sends one prompt and prints deltas as they arrive.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/prismgate/prism-gateway/pkg/client"
)

type imageList []string

func (l *imageList) String() string { return strings.Join(*l, ",") }

func (l *imageList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		baseURL = flag.String("base-url", client.DefaultBaseURL, "gateway base URL")
		modelID = flag.String("model", "echo:default", "model identifier, e.g. openai:gpt-5-nano")
		quiet   = flag.Bool("quiet", false, "print only the response text")
		images  imageList
	)
	flag.Var(&images, "image", "attach a local image file (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: prism-ask [flags] <prompt>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	prompt := strings.Join(flag.Args(), " ")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *baseURL, *modelID, prompt, images, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, baseURL, modelID, prompt string, images []string, quiet bool) error {
	msg, err := client.BuildUserMessage(prompt, images...)
	if err != nil {
		return err
	}

	c := client.New(baseURL)
	req := &client.Request{
		Model: modelID,
		Input: []client.Message{msg},
	}

	gray := color.New(color.FgHiBlack)
	var usage map[string]any
	var traceID string

	err = c.Stream(ctx, req, func(ev client.Event) error {
		switch ev.Name {
		case "response.output_text.delta":
			for _, chunk := range deltaText(ev.Data) {
				fmt.Print(chunk)
			}
		case "response.completed":
			fmt.Println()
			if tid, ok := ev.Data["trace_id"].(string); ok {
				traceID = tid
			}
			if r, ok := ev.Data["response"].(map[string]any); ok {
				usage, _ = r["usage"].(map[string]any)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !quiet {
		if usage != nil {
			gray.Fprintf(os.Stderr, "usage: %v\n", usage)
		}
		if traceID != "" {
			gray.Fprintf(os.Stderr, "trace: %s\n", traceID)
		}
	}
	return nil
}

func deltaText(data map[string]any) []string {
	items, ok := data["output_text"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
