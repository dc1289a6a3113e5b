package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// templatePrompts is the built-in prompt backend: a deterministic template
// expansion, useful for demos and integration tests. Production deployments
// inject a real model behind types.PromptGenerator.
type templatePrompts struct{}

func (templatePrompts) GeneratePrompt(_ context.Context, topic, style, extra string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("topic is empty")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A detailed, high-resolution illustration of %s", topic)
	if style != "" {
		fmt.Fprintf(&b, " in the style of %s", style)
	}
	if extra != "" {
		fmt.Fprintf(&b, ". %s", extra)
	}
	return b.String(), nil
}

// placeholderImages returns a stable placeholder URL keyed by the prompt.
type placeholderImages struct{}

func (placeholderImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return "https://placehold.example/render?prompt=" + url.QueryEscape(prompt), nil
}
