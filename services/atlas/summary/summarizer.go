// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package summary produces optional prose summaries of graph diffs.
//
// The summary is decoration: any failure here leaves the diff fully
// usable and is reported as an error for the caller to log, never to
// surface as a load failure.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/cartomind/cartograph/services/atlas/graph"
)

const (
	defaultModel = "gpt-4o-mini"

	systemPrompt = "You summarize knowledge graph changes for analysts. " +
		"Write two sentences at most. Name the most significant added or " +
		"removed entities; do not enumerate every change."

	// maxItemsInPrompt caps how many changed entities the prompt lists
	// so a huge diff does not blow the token budget.
	maxItemsInPrompt = 40
)

// chatCompleter is the slice of the OpenAI client the summarizer uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Summarizer turns a classified diff into a short prose description.
type Summarizer struct {
	client chatCompleter
	model  string
	logger *slog.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(s *Summarizer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) { s.logger = l }
}

// New creates a summarizer backed by the OpenAI API.
func New(apiKey string, opts ...Option) (*Summarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("summary: api key is required")
	}
	s := &Summarizer{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Summarize describes what changed between the diff's two versions.
//
// Returns an empty string without calling the model when nothing
// changed.
func (s *Summarizer) Summarize(ctx context.Context, diff graph.DiffResult) (string, error) {
	prompt := buildPrompt(diff)
	if prompt == "" {
		return "", nil
	}

	s.logger.Debug("requesting diff summary",
		"model", s.model,
		"base_version", diff.BaseVersion,
		"compare_version", diff.CompareVersion)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildPrompt lists the changed entities, or returns "" for an empty
// diff.
func buildPrompt(diff graph.DiffResult) string {
	var b strings.Builder
	items := 0

	add := func(kind string, name string, change graph.ChangeType) {
		if change == graph.ChangeUnchanged || items >= maxItemsInPrompt {
			return
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", change, kind, name)
		items++
	}

	for _, n := range diff.Nodes {
		add("node", n.DisplayName(), n.Change)
	}
	for _, e := range diff.Edges {
		if e.Synthetic {
			continue
		}
		add("edge", fmt.Sprintf("%s -%s-> %s", e.Source, e.Type, e.Target), e.Change)
	}

	if items == 0 {
		return ""
	}

	header := fmt.Sprintf("Changes between graph versions %s and %s:\n",
		diff.BaseVersion, diff.CompareVersion)
	return header + b.String()
}
