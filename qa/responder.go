// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/core"
)

const (
	// DefaultContextChunks is how many chunks are placed in the prompt.
	DefaultContextChunks = 5

	// DefaultSystemPrompt instructs the model to stay within the context.
	DefaultSystemPrompt = "You are a helpful assistant for a website. Answer the question using only " +
		"the numbered context passages. If the context does not contain the answer, say so briefly."

	// NoContextAnswer is returned without calling the model when nothing relevant is stored.
	NoContextAnswer = "I couldn't find any information about that on this website."
)

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEmptyQuestion is returned when the question has no text.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

// Retriever finds chunks relevant to a query. *search.Searcher satisfies it.
type Retriever interface {
	Search(ctx context.Context, collection, query string, limit int) ([]*core.SearchResult, error)
}

// Answer is a generated reply and the chunks it was based on.
type Answer struct {
	Text    string
	Sources []string
	Context []*core.SearchResult
}

// Responder answers questions from retrieved context.
type Responder struct {
	retriever Retriever
	generator ai.Generator
	chunks    int
	system    string
	logger    *slog.Logger
}

// Option configures a Responder.
type Option func(*Responder) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithContextChunks sets how many chunks are retrieved per question.
func WithContextChunks(n int) Option {
	return func(r *Responder) error {
		if n < 1 {
			n = 1
		}
		r.chunks = n
		return nil
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(r *Responder) error {
		if strings.TrimSpace(prompt) == "" {
			prompt = DefaultSystemPrompt
		}
		r.system = prompt
		return nil
	}
}

// NewResponder creates a new responder.
func NewResponder(retriever Retriever, generator ai.Generator, opts ...Option) (*Responder, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	r := &Responder{
		retriever: retriever,
		generator: generator,
		chunks:    DefaultContextChunks,
		system:    DefaultSystemPrompt,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "responder")
	return r, nil
}

// Ask answers question from the chunks stored in collection.
func (r *Responder) Ask(ctx context.Context, collection, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	results, err := r.retriever.Search(ctx, collection, question, r.chunks)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(results) == 0 {
		r.logger.Info("no context found for question", "collection", collection)
		return &Answer{Text: NoContextAnswer}, nil
	}

	text, err := r.generator.Generate(ctx, r.system, BuildPrompt(question, results))
	if err != nil {
		r.logger.Error("error generating answer", "collection", collection, "err", err)
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{
		Text:    strings.TrimSpace(text),
		Sources: sources(results),
		Context: results,
	}, nil
}

// BuildPrompt lays out the numbered context passages followed by the question.
func BuildPrompt(question string, results []*core.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	n := 0
	for _, r := range results {
		if r == nil || r.Point == nil {
			continue
		}
		n++
		fmt.Fprintf(&b, "[%d] %s\n", n, r.Point.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// sources lists the distinct chunk sources in ranking order.
func sources(results []*core.SearchResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		if r == nil || r.Point == nil || r.Point.Source == "" || seen[r.Point.Source] {
			continue
		}
		seen[r.Point.Source] = true
		out = append(out, r.Point.Source)
	}
	return out
}
