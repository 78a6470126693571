// Package rag composes retrieval and generation into the answering flow.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/boovboyz/azurerag/internal/auth"
	"github.com/boovboyz/azurerag/internal/search"
)

const systemPrompt = "You are a helpful assistant.\n" +
	"Answer the question ONLY using the context below.\n" +
	"If the answer is not in the context, say \"I don't know\"."

// Embedder turns a question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the final answer from a system and user message.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Chain answers questions over the document corpus.
type Chain struct {
	embedder  Embedder
	store     search.Store
	generator Generator
	topK      int
}

// NewChain wires a chain over the given store and models.
func NewChain(embedder Embedder, store search.Store, generator Generator, topK int) *Chain {
	if topK <= 0 {
		topK = 5
	}
	return &Chain{
		embedder:  embedder,
		store:     store,
		generator: generator,
		topK:      topK,
	}
}

// Answer runs the unsecured flow: retrieval happens with no filter at
// all, so every stored unit is a candidate regardless of its tags.
func (c *Chain) Answer(ctx context.Context, question string) (string, error) {
	return c.answer(ctx, question, nil)
}

// AnswerSecure runs the permission-aware flow. Retrieval only sees units
// tagged with at least one of the caller's principals; a caller with no
// principals retrieves nothing.
func (c *Chain) AnswerSecure(ctx context.Context, question string, principals auth.PrincipalSet) (string, error) {
	filter := search.BuildFilter(principals)
	return c.answer(ctx, question, &filter)
}

func (c *Chain) answer(ctx context.Context, question string, filter *search.Filter) (string, error) {
	vector, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	units, err := c.store.Search(ctx, vector, c.topK, filter)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}

	// Zero retrieved units is not an error. The flow proceeds with an
	// empty context and the model answers "I don't know".
	user := fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", composeContext(units), question)

	answer, err := c.generator.Complete(ctx, systemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func composeContext(units []search.Unit) string {
	parts := make([]string, 0, len(units))
	for _, u := range units {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, "\n\n")
}
