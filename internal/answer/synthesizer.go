// Package answer turns resolved context plus a question into a generated
// answer, with the model constrained to the supplied context only.
package answer

import (
	"context"
	"fmt"
)

const (
	// DefaultMaxTokens bounds the generated answer length.
	DefaultMaxTokens = 500

	// DefaultTemperature favors determinism over creativity.
	DefaultTemperature = 0.3
)

// systemInstruction restricts the model to the supplied context, gives it an
// explicit fallback phrase, and asks for concise output.
const systemInstruction = `Answer the question based only on the context below.
If you don't know the answer, say "I don't know".
Keep the answer concise.
Context: %s`

// Generator produces a completion from a system instruction and a user
// message.
type Generator interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// Synthesizer builds context-constrained prompts and obtains answers.
type Synthesizer struct {
	gen         Generator
	temperature float64
	maxTokens   int
}

// NewSynthesizer creates a Synthesizer. Non-positive temperature and
// maxTokens fall back to the defaults.
func NewSynthesizer(gen Generator, temperature float64, maxTokens int) *Synthesizer {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Synthesizer{gen: gen, temperature: temperature, maxTokens: maxTokens}
}

// Synthesize asks the model the question grounded in docContext. Generation
// failures propagate unchanged to the caller; there is no silent empty
// answer.
func (s *Synthesizer) Synthesize(ctx context.Context, question, docContext string) (string, error) {
	system := fmt.Sprintf(systemInstruction, docContext)

	answer, err := s.gen.Complete(ctx, system, question, s.temperature, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return answer, nil
}
