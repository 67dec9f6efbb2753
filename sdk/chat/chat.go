// Package chat provides the driver logic that sequences calls into an
// inference engine to hold a conversation or complete a single prompt.
package chat

import (
	"context"
	"errors"
)

// Token is a vocabulary entry identifier owned by the inference engine.
type Token int32

// Logger provides a function for logging messages from different APIs.
type Logger func(ctx context.Context, msg string, args ...any)

// Set of errors returned by a session. A failed turn never keeps the user
// message. When the failure comes after a context overflow, the history has
// already been cut down and the engine's context cleared.
var (
	ErrTemplate       = errors.New("failed to apply the chat template")
	ErrTokenize       = errors.New("failed to tokenize the prompt")
	ErrDecode         = errors.New("failed to decode")
	ErrPromptTooLarge = errors.New("prompt exceeds the context window")
)

// Templater applies a chat template to a conversation. The formatted prompt is
// written into buf and the length required to hold the full prompt is
// returned, which can be larger than buf. A negative value reports failure.
type Templater interface {
	ApplyTemplate(template string, messages []Message, addAssistant bool, buf []byte) int
}

// Inference is the set of engine calls a session sequences. Implementations
// wrap a loaded model, its context and a sampler chain.
type Inference interface {
	Templater
	ChatTemplate() string
	Tokenize(text string, addSpecial bool, parseSpecial bool) []Token
	ContextSize() int
	ContextUsed() int
	Decode(tokens []Token) error
	ClearMemory()
	Sample() Token
	IsEOG(token Token) bool
	TokenToPiece(token Token, buf []byte) int
}

// =============================================================================

// FinishReasons represent the different reasons a response can be finished.
const (
	FinishReasonStop     = "stop"
	FinishReasonLength   = "length"
	FinishReasonContext  = "context"
	FinishReasonCanceled = "canceled"
	FinishReasonError    = "error"
)

// Usage provides details usage information for a response.
type Usage struct {
	PromptTokens    int
	OutputTokens    int
	ContextTokens   int
	ContextWindow   int
	TokensPerSecond float64
}

// Result represents the outcome of a single turn or completion.
type Result struct {
	ID           string
	Content      string
	FinishReason string
	HistoryReset bool
	Usage        Usage
}
