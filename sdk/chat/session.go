package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defPieceSize = 256

// SessionConfig represents the settings for a session.
//
// SystemPrompt is an optional message placed at the start of the
// conversation. It survives a context overflow.
//
// MaxTokens caps the number of tokens generated for a single response. When
// set to 0 the response ends at end-of-generation or when the context is full.
//
// Notices receives messages meant for the person at the console, such as the
// history being cleared.
type SessionConfig struct {
	Log          Logger
	Notices      io.Writer
	SystemPrompt string
	MaxTokens    int
}

// Session holds a conversation with a model. A session owns the engine's
// context while it is in use and is not safe for concurrent use.
type Session struct {
	id        string
	inf       Inference
	fmtr      Formatter
	log       Logger
	notices   io.Writer
	system    string
	maxTokens int
	history   History
	nCtx      int
	nUsed     int
	prevLen   int
	piece     []byte
}

// NewSession constructs a session over the specified engine and formatter.
func NewSession(inf Inference, fmtr Formatter, cfg SessionConfig) *Session {
	l := cfg.Log
	if l == nil {
		l = func(ctx context.Context, msg string, args ...any) {}
	}

	notices := cfg.Notices
	if notices == nil {
		notices = io.Discard
	}

	s := Session{
		id:        uuid.NewString(),
		inf:       inf,
		fmtr:      fmtr,
		log:       l,
		notices:   notices,
		system:    cfg.SystemPrompt,
		maxTokens: cfg.MaxTokens,
		nCtx:      inf.ContextSize(),
		piece:     make([]byte, defPieceSize),
	}

	s.seedHistory()

	return &s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the conversation.
func (s *Session) History() []Message {
	return s.history.Messages()
}

// ContextUsed returns the number of tokens held in the engine's context.
func (s *Session) ContextUsed() int {
	return s.nUsed
}

// Reset clears the conversation and the engine's context.
func (s *Session) Reset() {
	s.clearContext()
	s.history.Reset()
	s.seedHistory()
}

// Turn adds the user input to the conversation and streams the model's
// response to w. If the conversation no longer fits in the context, the
// history is cleared down to the latest user message and the context is
// rebuilt from it.
func (s *Session) Turn(ctx context.Context, input string, w io.Writer) (Result, error) {
	id := uuid.NewString()

	s.history.Add(UserMessage(input))

	tokens, err := s.promptTokens()
	if err != nil {
		s.history.RemoveLast()
		return Result{}, fmt.Errorf("turn: %w", err)
	}

	// -------------------------------------------------------------------------

	var historyReset bool

	if s.nUsed+len(tokens) > s.nCtx {
		fmt.Fprintln(s.notices, "Context size exceeded, clearing conversation history")
		s.log(ctx, "chat-turn", "status", "context size exceeded, clearing conversation history", "session", s.id, "id", id, "used", s.nUsed, "prompt", len(tokens), "window", s.nCtx)

		s.clearContext()
		s.keepLatest()
		historyReset = true

		tokens, err = s.promptTokens()
		if err != nil {
			s.history.RemoveLast()
			return Result{}, fmt.Errorf("turn: %w", err)
		}

		if len(tokens) > s.nCtx {
			s.history.RemoveLast()
			return Result{}, fmt.Errorf("turn: %w: prompt tokens %d, context window %d", ErrPromptTooLarge, len(tokens), s.nCtx)
		}
	}

	// -------------------------------------------------------------------------

	if err := s.inf.Decode(tokens); err != nil {
		s.history.RemoveLast()

		// A partly decoded prompt no longer lines up with the history.
		if s.inf.ContextUsed() != s.nUsed {
			s.clearContext()
		}

		return Result{}, fmt.Errorf("turn: %w: %w", ErrDecode, err)
	}

	s.nUsed = s.inf.ContextUsed()

	s.log(ctx, "chat-turn", "status", "prompt decoded", "session", s.id, "id", id, "prompt", len(tokens), "used", s.nUsed)

	// -------------------------------------------------------------------------

	content, reason, usage := s.generate(ctx, id, w)
	usage.PromptTokens = len(tokens)

	s.history.Add(AssistantMessage(content))
	s.markFormatted(ctx, id)

	res := Result{
		ID:           id,
		Content:      content,
		FinishReason: reason,
		HistoryReset: historyReset,
		Usage:        usage,
	}

	s.log(ctx, "chat-turn", "status", "final", "session", s.id, "id", id, "finish", reason, "output", usage.OutputTokens, "used", s.nUsed, "tps", fmt.Sprintf("%.2f", usage.TokensPerSecond))

	return res, nil
}

// Complete continues the specified text without applying a chat template.
// The conversation and the engine's context are cleared first.
func (s *Session) Complete(ctx context.Context, text string, w io.Writer) (Result, error) {
	id := uuid.NewString()

	s.Reset()

	tokens := s.inf.Tokenize(text, true, true)
	if len(tokens) == 0 {
		return Result{}, fmt.Errorf("complete: %w", ErrTokenize)
	}

	if len(tokens) > s.nCtx {
		return Result{}, fmt.Errorf("complete: %w: prompt tokens %d, context window %d", ErrPromptTooLarge, len(tokens), s.nCtx)
	}

	if err := s.inf.Decode(tokens); err != nil {
		s.clearContext()
		return Result{}, fmt.Errorf("complete: %w: %w", ErrDecode, err)
	}

	s.nUsed = s.inf.ContextUsed()

	content, reason, usage := s.generate(ctx, id, w)
	usage.PromptTokens = len(tokens)

	s.log(ctx, "chat-complete", "status", "final", "session", s.id, "id", id, "finish", reason, "output", usage.OutputTokens)

	res := Result{
		ID:           id,
		Content:      content,
		FinishReason: reason,
		Usage:        usage,
	}

	return res, nil
}

// =============================================================================

// promptTokens formats the conversation and tokenizes the part of it the
// engine has not seen yet. Special tokens are only added when the engine's
// context is empty.
func (s *Session) promptTokens() ([]Token, error) {
	formatted, err := s.fmtr.Format(s.history.Messages(), true)
	if err != nil {
		return nil, err
	}

	prompt := formatted
	if s.prevLen <= len(formatted) {
		prompt = formatted[s.prevLen:]
	}

	tokens := s.inf.Tokenize(prompt, s.nUsed == 0, true)
	if len(tokens) == 0 {
		return nil, ErrTokenize
	}

	return tokens, nil
}

// markFormatted records the formatted length of the conversation so the next
// turn only sends what was added after it. If that fails the context is
// cleared and the next turn sends the whole conversation.
func (s *Session) markFormatted(ctx context.Context, id string) {
	formatted, err := s.fmtr.Format(s.history.Messages(), false)
	if err != nil {
		s.log(ctx, "chat-turn", "status", "ERROR", "msg", err, "session", s.id, "id", id)

		s.clearContext()
		return
	}

	s.prevLen = len(formatted)
}

func (s *Session) generate(ctx context.Context, id string, w io.Writer) (string, string, Usage) {
	if w == nil {
		w = io.Discard
	}

	var content strings.Builder
	var outputTokens int
	reason := FinishReasonStop

	start := time.Now()

loop:
	for {
		if s.maxTokens > 0 && outputTokens >= s.maxTokens {
			reason = FinishReasonLength
			break loop
		}

		select {
		case <-ctx.Done():
			reason = FinishReasonCanceled
			break loop

		default:
		}

		token := s.inf.Sample()
		if s.inf.IsEOG(token) {
			break loop
		}

		piece, err := s.tokenToPiece(token)
		if err != nil {
			s.log(ctx, "chat-generate", "status", "ERROR", "msg", err, "session", s.id, "id", id)
			reason = FinishReasonError
			break loop
		}

		if _, err := io.WriteString(w, piece); err != nil {
			s.log(ctx, "chat-generate", "status", "ERROR", "msg", err, "session", s.id, "id", id)
			reason = FinishReasonError
			break loop
		}

		content.WriteString(piece)
		outputTokens++

		if s.nUsed+1 > s.nCtx {
			reason = FinishReasonContext
			break loop
		}

		if err := s.inf.Decode([]Token{token}); err != nil {
			s.log(ctx, "chat-generate", "status", "ERROR", "msg", fmt.Errorf("%w: %w", ErrDecode, err), "session", s.id, "id", id)
			reason = FinishReasonError
			break loop
		}

		s.nUsed++
	}

	s.nUsed = s.inf.ContextUsed()

	var tps float64
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		tps = float64(outputTokens) / elapsed
	}

	usage := Usage{
		OutputTokens:    outputTokens,
		ContextTokens:   s.nUsed,
		ContextWindow:   s.nCtx,
		TokensPerSecond: tps,
	}

	return content.String(), reason, usage
}

func (s *Session) tokenToPiece(token Token) (string, error) {
	n := s.inf.TokenToPiece(token, s.piece)

	// A negative length is the size the piece needs.
	if n < 0 {
		s.piece = make([]byte, -n)
		n = s.inf.TokenToPiece(token, s.piece)
	}

	if n < 0 || n > len(s.piece) {
		return "", fmt.Errorf("token-to-piece: failed to convert token %d to piece", token)
	}

	return string(s.piece[:n]), nil
}

func (s *Session) seedHistory() {
	if s.system != "" {
		s.history.Add(Message{Role: RoleSystem, Content: s.system})
	}
}

func (s *Session) clearContext() {
	s.inf.ClearMemory()
	s.nUsed = 0
	s.prevLen = 0
}

// keepLatest cuts the history down to the system prompt and the latest
// message.
func (s *Session) keepLatest() {
	var head int
	if s.system != "" {
		head = 1
	}

	s.history.KeepLast(head)
}
