// Package engine wraps the llama.cpp library calls needed to hold a
// conversation with a model: loading, context creation, templating,
// tokenization, decoding and sampling.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/llamachat/sdk/chat"
	"github.com/hybridgroup/yzma/pkg/llama"
)

const defTemplate = "chatml"

// Set of errors returned while building an engine.
var (
	ErrLoad    = errors.New("load failed")
	ErrContext = errors.New("context creation failed")
)

// Engine owns a loaded model, a context and a sampler chain. It implements
// chat.Inference and is not safe for concurrent use.
type Engine struct {
	cfg       Config
	log       Logger
	model     llama.Model
	vocab     llama.Vocab
	lctx      llama.Context
	mem       llama.Memory
	sampler   llama.Sampler
	template  string
	modelInfo ModelInfo
}

// New loads the model and creates the context and sampler chain. Init must be
// called first.
func New(cfg Config) (*Engine, error) {
	if libraryLocation == "" {
		return nil, fmt.Errorf("new: the library has not been initialized, call Init first")
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("new: unable to validate config: %w", err)
	}

	cfg = adjustConfig(cfg)

	l := cfg.Log
	if l == nil {
		l = func(ctx context.Context, msg string, args ...any) {}
	}

	// -------------------------------------------------------------------------

	mparams, err := modelParams(cfg)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	l(context.Background(), "engine-new", "status", "loading model", "model-file", cfg.ModelFile, "gpu-layers", cfg.GPULayers)

	mdl, err := llama.ModelLoadFromFile(cfg.ModelFile, mparams)
	if err != nil {
		return nil, fmt.Errorf("new: %w: %q: %w", ErrLoad, cfg.ModelFile, err)
	}

	vocab := llama.ModelGetVocab(mdl)

	// -------------------------------------------------------------------------

	lctx, err := llama.InitFromModel(mdl, ctxParams(cfg))
	if err != nil {
		llama.ModelFree(mdl)
		return nil, fmt.Errorf("new: %w: %w", ErrContext, err)
	}

	mem, err := llama.GetMemory(lctx)
	if err != nil {
		llama.Free(lctx)
		llama.ModelFree(mdl)
		return nil, fmt.Errorf("new: %w: unable to get memory: %w", ErrContext, err)
	}

	// The library can round the window, so read back what it created.
	cfg.ContextWindow = int(llama.NCtx(lctx))

	// -------------------------------------------------------------------------

	e := Engine{
		cfg:       cfg,
		log:       l,
		model:     mdl,
		vocab:     vocab,
		lctx:      lctx,
		mem:       mem,
		sampler:   newSampler(cfg.Sampler),
		template:  chatTemplate(mdl),
		modelInfo: newModelInfo(cfg, mdl),
	}

	l(context.Background(), "engine-new", "status", "model loaded", "desc", e.modelInfo.Desc, "context-window", cfg.ContextWindow, "model-template", e.template != defTemplate)

	return &e, nil
}

// Unload releases the sampler chain, the context and the model in that order.
func (e *Engine) Unload() {
	llama.SamplerFree(e.sampler)

	llama.Synchronize(e.lctx)
	llama.Free(e.lctx)

	llama.ModelFree(e.model)
	llama.BackendFree()
}

// ModelInfo returns the model's card information.
func (e *Engine) ModelInfo() ModelInfo {
	return e.modelInfo
}

// =============================================================================

// ChatTemplate implements chat.Inference. Models without a template fall back
// to the library's built-in chatml template.
func (e *Engine) ChatTemplate() string {
	return e.template
}

// ApplyTemplate implements chat.Templater.
func (e *Engine) ApplyTemplate(template string, messages []chat.Message, addAssistant bool, buf []byte) int {
	msgs := make([]llama.ChatMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = llama.NewChatMessage(msg.Role, msg.Content)
	}

	return int(llama.ChatApplyTemplate(template, msgs, addAssistant, buf))
}

// Tokenize implements chat.Inference.
func (e *Engine) Tokenize(text string, addSpecial bool, parseSpecial bool) []chat.Token {
	tokens := llama.Tokenize(e.vocab, text, addSpecial, parseSpecial)

	out := make([]chat.Token, len(tokens))
	for i, t := range tokens {
		out[i] = chat.Token(t)
	}

	return out
}

// ContextSize implements chat.Inference.
func (e *Engine) ContextSize() int {
	return e.cfg.ContextWindow
}

// ContextUsed implements chat.Inference by reading the highest position held
// in the KV cache for the single sequence in use.
func (e *Engine) ContextUsed() int {
	return int(llama.MemorySeqPosMax(e.mem, 0)) + 1
}

// Decode implements chat.Inference. The tokens are decoded as one batch.
func (e *Engine) Decode(tokens []chat.Token) error {
	if len(tokens) == 0 {
		return nil
	}

	lt := make([]llama.Token, len(tokens))
	for i, t := range tokens {
		lt[i] = llama.Token(t)
	}

	ret, err := llama.Decode(e.lctx, llama.BatchGetOne(lt))
	if err != nil {
		return fmt.Errorf("decode: decode failed: %w", err)
	}

	if ret != 0 {
		return fmt.Errorf("decode: decode failed: returned %d", ret)
	}

	return nil
}

// ClearMemory implements chat.Inference by clearing the KV cache.
func (e *Engine) ClearMemory() {
	llama.MemoryClear(e.mem, true)
}

// Sample implements chat.Inference.
func (e *Engine) Sample() chat.Token {
	return chat.Token(llama.SamplerSample(e.sampler, e.lctx, -1))
}

// IsEOG implements chat.Inference.
func (e *Engine) IsEOG(token chat.Token) bool {
	return llama.VocabIsEOG(e.vocab, llama.Token(token))
}

// TokenToPiece implements chat.Inference. Special tokens are rendered.
func (e *Engine) TokenToPiece(token chat.Token, buf []byte) int {
	return int(llama.TokenToPiece(e.vocab, llama.Token(token), buf, 0, true))
}

// =============================================================================

func chatTemplate(mdl llama.Model) string {
	template := llama.ModelChatTemplate(mdl, "")
	if template == "" {
		template, _ = llama.ModelMetaValStr(mdl, "tokenizer.chat_template")
	}

	if template == "" {
		template = defTemplate
	}

	return template
}
