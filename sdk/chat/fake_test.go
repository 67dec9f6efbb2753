package chat_test

import (
	"errors"
	"strings"

	"github.com/ardanlabs/llamachat/sdk/chat"
)

const (
	tokenBOS chat.Token = 1
	tokenEOG chat.Token = 2
)

type tokenizeCall struct {
	text       string
	addSpecial bool
}

// fakeEngine maps every rune to one token and renders messages as
// <role>content</role>, which keeps token math easy to follow in tests.
type fakeEngine struct {
	nCtx         int
	samples      []chat.Token
	pieces       map[chat.Token]string
	failTemplate bool
	failTokenize bool
	failDecode   bool

	// failDecodeAt fails only the nth decode call, counting from 1. With
	// partialDecode set a failing call still fills half of its tokens.
	failDecodeAt  int
	partialDecode bool

	tokenizeCalls []tokenizeCall
	decoded       [][]chat.Token
	decodeCalls   int
	used          int
	clears        int
}

func newFakeEngine(nCtx int, output string) *fakeEngine {
	var samples []chat.Token
	for _, r := range output {
		samples = append(samples, chat.Token(r))
	}

	return &fakeEngine{
		nCtx:    nCtx,
		samples: samples,
		pieces:  make(map[chat.Token]string),
	}
}

func (f *fakeEngine) ApplyTemplate(template string, messages []chat.Message, addAssistant bool, buf []byte) int {
	if f.failTemplate {
		return -1
	}

	s := render(messages, addAssistant)
	copy(buf, s)

	return len(s)
}

func (f *fakeEngine) ChatTemplate() string {
	return "fake"
}

func (f *fakeEngine) Tokenize(text string, addSpecial bool, parseSpecial bool) []chat.Token {
	f.tokenizeCalls = append(f.tokenizeCalls, tokenizeCall{text: text, addSpecial: addSpecial})

	if f.failTokenize {
		return nil
	}

	var tokens []chat.Token
	if addSpecial {
		tokens = append(tokens, tokenBOS)
	}

	for _, r := range text {
		tokens = append(tokens, chat.Token(r))
	}

	return tokens
}

func (f *fakeEngine) ContextSize() int {
	return f.nCtx
}

func (f *fakeEngine) ContextUsed() int {
	return f.used
}

func (f *fakeEngine) Decode(tokens []chat.Token) error {
	f.decodeCalls++

	if f.failDecode || f.decodeCalls == f.failDecodeAt {
		if f.partialDecode {
			f.used += len(tokens) / 2
		}

		return errors.New("decode: out of memory")
	}

	f.decoded = append(f.decoded, tokens)
	f.used += len(tokens)

	return nil
}

func (f *fakeEngine) ClearMemory() {
	f.clears++
	f.used = 0
}

func (f *fakeEngine) Sample() chat.Token {
	if len(f.samples) == 0 {
		return tokenEOG
	}

	t := f.samples[0]
	f.samples = f.samples[1:]

	return t
}

func (f *fakeEngine) IsEOG(token chat.Token) bool {
	return token == tokenEOG
}

func (f *fakeEngine) TokenToPiece(token chat.Token, buf []byte) int {
	piece, ok := f.pieces[token]
	if !ok {
		piece = string(rune(token))
	}

	if len(piece) > len(buf) {
		return -len(piece)
	}

	return copy(buf, piece)
}

func (f *fakeEngine) lastTokenize() tokenizeCall {
	if len(f.tokenizeCalls) == 0 {
		return tokenizeCall{}
	}

	return f.tokenizeCalls[len(f.tokenizeCalls)-1]
}

func render(messages []chat.Message, addAssistant bool) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString("<" + msg.Role + ">" + msg.Content + "</" + msg.Role + ">")
	}

	if addAssistant {
		b.WriteString("<assistant>")
	}

	return b.String()
}
