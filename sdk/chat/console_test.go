package chat_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ardanlabs/llamachat/sdk/chat"
	"github.com/google/go-cmp/cmp"
)

func newConsole(input string, stats bool) (*chat.Console, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer

	c := chat.Console{
		In:    strings.NewReader(input),
		Out:   &out,
		Err:   &errOut,
		Stats: stats,
	}

	return &c, &out, &errOut
}

func Test_ConsoleChat(t *testing.T) {
	table := []struct {
		name  string
		input string
		exp   string
	}{
		{
			name:  "exit",
			input: "hi\n\nexit\nnever read\n",
			exp:   "Conversation started. Type 'exit' to end.\nUser: AI: ok\n\nUser: User: ",
		},
		{
			name:  "quit",
			input: "  quit  \n",
			exp:   "Conversation started. Type 'exit' to end.\nUser: ",
		},
		{
			name:  "eof",
			input: "hi",
			exp:   "Conversation started. Type 'exit' to end.\nUser: AI: ok\n\nUser: \n",
		},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine(512, "ok")
			s := newSession(eng, chat.SessionConfig{})

			c, out, _ := newConsole(tt.input, false)

			if err := c.Chat(context.Background(), s); err != nil {
				t.Fatalf("chat: %v", err)
			}

			if diff := cmp.Diff(tt.exp, out.String()); diff != "" {
				t.Errorf("wrong output (-exp +got):\n%s", diff)
			}
		})
	}
}

func Test_ConsoleChatContinuesOnError(t *testing.T) {
	eng := newFakeEngine(512, "ok")
	eng.failDecode = true

	s := newSession(eng, chat.SessionConfig{})
	c, out, errOut := newConsole("hi\nagain\n", false)

	if err := c.Chat(context.Background(), s); err != nil {
		t.Fatalf("chat: %v", err)
	}

	if got := strings.Count(errOut.String(), "ERROR: turn: failed to decode"); got != 2 {
		t.Errorf("expected two reported failures, got %q", errOut.String())
	}

	if got := strings.Count(out.String(), "AI: "); got != 2 {
		t.Errorf("expected both turns to run, got %q", out.String())
	}
}

func Test_ConsoleStats(t *testing.T) {
	eng := newFakeEngine(1024, "ok")
	s := newSession(eng, chat.SessionConfig{})

	c, out, _ := newConsole("", true)

	if err := c.Prompt(context.Background(), s, "hi"); err != nil {
		t.Fatalf("prompt: %v", err)
	}

	exp := "Input: 27  Output: 2  Window: 29 (3% of 1K)"
	if !strings.Contains(out.String(), exp) {
		t.Errorf("expected %q in %q", exp, out.String())
	}

	if strings.Contains(out.String(), "\u001b[") {
		t.Error("stats should not be colored")
	}
}

func Test_ConsoleComplete(t *testing.T) {
	eng := newFakeEngine(512, " over")
	s := newSession(eng, chat.SessionConfig{})

	c, out, _ := newConsole("", false)

	if err := c.Complete(context.Background(), s, "jumped"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if exp := "jumped over\n"; out.String() != exp {
		t.Errorf("got %q, exp %q", out.String(), exp)
	}
}

func Test_ConsolePromptError(t *testing.T) {
	eng := newFakeEngine(8, "ok")
	s := newSession(eng, chat.SessionConfig{})

	c, _, _ := newConsole("", false)

	if err := c.Prompt(context.Background(), s, "hi"); err == nil {
		t.Fatal("expected an error for a prompt larger than the context")
	}
}
