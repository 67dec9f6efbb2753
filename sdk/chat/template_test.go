package chat_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/llamachat/sdk/chat"
)

const jinjaTemplate = `{% for m in messages %}<{{ m.role }}>{{ m.content }}</{{ m.role }}>{% endfor %}{% if add_generation_prompt %}<assistant>{% endif %}`

var conversation = []chat.Message{
	{Role: chat.RoleSystem, Content: "be brief"},
	chat.UserMessage("hello there"),
	chat.AssistantMessage("hi"),
	chat.UserMessage("what is the capital of France?"),
}

func Test_NativeFormatterGrows(t *testing.T) {
	eng := newFakeEngine(512, "")
	f := chat.NewNativeFormatter(eng, eng.ChatTemplate(), 8)

	got, err := f.Format(conversation, true)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	exp := render(conversation, true)
	if got != exp {
		t.Fatalf("got %q, exp %q", got, exp)
	}

	if f.Cap() != len(exp) {
		t.Errorf("got a %d byte buffer, exp %d", f.Cap(), len(exp))
	}

	// A shorter prompt reuses the larger buffer.
	if _, err := f.Format(conversation[:1], false); err != nil {
		t.Fatalf("format: %v", err)
	}

	if f.Cap() != len(exp) {
		t.Errorf("buffer should not shrink, got %d", f.Cap())
	}
}

func Test_NativeFormatterFails(t *testing.T) {
	eng := newFakeEngine(512, "")
	eng.failTemplate = true

	f := chat.NewNativeFormatter(eng, eng.ChatTemplate(), 0)

	if _, err := f.Format(conversation, true); !errors.Is(err, chat.ErrTemplate) {
		t.Fatalf("got %v, exp %v", err, chat.ErrTemplate)
	}
}

func Test_JinjaFormatter(t *testing.T) {
	f, err := chat.NewJinjaFormatter(jinjaTemplate)
	if err != nil {
		t.Fatalf("new formatter: %v", err)
	}

	for _, addAssistant := range []bool{true, false} {
		got, err := f.Format(conversation, addAssistant)
		if err != nil {
			t.Fatalf("format: %v", err)
		}

		if exp := render(conversation, addAssistant); got != exp {
			t.Errorf("got %q, exp %q", got, exp)
		}
	}
}

func Test_JinjaFormatterFromFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "template.jinja")
	if err := os.WriteFile(fileName, []byte(jinjaTemplate), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	f, err := chat.NewJinjaFormatterFromFile(fileName)
	if err != nil {
		t.Fatalf("new formatter: %v", err)
	}

	got, err := f.Format(conversation[1:2], true)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	if exp := "<user>hello there</user><assistant>"; got != exp {
		t.Errorf("got %q, exp %q", got, exp)
	}

	if _, err := chat.NewJinjaFormatterFromFile(filepath.Join(t.TempDir(), "missing.jinja")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func Test_JinjaFormatterInvalid(t *testing.T) {
	if _, err := chat.NewJinjaFormatter(""); err == nil {
		t.Error("expected an error for an empty template")
	}

	if _, err := chat.NewJinjaFormatter("{% for m in messages %}"); err == nil {
		t.Error("expected an error for an unterminated block")
	}
}
