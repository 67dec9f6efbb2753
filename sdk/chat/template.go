package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/nikolalohinski/gonja/v2/loaders"
)

// Formatter converts a conversation into a single prompt string.
type Formatter interface {
	Format(messages []Message, addAssistant bool) (string, error)
}

// =============================================================================

// NativeFormatter applies the engine's chat template into a resizable buffer.
type NativeFormatter struct {
	tmpl     Templater
	template string
	buf      []byte
}

// NewNativeFormatter constructs a formatter for the specified template. The
// buffer starts at initialSize bytes and grows when a prompt needs more.
func NewNativeFormatter(tmpl Templater, template string, initialSize int) *NativeFormatter {
	if initialSize <= 0 {
		initialSize = 1024
	}

	return &NativeFormatter{
		tmpl:     tmpl,
		template: template,
		buf:      make([]byte, initialSize),
	}
}

// Format implements the Formatter interface.
func (f *NativeFormatter) Format(messages []Message, addAssistant bool) (string, error) {
	n := f.tmpl.ApplyTemplate(f.template, messages, addAssistant, f.buf)

	if n > len(f.buf) {
		f.buf = make([]byte, n)
		n = f.tmpl.ApplyTemplate(f.template, messages, addAssistant, f.buf)
	}

	if n < 0 || n > len(f.buf) {
		return "", fmt.Errorf("format: %w: template returned %d", ErrTemplate, n)
	}

	return string(f.buf[:n]), nil
}

// Cap returns the current capacity of the formatting buffer.
func (f *NativeFormatter) Cap() int {
	return len(f.buf)
}

// =============================================================================

// JinjaFormatter renders a jinja chat template, typically read from a file
// that overrides the template stored in the model.
type JinjaFormatter struct {
	template *exec.Template
}

var loaderOnce sync.Once

// NewJinjaFormatter parses the specified jinja template.
func NewJinjaFormatter(script string) (*JinjaFormatter, error) {
	if script == "" {
		return nil, errors.New("new-jinja-formatter: no template found")
	}

	loaderOnce.Do(func() {
		gonja.DefaultLoader = &noFSLoader{}
	})

	t, err := gonja.FromString(script)
	if err != nil {
		return nil, fmt.Errorf("new-jinja-formatter: failed to parse template: %w", err)
	}

	return &JinjaFormatter{template: t}, nil
}

// NewJinjaFormatterFromFile reads and parses a jinja template file.
func NewJinjaFormatterFromFile(fileName string) (*JinjaFormatter, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("new-jinja-formatter: failed to read file: %w", err)
	}

	return NewJinjaFormatter(string(data))
}

// Format implements the Formatter interface.
func (f *JinjaFormatter) Format(messages []Message, addAssistant bool) (string, error) {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("format: failed to marshal messages: %w", err)
	}

	var msgs []map[string]any
	if err := json.Unmarshal(jsonData, &msgs); err != nil {
		return "", fmt.Errorf("format: failed to unmarshal messages: %w", err)
	}

	data := exec.NewContext(map[string]any{
		"messages":              msgs,
		"add_generation_prompt": addAssistant,
	})

	s, err := f.template.ExecuteToString(data)
	if err != nil {
		return "", fmt.Errorf("format: %w: %w", ErrTemplate, err)
	}

	return s, nil
}

// =============================================================================

type noFSLoader struct{}

func (nl *noFSLoader) Read(path string) (io.Reader, error) {
	return nil, errors.New("filesystem access disabled")
}

func (nl *noFSLoader) Resolve(path string) (string, error) {
	return "", errors.New("filesystem access disabled")
}

func (nl *noFSLoader) Inherit(from string) (loaders.Loader, error) {
	return nil, errors.New("filesystem access disabled")
}
