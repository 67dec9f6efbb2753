package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"
)

const (
	colorGray  = "\u001b[90m"
	colorReset = "\u001b[0m"
)

// Console runs a session against line oriented input and output, typically
// the process's standard streams.
type Console struct {
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Stats bool
	Color bool

	// TurnContext derives the context a single response runs under. The
	// default cancels the response on an interrupt signal.
	TurnContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

// NewConsole constructs a console over the specified streams. Color is enabled
// when out is a terminal.
func NewConsole(in io.Reader, out io.Writer, errW io.Writer, stats bool) *Console {
	var color bool
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}

	return &Console{
		In:          in,
		Out:         out,
		Err:         errW,
		Stats:       stats,
		Color:       color,
		TurnContext: interruptContext,
	}
}

// Chat reads user input line by line and streams each response until the
// input ends or the user types exit or quit. A failed turn is reported and
// the conversation continues.
func (c *Console) Chat(ctx context.Context, s *Session) error {
	scanner := bufio.NewScanner(c.In)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fmt.Fprintln(c.Out, "Conversation started. Type 'exit' to end.")

	for {
		fmt.Fprint(c.Out, "User: ")

		if !scanner.Scan() {
			fmt.Fprintln(c.Out)

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: unable to read user input: %w", err)
			}

			return nil
		}

		input := strings.TrimSpace(scanner.Text())

		switch input {
		case "":
			continue

		case "exit", "quit":
			return nil
		}

		fmt.Fprint(c.Out, "AI: ")

		res, err := c.run(ctx, func(ctx context.Context) (Result, error) {
			return s.Turn(ctx, input, c.Out)
		})

		if err != nil {
			fmt.Fprintln(c.Out)
			fmt.Fprintf(c.Err, "ERROR: %s\n", err)
			continue
		}

		fmt.Fprintln(c.Out)
		c.printUsage(res)
		fmt.Fprintln(c.Out)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// Prompt runs a single templated turn and prints the response.
func (c *Console) Prompt(ctx context.Context, s *Session, prompt string) error {
	res, err := c.run(ctx, func(ctx context.Context) (Result, error) {
		return s.Turn(ctx, prompt, c.Out)
	})

	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	fmt.Fprintln(c.Out)
	c.printUsage(res)

	return nil
}

// Complete prints the text followed by the model's continuation of it.
func (c *Console) Complete(ctx context.Context, s *Session, text string) error {
	fmt.Fprint(c.Out, text)

	res, err := c.run(ctx, func(ctx context.Context) (Result, error) {
		return s.Complete(ctx, text, c.Out)
	})

	if err != nil {
		fmt.Fprintln(c.Out)
		return fmt.Errorf("complete: %w", err)
	}

	fmt.Fprintln(c.Out)
	c.printUsage(res)

	return nil
}

// =============================================================================

func (c *Console) run(ctx context.Context, fn func(ctx context.Context) (Result, error)) (Result, error) {
	if c.TurnContext == nil {
		return fn(ctx)
	}

	ctx, cancel := c.TurnContext(ctx)
	defer cancel()

	return fn(ctx)
}

func (c *Console) printUsage(res Result) {
	if !c.Stats {
		return
	}

	u := res.Usage

	var percentage float64
	if u.ContextWindow > 0 {
		percentage = (float64(u.ContextTokens) / float64(u.ContextWindow)) * 100
	}
	of := float32(u.ContextWindow) / float32(1024)

	line := fmt.Sprintf("Input: %d  Output: %d  Window: %d (%.0f%% of %.0fK)  TPS: %.2f  Finish: %s",
		u.PromptTokens, u.OutputTokens, u.ContextTokens, percentage, of, u.TokensPerSecond, res.FinishReason)

	if c.Color {
		line = colorGray + line + colorReset
	}

	fmt.Fprintf(c.Out, "\n%s\n", line)
}

func interruptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}
