package engine

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/ardanlabs/llamachat/sdk/tools/libs"
	"github.com/hybridgroup/yzma/pkg/llama"
	"github.com/nikolalohinski/gonja/v2"
)

// LogLevel represents the logging level of the llama.cpp library.
type LogLevel int

// Set of llama.cpp logging levels.
const (
	LogSilent LogLevel = iota + 1
	LogNormal
)

var (
	initOnce        sync.Once
	initErr         error
	libraryLocation string
)

type initOptions struct {
	libPath  string
	logLevel LogLevel
}

// InitOption represents options for configuring Init.
type InitOption func(*initOptions)

// WithLibPath sets a custom library path.
func WithLibPath(libPath string) InitOption {
	return func(o *initOptions) {
		o.libPath = libPath
	}
}

// WithLogLevel sets the log level for the backend.
func WithLogLevel(logLevel LogLevel) InitOption {
	return func(o *initOptions) {
		o.logLevel = logLevel
	}
}

// Init loads the llama.cpp shared libraries and initializes the backend. Only
// the first call has any effect, later calls return the first result.
func Init(opts ...InitOption) error {
	initOnce.Do(func() {
		var o initOptions
		for _, opt := range opts {
			opt(&o)
		}

		libPath := libs.Path(o.libPath)

		// Windows uses PATH for DLL discovery, Unix uses LD_LIBRARY_PATH.
		switch runtime.GOOS {
		case "windows":
			if v := os.Getenv("PATH"); !strings.Contains(v, libPath) {
				os.Setenv("PATH", fmt.Sprintf("%s;%s", libPath, v))
			}

		default:
			if v := os.Getenv("LD_LIBRARY_PATH"); !strings.Contains(v, libPath) {
				os.Setenv("LD_LIBRARY_PATH", fmt.Sprintf("%s:%s", libPath, v))
			}
		}

		if err := llama.Load(libPath); err != nil {
			initErr = fmt.Errorf("init: unable to load library: %w", err)
			return
		}

		libraryLocation = libPath
		llama.Init()

		// ---------------------------------------------------------------------

		switch o.logLevel {
		case LogNormal:
			llama.LogSet(llama.LogNormal)

		default:
			llama.LogSet(llama.LogSilent())
		}

		gonja.SetLoggerOutput(io.Discard)
	})

	return initErr
}

// LibraryLocation returns the path the llama.cpp libraries were loaded from.
func LibraryLocation() string {
	return libraryLocation
}

// ParseLogLevel converts a configuration value into a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "", "silent", "off":
		return LogSilent, nil

	case "normal", "on":
		return LogNormal, nil
	}

	return 0, fmt.Errorf("parse-log-level: unknown level %q", s)
}
