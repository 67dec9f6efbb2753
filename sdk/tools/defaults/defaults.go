// Package defaults provides default values for the cli tooling.
package defaults

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hybridgroup/yzma/pkg/download"
)

var (
	basePath   = ".llamachat"
	libVersion = ""
)

// LibVersion returns the default library version, checking the
// LLAMACHAT_LIB_VERSION env var first. If an override is provided, it takes
// precedence. An empty result means the latest release.
func LibVersion(override string) string {
	if override != "" {
		return override
	}

	if v := os.Getenv("LLAMACHAT_LIB_VERSION"); v != "" {
		return v
	}

	return libVersion
}

// BaseDir is the default base folder location for llamachat files.
func BaseDir(override string) string {
	if override != "" {
		return override
	}

	if v := os.Getenv("LLAMACHAT_BASE_PATH"); v != "" {
		return v
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Sprintf("./%s", basePath)
	}

	return filepath.Join(homeDir, basePath)
}

// LibsDir is the folder the llama.cpp libraries are installed in.
func LibsDir(override string) string {
	return filepath.Join(BaseDir(override), "libraries")
}

// ModelsDir is the folder models are downloaded to.
func ModelsDir(override string) string {
	return filepath.Join(BaseDir(override), "models")
}

// Arch will check the LLAMACHAT_ARCH var first and check it's value against
// the proper set of architectures. If that variable is not set, then
// runtime.GOARCH is used.
func Arch(override string) (download.Arch, error) {
	if override != "" {
		return download.ParseArch(override)
	}

	if v := os.Getenv("LLAMACHAT_ARCH"); v != "" {
		return download.ParseArch(v)
	}

	return download.ParseArch(runtime.GOARCH)
}

// OS will check the LLAMACHAT_OS var first and check it's value against the
// proper set of operating systems. If that variable is not set, then
// runtime.GOOS is used.
func OS(override string) (download.OS, error) {
	if override != "" {
		return download.ParseOS(override)
	}

	if v := os.Getenv("LLAMACHAT_OS"); v != "" {
		return download.ParseOS(v)
	}

	return download.ParseOS(runtime.GOOS)
}

// Processor will check the LLAMACHAT_PROCESSOR env var first and check it's
// value against the proper set of processor values (cpu, cuda, metal, vulkan).
// If that variable is not set, then cpu is used as the default.
func Processor(override string) (download.Processor, error) {
	if override != "" {
		return download.ParseProcessor(override)
	}

	if v := os.Getenv("LLAMACHAT_PROCESSOR"); v != "" {
		return download.ParseProcessor(v)
	}

	return download.CPU, nil
}
