// Package libs provides llama.cpp library support.
package libs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/llamachat/sdk/tools/defaults"
	"github.com/ardanlabs/llamachat/sdk/tools/downloader"
	"github.com/hybridgroup/yzma/pkg/download"
)

const versionFile = "version.json"

// Logger represents a logger for capturing events.
type Logger func(ctx context.Context, msg string, args ...any)

// VersionTag represents information about the installed version of llama.cpp.
type VersionTag struct {
	Version   string `json:"version"`
	Arch      string `json:"arch"`
	OS        string `json:"os"`
	Processor string `json:"processor"`
	Latest    string `json:"-"`
}

// Path returns the location the libraries are loaded from. The override wins,
// then the LLAMACHAT_LIB_PATH env var, then the default install folder.
func Path(override string) string {
	if override != "" {
		return override
	}

	if v := os.Getenv("LLAMACHAT_LIB_PATH"); v != "" {
		return v
	}

	return defaults.LibsDir("")
}

// =============================================================================

// Libs manages the library system.
type Libs struct {
	path         string
	version      string
	arch         download.Arch
	os           download.OS
	processor    download.Processor
	allowUpgrade bool
}

// New uses defaults based on the system we are running on. The processor is
// taken from LLAMACHAT_PROCESSOR or cpu.
func New(basePath string) (*Libs, error) {
	arch, err := defaults.Arch("")
	if err != nil {
		return nil, err
	}

	opSys, err := defaults.OS("")
	if err != nil {
		return nil, err
	}

	processor, err := defaults.Processor("")
	if err != nil {
		return nil, err
	}

	return NewWithSettings(basePath, "", arch, opSys, processor, true), nil
}

// NewWithSettings constructs a valid library config for downloading based on
// raw values that would come from configuration.
// basePath    : the base path the llama.cpp libraries will be installed under.
// version     : the llama.cpp release to install, empty for the latest.
// arch        : the architecture.
// opSys       : the operating system.
// processor   : the hardware.
// allowUpgrade: true or false to determine to upgrade libraries when available.
func NewWithSettings(basePath string, version string, arch download.Arch, opSys download.OS, processor download.Processor, allowUpgrade bool) *Libs {
	return &Libs{
		path:         defaults.LibsDir(basePath),
		version:      defaults.LibVersion(version),
		arch:         arch,
		os:           opSys,
		processor:    processor,
		allowUpgrade: allowUpgrade,
	}
}

// LibsPath returns the location of the libraries path.
func (lib *Libs) LibsPath() string {
	return lib.path
}

// Processor returns the hardware system being used.
func (lib *Libs) Processor() download.Processor {
	return lib.processor
}

// Download performs a complete workflow for downloading and installing
// llama.cpp. An installed version that matches is left alone.
func (lib *Libs) Download(ctx context.Context, log Logger) (VersionTag, error) {
	log(ctx, "download-libraries", "status", "check libraries version information", "arch", lib.arch, "os", lib.os, "processor", lib.processor)

	tag, err := lib.VersionInformation()
	if err != nil {
		if tag.Version == "" {
			return VersionTag{}, fmt.Errorf("download-libraries: error retrieving version info: %w", err)
		}

		log(ctx, "download-libraries", "status", "unable to check latest version, using installed version", "current", tag.Version)
		return tag, nil
	}

	log(ctx, "download-libraries", "status", "check llama.cpp installation", "latest", tag.Latest, "current", tag.Version)

	if isTagMatch(tag, lib) {
		log(ctx, "download-libraries", "status", "already installed", "current", tag.Version)
		return tag, nil
	}

	if tag.Version != "" && !lib.allowUpgrade {
		log(ctx, "download-libraries", "status", "bypassing upgrade", "latest", tag.Latest, "current", tag.Version)
		return tag, nil
	}

	newTag, err := lib.download(ctx, log, tag.Latest)
	if err != nil {
		log(ctx, "download-libraries", "status", "ERROR", "msg", err)

		if _, err := lib.InstalledVersion(); err != nil {
			return VersionTag{}, fmt.Errorf("download-libraries: failed to install llama: %q: error: %w", lib.path, err)
		}

		log(ctx, "download-libraries", "status", "failed to install new version, using current version")
		return tag, nil
	}

	log(ctx, "download-libraries", "status", "llama.cpp installed", "old-version", tag.Version, "current", newTag.Version)

	return newTag, nil
}

// InstalledVersion retrieves the current version of llama.cpp installed.
func (lib *Libs) InstalledVersion() (VersionTag, error) {
	versionInfoPath := filepath.Join(lib.path, versionFile)

	d, err := os.ReadFile(versionInfoPath)
	if err != nil {
		return VersionTag{}, fmt.Errorf("installed-version: unable to read version info file: %w", err)
	}

	var tag VersionTag
	if err := json.Unmarshal(d, &tag); err != nil {
		return VersionTag{}, fmt.Errorf("installed-version: unable to parse version info file: %w", err)
	}

	return tag, nil
}

// VersionInformation retrieves the installed version and the version that
// should be installed: the pinned version when set, else the latest release
// published on GitHub.
func (lib *Libs) VersionInformation() (VersionTag, error) {
	tag, _ := lib.InstalledVersion()

	if lib.version != "" {
		tag.Latest = lib.version
		return tag, nil
	}

	version, err := download.LlamaLatestVersion()
	if err != nil {
		return tag, fmt.Errorf("version-information: unable to get latest version of llama.cpp: %w", err)
	}

	tag.Latest = version

	return tag, nil
}

// =============================================================================

func (lib *Libs) download(ctx context.Context, log Logger, version string) (VersionTag, error) {
	if err := os.MkdirAll(lib.path, 0755); err != nil {
		return VersionTag{}, fmt.Errorf("download-libs: unable to create libs path: %w", err)
	}

	tempPath := filepath.Join(lib.path, "temp")

	progress := func(p downloader.Progress) {
		log(ctx, "download-libs", "status", "downloading", "src", p.Src, "current-mib", p.Current/downloader.EveryMiB, "total-mib", p.Total/downloader.EveryMiB, "mib-per-sec", fmt.Sprintf("%.2f", p.MiBPerSec), "complete", p.Complete)
	}

	pr := downloader.NewTracker(progress, downloader.EveryMiB10)

	err := download.GetWithProgress(lib.arch.String(), lib.os.String(), lib.processor.String(), version, tempPath, pr)
	if err != nil {
		os.RemoveAll(tempPath)
		return VersionTag{}, fmt.Errorf("download-libs: unable to install llama.cpp: %w", err)
	}

	if err := lib.swapTempForLib(tempPath); err != nil {
		os.RemoveAll(tempPath)
		return VersionTag{}, fmt.Errorf("download-libs: unable to swap temp for lib: %w", err)
	}

	if err := lib.createVersionFile(version); err != nil {
		return VersionTag{}, fmt.Errorf("download-libs: unable to create version file: %w", err)
	}

	tag, err := lib.InstalledVersion()
	if err != nil {
		return VersionTag{}, fmt.Errorf("download-libs: %w", err)
	}

	tag.Latest = version

	return tag, nil
}

func (lib *Libs) swapTempForLib(tempPath string) error {
	entries, err := os.ReadDir(lib.path)
	if err != nil {
		return fmt.Errorf("swap-temp-for-lib: unable to read libPath: %w", err)
	}

	for _, entry := range entries {
		if entry.Name() == "temp" {
			continue
		}

		os.RemoveAll(filepath.Join(lib.path, entry.Name()))
	}

	tempEntries, err := os.ReadDir(tempPath)
	if err != nil {
		return fmt.Errorf("swap-temp-for-lib: unable to read temp: %w", err)
	}

	for _, entry := range tempEntries {
		src := filepath.Join(tempPath, entry.Name())
		dst := filepath.Join(lib.path, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("swap-temp-for-lib: unable to move %s: %w", entry.Name(), err)
		}
	}

	os.RemoveAll(tempPath)

	return nil
}

func (lib *Libs) createVersionFile(version string) error {
	t := VersionTag{
		Version:   version,
		Arch:      lib.arch.String(),
		OS:        lib.os.String(),
		Processor: lib.processor.String(),
	}

	d, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("create-version-file: marshalling version info: %w", err)
	}

	versionInfoPath := filepath.Join(lib.path, versionFile)

	if err := os.WriteFile(versionInfoPath, d, 0644); err != nil {
		return fmt.Errorf("create-version-file: writing version info: %w", err)
	}

	return nil
}

// =============================================================================

func isTagMatch(tag VersionTag, libs *Libs) bool {
	return tag.Latest == tag.Version && tag.Arch == libs.arch.String() && tag.OS == libs.os.String() && tag.Processor == libs.processor.String()
}
