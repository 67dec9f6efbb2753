// Package downloader pulls single files over http into a destination file,
// reporting progress along the way.
package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter"
)

// Report intervals in bytes.
const (
	EveryMiB    = 1024 * 1024
	EveryMiB10  = EveryMiB * 10
	EveryMiB100 = EveryMiB * 100
)

// partialExt marks a file that is still being transferred. It is renamed to
// the destination once complete, so an interrupted pull never looks like a
// finished one.
const partialExt = ".partial"

// Progress describes the state of a transfer.
type Progress struct {
	Src       string
	Current   int64
	Total     int64
	MiBPerSec float64
	Complete  bool
}

// ProgressFunc receives progress reports.
type ProgressFunc func(p Progress)

// File downloads src into the dest file, creating its folder. It reports
// false when dest already exists and nothing was transferred. An interrupted
// transfer resumes from the partial file on the next call. A Hugging Face
// token in LLAMACHAT_HF_TOKEN or HF_TOKEN is sent for gated repositories.
func File(ctx context.Context, src string, dest string, progress ProgressFunc, every int64) (bool, error) {
	if info, err := os.Stat(dest); err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("download-file: destination %q is a directory", dest)
		}

		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("download-file: unable to create folder: %w", err)
	}

	// -------------------------------------------------------------------------

	partial := dest + partialExt

	client := getter.Client{
		Ctx:              ctx,
		Src:              src,
		Dst:              partial,
		Mode:             getter.ClientModeFile,
		ProgressListener: NewTracker(progress, every),
		Getters:          getters(),
	}

	if err := client.Get(); err != nil {
		return false, fmt.Errorf("download-file: failed to download %q: %w", src, err)
	}

	if err := os.Rename(partial, dest); err != nil {
		return false, fmt.Errorf("download-file: unable to move %q into place: %w", partial, err)
	}

	return true, nil
}

// getters returns nil for the go-getter defaults unless a token has to be
// sent with every http request.
func getters() map[string]getter.Getter {
	token := os.Getenv("LLAMACHAT_HF_TOKEN")
	if token == "" {
		token = os.Getenv("HF_TOKEN")
	}

	if token == "" {
		return nil
	}

	httpGetter := &getter.HttpGetter{
		Header: map[string][]string{
			"Authorization": {"Bearer " + token},
		},
	}

	return map[string]getter.Getter{
		"https": httpGetter,
		"http":  httpGetter,
	}
}

// =============================================================================

// Tracker implements the go-getter ProgressTracker interface. It wraps the
// response body and reports every time another interval of bytes has been
// read.
type Tracker struct {
	progress     ProgressFunc
	every        int64
	src          string
	current      int64
	total        int64
	lastReported int64
	start        time.Time
	body         io.ReadCloser
}

// NewTracker constructs a tracker that reports to progress every interval of
// bytes. A nil progress makes it a pass through.
func NewTracker(progress ProgressFunc, every int64) *Tracker {
	return &Tracker{
		progress: progress,
		every:    every,
	}
}

// TrackProgress is called once per transfer, before the first read.
func (t *Tracker) TrackProgress(src string, currentSize, totalSize int64, stream io.ReadCloser) io.ReadCloser {
	t.src = src
	t.current = currentSize
	t.lastReported = currentSize
	t.total = totalSize
	t.start = time.Now()
	t.body = stream

	return t
}

func (t *Tracker) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	t.current += int64(n)

	if t.current-t.lastReported >= t.every {
		t.lastReported = t.current
		t.report(false)
	}

	return n, err
}

func (t *Tracker) Close() error {
	t.report(true)
	return t.body.Close()
}

func (t *Tracker) report(complete bool) {
	if t.progress == nil {
		return
	}

	var rate float64
	if elapsed := time.Since(t.start).Seconds(); elapsed > 0 {
		rate = float64(t.current) / EveryMiB / elapsed
	}

	t.progress(Progress{
		Src:       t.src,
		Current:   t.current,
		Total:     t.total,
		MiBPerSec: rate,
		Complete:  complete,
	})
}
