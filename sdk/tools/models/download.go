package models

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/llamachat/sdk/tools/downloader"
	"golang.org/x/sync/errgroup"
)

const (
	hfHost        = "https://huggingface.co"
	maxConcurrent = 4
)

// Logger represents a logger for capturing events.
type Logger func(ctx context.Context, msg string, args ...any)

// Download pulls the files of a single model, one url per shard, into the
// models folder and rebuilds the index. Shards are downloaded concurrently.
// A url can be a full Hugging Face url or the short <org>/<repo>/<file> form.
func (m *Models) Download(ctx context.Context, log Logger, modelURLs ...string) (Path, error) {
	if len(modelURLs) == 0 {
		return Path{}, fmt.Errorf("download-model: no model urls provided")
	}

	defer func() {
		if err := m.BuildIndex(); err != nil {
			log(ctx, "download-model", "status", "unable to create index", "ERROR", err)
		}
	}()

	// -------------------------------------------------------------------------

	srcs := make([]string, len(modelURLs))
	dests := make([]string, len(modelURLs))

	for i, modelURL := range modelURLs {
		src, err := NormalizeURL(modelURL)
		if err != nil {
			return Path{}, fmt.Errorf("download-model: %w", err)
		}

		dest, err := m.modelFilePath(src)
		if err != nil {
			return Path{}, fmt.Errorf("download-model: %w", err)
		}

		srcs[i] = src
		dests[i] = dest
	}

	modelID := extractModelID(dests[0])

	log(ctx, "download-model", "status", "start", "model-id", modelID, "files", len(srcs))

	// -------------------------------------------------------------------------

	progress := func(p downloader.Progress) {
		log(ctx, "download-model", "status", "downloading", "src", path.Base(p.Src), "current-mib", p.Current/downloader.EveryMiB, "total-mib", p.Total/downloader.EveryMiB, "mib-per-sec", fmt.Sprintf("%.2f", p.MiBPerSec), "complete", p.Complete)
	}

	downloaded := make([]bool, len(srcs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i := range srcs {
		g.Go(func() error {
			ok, err := downloader.File(ctx, srcs[i], dests[i], progress, downloader.EveryMiB100)
			if err != nil {
				return fmt.Errorf("pull %q: %w", path.Base(dests[i]), err)
			}

			downloaded[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Path{}, fmt.Errorf("download-model: %w", err)
	}

	// -------------------------------------------------------------------------

	mp := Path{
		ModelFiles: dests,
	}

	for _, ok := range downloaded {
		if ok {
			mp.Downloaded = true
		}
	}

	switch mp.Downloaded {
	case true:
		log(ctx, "download-model", "status", "downloaded", "model-id", modelID)

	default:
		log(ctx, "download-model", "status", "already exists", "model-id", modelID)
	}

	return mp, nil
}

// NormalizeURL expands the short <org>/<repo>/<file> form into a Hugging Face
// download url. Full urls are returned unchanged.
func NormalizeURL(modelURL string) (string, error) {
	if strings.Contains(modelURL, "://") {
		u, err := url.Parse(modelURL)
		if err != nil {
			return "", fmt.Errorf("normalize-url: unable to parse %q: %w", modelURL, err)
		}

		// A browser url points at the blob page, not the file.
		u.Path = strings.Replace(u.Path, "/blob/", "/resolve/", 1)

		return u.String(), nil
	}

	parts := strings.Split(strings.Trim(modelURL, "/"), "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("normalize-url: expecting <org>/<repo>/<file>, got %q", modelURL)
	}

	org, repo, file := parts[0], parts[1], strings.Join(parts[2:], "/")

	return fmt.Sprintf("%s/%s/%s/resolve/main/%s", hfHost, org, repo, file), nil
}

func (m *Models) modelFilePath(modelURL string) (string, error) {
	u, err := url.Parse(modelURL)
	if err != nil {
		return "", fmt.Errorf("model-file-path: unable to parse url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("model-file-path: invalid huggingface url: %q", u.Path)
	}

	fileName := path.Base(u.Path)
	if !strings.EqualFold(path.Ext(fileName), ".gguf") {
		return "", fmt.Errorf("model-file-path: not a gguf file: %q", fileName)
	}

	return filepath.Join(m.modelsPath, parts[0], parts[1], fileName), nil
}
