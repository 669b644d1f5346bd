// Package assets fetches model files that speech engines expect on disk.
//
// Engines only verify their assets at load time; this package fills the gap
// for deployments that want missing files pulled at startup instead of
// hand-copied. Downloads land in a side file first and are renamed into
// place once complete, so an interrupted fetch never leaves a truncated
// model where an engine would trust it.
package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrWong99/vocalis/pkg/provider/tts/piper"
)

// Option is a functional option for configuring a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// Fetcher downloads missing asset files. The zero-value client carries no
// request timeout because model files are large and links vary; bound
// downloads through the context instead.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{client: &http.Client{}}
	for _, o := range opts {
		o(f)
	}
	return f
}

// EnsureFile downloads url to dest unless a non-empty dest already exists.
// The parent directory is created as needed.
func (f *Fetcher) EnsureFile(ctx context.Context, url, dest string) error {
	if stat, err := os.Stat(dest); err == nil && stat.Size() > 0 {
		slog.Debug("asset already present", "dest", dest)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("assets: create dir for %q: %w", dest, err)
	}

	slog.Info("downloading asset", "url", url, "dest", dest)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("assets: create request for %q: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("assets: GET %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assets: GET %q: unexpected status %s", url, resp.Status)
	}

	tmp := dest + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("assets: create %q: %w", tmp, err)
	}
	defer os.Remove(tmp)

	n, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err != nil {
		return fmt.Errorf("assets: download %q: %w", url, err)
	}
	if closeErr != nil {
		return fmt.Errorf("assets: close %q: %w", tmp, closeErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("assets: move %q into place: %w", tmp, err)
	}

	slog.Info("asset downloaded", "dest", dest, "bytes", n,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// EnsureVoice fetches the piper assets for spec into dir: the <name>.onnx
// model and its <name>.onnx.json side file, each only when missing. Voices
// without download URLs, such as configured overrides, are expected on disk
// already and are left alone.
func (f *Fetcher) EnsureVoice(ctx context.Context, dir string, spec piper.VoiceSpec) error {
	if spec.OnnxURL == "" || spec.JSONURL == "" {
		slog.Warn("voice has no download urls, expecting assets on disk",
			"voice", spec.Name, "dir", dir)
		return nil
	}

	onnxPath := filepath.Join(dir, spec.Name+".onnx")
	if err := f.EnsureFile(ctx, spec.OnnxURL, onnxPath); err != nil {
		return err
	}
	jsonPath := filepath.Join(dir, spec.Name+".onnx.json")
	return f.EnsureFile(ctx, spec.JSONURL, jsonPath)
}
