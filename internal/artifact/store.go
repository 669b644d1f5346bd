// Package artifact manages the directory of transient audio files produced by
// client uploads and speech synthesis. Files carry unique, collision-free
// names; uploads are removed by the request that created them, synthesis
// outputs stay on disk until the next startup sweep.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by [Store.Resolve] when the named artifact does not
// exist or the name is not a plain artifact filename.
var ErrNotFound = errors.New("artifact: not found")

// Kind classifies an artifact by how it was created.
type Kind string

const (
	// KindUpload marks audio received from a client for transcription.
	KindUpload Kind = "upload"

	// KindSynthesis marks audio produced by a TTS engine and served by URL.
	KindSynthesis Kind = "synthesis"
)

// Artifact is a single transient audio file in the store.
type Artifact struct {
	// ID is the unique token embedded in the filename.
	ID string

	// Name is the bare filename within the store directory.
	Name string

	// Path is the file's location on disk.
	Path string

	// Kind classifies the artifact.
	Kind Kind

	// URL is the path the artifact is served under.
	URL string

	// CreatedAt is when the artifact was written.
	CreatedAt time.Time
}

// Store writes, serves, and removes artifacts inside a single directory.
// It is safe for concurrent use; every write goes to a fresh unique name.
type Store struct {
	dir       string
	urlPrefix string
	maxAge    time.Duration
}

// Option configures a [Store].
type Option func(*Store)

// WithURLPrefix sets the URL path artifacts are served under.
// The default is "static/temp_audio".
func WithURLPrefix(prefix string) Option {
	return func(s *Store) {
		if p := strings.Trim(prefix, "/"); p != "" {
			s.urlPrefix = p
		}
	}
}

// WithMaxAge sets the age threshold used by [Store.Sweep].
// The default is one hour.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// NewStore creates the artifact directory if needed and returns a store
// rooted there.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact: directory must not be empty")
	}
	s := &Store{
		dir:       dir,
		urlPrefix: "static/temp_audio",
		maxAge:    time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create directory %q: %w", dir, err)
	}
	return s, nil
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string { return s.dir }

// URLPrefix returns the URL path artifacts are served under, without leading
// or trailing slashes.
func (s *Store) URLPrefix() string { return s.urlPrefix }

// MaxAge returns the sweep age threshold.
func (s *Store) MaxAge() time.Duration { return s.maxAge }

// SaveUpload streams r into a fresh upload artifact and returns it.
// The caller owns the file and is expected to remove it when done.
func (s *Store) SaveUpload(r io.Reader) (Artifact, error) {
	a := s.newArtifact(KindUpload)
	f, err := os.Create(a.Path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: create upload %q: %w", a.Name, err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(a.Path)
		return Artifact{}, fmt.Errorf("artifact: write upload %q: %w", a.Name, err)
	}
	return a, nil
}

// SaveSynthesis writes data as a fresh synthesis artifact and returns it.
// The file stays on disk to be served by URL; the startup sweep removes it
// eventually.
func (s *Store) SaveSynthesis(data []byte) (Artifact, error) {
	a := s.newArtifact(KindSynthesis)
	if err := os.WriteFile(a.Path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("artifact: write synthesis %q: %w", a.Name, err)
	}
	return a, nil
}

// Remove deletes the artifact's file.
func (s *Store) Remove(a Artifact) error {
	if err := os.Remove(a.Path); err != nil {
		return fmt.Errorf("artifact: remove %q: %w", a.Name, err)
	}
	return nil
}

// Resolve maps a bare artifact filename to its on-disk path for serving.
// Names containing path separators, hidden files, non-WAV extensions, and
// files that do not exist all yield [ErrNotFound], so the store never serves
// anything outside its directory.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if filepath.Ext(name) != ".wav" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return path, nil
}

// Sweep deletes every WAV file in the store directory older than the max age
// and returns how many were removed. Individual deletions that fail are
// logged and skipped; only listing the directory can fail the sweep.
func (s *Store) Sweep() (int, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.wav"))
	if err != nil {
		return 0, fmt.Errorf("artifact: sweep %q: %w", s.dir, err)
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("artifact sweep: cannot stat file", "path", path, "err", err)
			continue
		}
		if info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("artifact sweep: cannot remove file", "path", path, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// newArtifact reserves a fresh unique name for the given kind.
func (s *Store) newArtifact(kind Kind) Artifact {
	id := uuid.NewString()
	prefix := "upload"
	if kind == KindSynthesis {
		prefix = "tts"
	}
	name := prefix + "_" + id + ".wav"
	return Artifact{
		ID:        id,
		Name:      name,
		Path:      filepath.Join(s.dir, name),
		Kind:      kind,
		URL:       "/" + s.urlPrefix + "/" + name,
		CreatedAt: time.Now(),
	}
}
