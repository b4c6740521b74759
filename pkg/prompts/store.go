// Package prompts resolves named prompt templates from a remote repository
// and keeps a gzip-compressed copy of each on disk.
package prompts

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	DefaultBaseURL = "https://raw.githubusercontent.com/ramptix/preprompted-data/main/src"
	DefaultDir     = ".preprompt"

	ext      = ".prompt"
	lockName = ".lock"
)

var referencePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+(/[A-Za-z0-9_.-]+)+$`)

// IsReference reports whether s looks like a template name such as
// "ramptix/assistant" rather than literal prompt text.
func IsReference(s string) bool {
	return len(s) <= 64 && referencePattern.MatchString(s)
}

// StatusError is returned when the remote repository does not answer 2xx.
type StatusError struct {
	Name       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch prompt %s: status %d", e.Name, e.StatusCode)
}

type Store struct {
	dir     string
	baseURL string
	http    *http.Client
	noCache bool
}

type Option func(*Store)

// WithDir sets the cache directory.
func WithDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.dir = dir
		}
	}
}

func WithBaseURL(url string) Option {
	return func(s *Store) {
		if url != "" {
			s.baseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Store) { s.http = hc }
}

// WithoutCache makes Get always fetch and never write to disk.
func WithoutCache() Option {
	return func(s *Store) { s.noCache = true }
}

func New(opts ...Option) *Store {
	s := &Store{
		dir:     DefaultDir,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string {
	return s.dir
}

// Get returns the named template, from the cache when present, and replaces
// every "{key}" with fill[key].
func (s *Store) Get(ctx context.Context, name string, fill map[string]string) (string, error) {
	text, err := s.load(ctx, name)
	if err != nil {
		return "", err
	}
	return Fill(text, fill), nil
}

// Fill replaces "{key}" placeholders. Keys are applied in sorted order.
func Fill(text string, fill map[string]string) string {
	keys := make([]string, 0, len(fill))
	for k := range fill {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text = strings.ReplaceAll(text, "{"+k+"}", fill[k])
	}
	return text
}

func (s *Store) load(ctx context.Context, name string) (string, error) {
	if s.noCache {
		data, err := s.Fetch(ctx, name)
		return string(data), err
	}

	path, err := s.path(name)
	if err != nil {
		return "", err
	}

	if data, err := readGzip(path); err == nil {
		return string(data), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read cached prompt %s: %w", name, err)
	}

	data, err := s.Fetch(ctx, name)
	if err != nil {
		return "", err
	}
	if err := s.save(name, data); err != nil {
		return "", err
	}
	return string(data), nil
}

// Fetch downloads the named template, bypassing the cache.
func (s *Store) Fetch(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+name+".md", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt %s: %w", name, err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Name: name, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt %s: %w", name, err)
	}
	return bytes.TrimSpace(data), nil
}

// Cached lists the names of the templates in the cache.
func (s *Store) Cached() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, ext)))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return names, err
}

// UpdateAll fetches a fresh copy of every cached template and returns the
// names it refreshed.
func (s *Store) UpdateAll(ctx context.Context) ([]string, error) {
	names, err := s.Cached()
	if err != nil {
		return nil, fmt.Errorf("list cached prompts: %w", err)
	}

	for _, name := range names {
		data, err := s.Fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		if err := s.save(name, data); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// ClearCache removes the cache directory.
func (s *Store) ClearCache() error {
	return os.RemoveAll(s.dir)
}

func (s *Store) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid prompt name %q", name)
	}
	return filepath.Join(s.dir, clean+ext), nil
}

// save writes the template under an exclusive lock on the cache directory so
// concurrent processes never observe a partial file.
func (s *Store) save(name string, data []byte) error {
	if err := s.makeDirectory(); err != nil {
		return err
	}
	path, err := s.path(name)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(s.dir, lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock prompt cache: %w", err)
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save prompt %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("save prompt %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if _, err := zw.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save prompt %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("save prompt %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save prompt %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save prompt %s: %w", name, err)
	}
	return nil
}

// makeDirectory creates the cache directory with a .gitignore that keeps it
// out of version control.
func (s *Store) makeDirectory() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create prompt cache: %w", err)
	}
	ignore := filepath.Join(s.dir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte("*"), 0o644); err != nil {
			return fmt.Errorf("create prompt cache: %w", err)
		}
	}
	return nil
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
