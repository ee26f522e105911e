package fileops

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/localops/cache"
)

var (
	// ErrNotRegular indicates a read target that is not a regular file.
	ErrNotRegular = errors.New("fileops: not a regular file")

	// ErrFileTooLarge indicates a file exceeding the configured read cap.
	ErrFileTooLarge = errors.New("fileops: file exceeds maximum read size")

	// ErrNotDirectory indicates a listing target that is not a directory.
	ErrNotDirectory = errors.New("fileops: not a directory")
)

// Config holds file operation limits.
type Config struct {
	// MaxReadSize caps a single file read in bytes. Default: 8 MiB.
	MaxReadSize int64

	// SearchMaxResults caps the matches returned by Search. Default: 200.
	SearchMaxResults int

	// SearchConcurrency bounds the search fan-out. Default: 4.
	SearchConcurrency int

	// SearchMaxFileSize skips larger files during content search.
	// Default: 1 MiB.
	SearchMaxFileSize int64
}

// Entry describes one directory listing entry.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	IsDir   bool      `json:"is_dir"`
	ModTime time.Time `json:"mod_time"`
}

// Match describes one search hit.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Service performs file operations on validated paths. Callers are
// responsible for path validation; only normalized absolute paths from a
// governance grant may reach these methods.
type Service struct {
	config   Config
	keyer    cache.Keyer
	reads    *cache.Store[string]
	listings *cache.Store[[]Entry]
}

// New creates a file operations service. The cache stores may be nil when
// caching is disabled.
func New(config Config, reads *cache.Store[string], listings *cache.Store[[]Entry]) *Service {
	if config.MaxReadSize <= 0 {
		config.MaxReadSize = 8 << 20
	}
	if config.SearchMaxResults <= 0 {
		config.SearchMaxResults = 200
	}
	if config.SearchConcurrency <= 0 {
		config.SearchConcurrency = 4
	}
	if config.SearchMaxFileSize <= 0 {
		config.SearchMaxFileSize = 1 << 20
	}

	return &Service{
		config:   config,
		keyer:    cache.NewDefaultKeyer(),
		reads:    reads,
		listings: listings,
	}
}

// Read returns the contents of a regular file, served from cache when the
// entry is still live.
func (s *Service) Read(ctx context.Context, path string) (string, error) {
	load := func() (string, error) {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return "", fmt.Errorf("%w: %s", ErrNotRegular, path)
		}
		if info.Size() > s.config.MaxReadSize {
			return "", fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}

	if s.reads == nil {
		return load()
	}

	key, err := s.keyer.Key("read_file", map[string]any{"path": path})
	if err != nil {
		return load()
	}
	return s.reads.GetOrCompute(key, load)
}

// Write stores content at path, creating parent directories as needed,
// and invalidates cache entries touched by the write.
func (s *Service) Write(ctx context.Context, path, content string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}

	s.invalidate(path)
	return len(content), nil
}

// List returns the entries of a directory sorted by name, served from
// cache when the entry is still live.
func (s *Service) List(ctx context.Context, path string) ([]Entry, error) {
	load := func() ([]Entry, error) {
		dirEntries, err := os.ReadDir(path)
		if err != nil {
			if errors.Is(err, fs.ErrInvalid) || isNotDirError(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
			}
			return nil, fmt.Errorf("list %s: %w", path, err)
		}

		entries := make([]Entry, 0, len(dirEntries))
		for _, de := range dirEntries {
			info, err := de.Info()
			if err != nil {
				continue // entry removed mid-listing
			}
			entries = append(entries, Entry{
				Name:    de.Name(),
				Size:    info.Size(),
				IsDir:   de.IsDir(),
				ModTime: info.ModTime(),
			})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		return entries, nil
	}

	if s.listings == nil {
		return load()
	}

	key, err := s.keyer.Key("list_directory", map[string]any{"path": path})
	if err != nil {
		return load()
	}
	return s.listings.GetOrCompute(key, load)
}

// Search scans regular files under root for lines containing pattern.
// Files are scanned concurrently; results are capped and sorted by path
// then line for determinism.
func (s *Service) Search(ctx context.Context, root, pattern string) ([]Match, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New("fileops: search pattern is empty")
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > s.config.SearchMaxFileSize {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		matches []Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.SearchConcurrency)

	for _, file := range files {
		mu.Lock()
		full := len(matches) >= s.config.SearchMaxResults
		mu.Unlock()
		if full {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			found, err := scanFile(file, pattern, s.config.SearchMaxResults)
			if err != nil {
				return nil // unreadable files are skipped, not fatal
			}
			mu.Lock()
			matches = append(matches, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})
	if len(matches) > s.config.SearchMaxResults {
		matches = matches[:s.config.SearchMaxResults]
	}
	return matches, nil
}

func scanFile(path, pattern string, limit int) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []Match
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.Contains(text, pattern) {
			matches = append(matches, Match{Path: path, Line: line, Text: text})
			if len(matches) >= limit {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return matches, err
	}
	return matches, nil
}

// invalidate drops cache entries for a written path and its parent listing.
func (s *Service) invalidate(path string) {
	if s.reads != nil {
		if key, err := s.keyer.Key("read_file", map[string]any{"path": path}); err == nil {
			s.reads.Delete(key)
		}
	}
	if s.listings != nil {
		parent := filepath.Dir(path)
		if key, err := s.keyer.Key("list_directory", map[string]any{"path": parent}); err == nil {
			s.listings.Delete(key)
		}
	}
}

func isNotDirError(err error) bool {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return strings.Contains(pathErr.Err.Error(), "not a directory")
	}
	return false
}
