// ABOUTME: Flat-file document store backed by a single directory
// ABOUTME: Provides list/read/create/update/delete with filename validation and extension policy

package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Common errors
var (
	ErrNotFound         = errors.New("document not found")
	ErrEmptyName        = errors.New("document name is empty")
	ErrInvalidExtension = errors.New("document extension not permitted")
	ErrDuplicateName    = errors.New("document already exists")
	ErrInvalidName      = errors.New("document name not allowed")
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// ContentKind says how a document's bytes are presented.
type ContentKind int

const (
	// KindPlainText documents are served verbatim as text/plain.
	KindPlainText ContentKind = iota
	// KindMarkdown documents are rendered to HTML.
	KindMarkdown
)

func (k ContentKind) String() string {
	switch k {
	case KindMarkdown:
		return "markdown"
	default:
		return "plaintext"
	}
}

// Policy selects which extensions Create accepts.
type Policy string

const (
	// PolicyStrict permits only .txt and .md.
	PolicyStrict Policy = "strict"
	// PolicyAny permits any non-empty extension.
	PolicyAny Policy = "any"
)

// ParsePolicy maps a configuration value onto a Policy. Empty means strict.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyAny:
		return PolicyAny, nil
	default:
		return "", fmt.Errorf("unknown extension policy %q", s)
	}
}

// Message is the user-facing explanation shown when an extension is rejected.
func (p Policy) Message() string {
	if p == PolicyAny {
		return "File must have an extension."
	}
	return "File must have extension .txt or .md"
}

func (p Policy) permits(ext string) bool {
	if ext == "" {
		return false
	}
	if p == PolicyAny {
		return true
	}
	return ext == "txt" || ext == "md"
}

// Document is a named byte-content record.
type Document struct {
	Name      string
	Content   []byte
	Extension string
	Kind      ContentKind
}

// Store keeps documents as regular files in one directory.
type Store struct {
	dir    string
	policy Policy
	mu     sync.Mutex // serializes mutations
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, policy Policy) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrStoreUnavailable, dir, err)
	}
	if policy == "" {
		policy = PolicyStrict
	}
	return &Store{dir: dir, policy: policy}, nil
}

// Policy returns the active extension policy.
func (s *Store) Policy() Policy {
	return s.policy
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// List returns the names of the regular, non-hidden files in the store, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing: %v", ErrStoreUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a document with exactly this name is stored.
// Names that are not safe to resolve inside the directory never exist.
func (s *Store) Exists(ctx context.Context, name string) bool {
	path, ok := s.resolve(name)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Read returns the named document.
func (s *Store) Read(ctx context.Context, name string) (*Document, error) {
	path, ok := s.resolve(name)
	if !ok {
		return nil, ErrNotFound
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreUnavailable, name, err)
	}

	ext := Extension(name)
	return &Document{
		Name:      name,
		Content:   content,
		Extension: ext,
		Kind:      KindFor(ext),
	}, nil
}

// ValidateName runs the creation checks in order and returns the trimmed name.
// The first failing check determines the error.
func (s *Store) ValidateName(ctx context.Context, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyName
	}

	ext := Extension(trimmed)
	if ext == "" {
		return "", ErrInvalidExtension
	}
	if !s.policy.permits(ext) {
		return "", ErrInvalidExtension
	}

	if s.Exists(ctx, trimmed) {
		return "", ErrDuplicateName
	}

	if !safeName(trimmed) {
		return "", ErrInvalidName
	}

	return trimmed, nil
}

// Create validates name and writes content under the trimmed name.
func (s *Store) Create(ctx context.Context, name string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed, err := s.ValidateName(ctx, name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, trimmed)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return "", ErrDuplicateName
	}
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrStoreUnavailable, trimmed, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: writing %s: %v", ErrStoreUnavailable, trimmed, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %v", ErrStoreUnavailable, trimmed, err)
	}

	return trimmed, nil
}

// Update replaces the content of an existing document.
func (s *Store) Update(ctx context.Context, name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists(ctx, name) {
		return ErrNotFound
	}

	path, _ := s.resolve(name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrStoreUnavailable, name, err)
	}
	return nil
}

// Delete removes a document irreversibly.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists(ctx, name) {
		return ErrNotFound
	}

	path, _ := s.resolve(name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: deleting %s: %v", ErrStoreUnavailable, name, err)
	}
	return nil
}

// resolve maps a document name onto a path inside the store directory.
func (s *Store) resolve(name string) (string, bool) {
	if !safeName(name) {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// Extension returns the substring after the last '.', or "" if there is none.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// KindFor maps an extension onto its content kind.
func KindFor(ext string) ContentKind {
	if ext == "md" {
		return KindMarkdown
	}
	return KindPlainText
}

// safeName rejects names that could escape the directory or hide files.
func safeName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return true
}
