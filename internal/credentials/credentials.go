// ABOUTME: YAML-backed credential store mapping usernames to bcrypt hashes
// ABOUTME: Whole-file load/save with atomic writes and timing-safe password verification

package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrStoreUnavailable  = errors.New("credential store unavailable")
	ErrPasswordTooLong   = errors.New("password longer than 72 bytes")
)

// dummyHash is compared against when a user does not exist so that
// verification takes the same time for known and unknown usernames.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// Store persists credentials as a single YAML mapping of username to bcrypt hash.
type Store struct {
	path   string
	cost   int
	mu     sync.Mutex // single-writer discipline for read-modify-write
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCost sets the bcrypt cost used for new accounts.
func WithCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a credential store backed by the YAML file at path.
// The file does not need to exist yet.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		cost:   bcrypt.DefaultCost,
		logger: slog.Default().With("component", "credentials"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the full mapping. A missing file yields an empty mapping;
// no default account is seeded.
func (s *Store) Load(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreUnavailable, s.path, err)
	}

	accounts := map[string]string{}
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrStoreUnavailable, s.path, err)
	}
	// An empty document decodes to a nil map
	if accounts == nil {
		accounts = map[string]string{}
	}
	return accounts, nil
}

// Save atomically replaces the whole mapping on disk.
func (s *Store) Save(ctx context.Context, accounts map[string]string) error {
	data, err := yaml.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrStoreUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStoreUnavailable, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.yml")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", ErrStoreUnavailable, err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("%w: chmod temp file: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return nil
}

// Exists reports whether username has an account.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	accounts, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := accounts[username]
	return ok, nil
}

// Verify reports whether username exists and password matches its hash.
// Unknown users and wrong passwords are false with a nil error; a store that
// cannot be read returns ErrStoreUnavailable.
func (s *Store) Verify(ctx context.Context, username, password string) (bool, error) {
	accounts, err := s.Load(ctx)
	if err != nil {
		return false, err
	}

	hash, ok := accounts[username]
	if !ok || hash == "" {
		// Do a dummy bcrypt comparison to maintain constant timing
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false, nil
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// CreateAccount hashes password and adds username to the mapping.
func (s *Store) CreateAccount(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := accounts[username]; ok {
		return ErrDuplicateUsername
	}

	// bcrypt only reads the first 72 bytes
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	accounts[username] = string(hash)
	if err := s.Save(ctx, accounts); err != nil {
		return err
	}
	s.logger.Debug("account stored", "username", username, "accounts", len(accounts))
	return nil
}
