package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CredentialFilename is the fixed key under which the credential is persisted.
const CredentialFilename = "user.json"

// CredentialStore persists the current credential. Implementations replace
// the whole record on Save and never expose partial updates.
type CredentialStore interface {
	// Save overwrites any existing credential.
	Save(creds *Credential) error
	// Load returns the stored credential, or nil when none is stored.
	Load() (*Credential, error)
	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear() error
}

// FileStore handles credential persistence to the filesystem.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a credential store at the specified directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			dir = ".todoctl"
		} else {
			dir = filepath.Join(home, ".todoctl")
		}
	}
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the credential file.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the full path of the credential file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, CredentialFilename)
}

// Save persists the credential. The file is written to a temporary sibling
// and renamed into place so readers never observe a half-written record.
func (s *FileStore) Save(creds *Credential) error {
	if creds == nil {
		return ErrInvalidCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".user-*.json")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp credentials file: %w", err)
	}
	if _, err := tmp.Write(creds.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

// Load reads the credential from disk.
func (s *FileStore) Load() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	creds, err := NewCredential(data)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

// Clear removes the credential file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}

// MemoryStore keeps the credential in memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements CredentialStore.
func (s *MemoryStore) Save(creds *Credential) error {
	if creds == nil {
		return ErrInvalidCredential
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

// Load implements CredentialStore.
func (s *MemoryStore) Load() (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

// Clear implements CredentialStore.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
