// Package storage reads dataset source files that may be sealed with an age
// passphrase.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
)

const (
	// ageHeader is the prefix of age-encrypted files
	ageHeader = "age-encryption.org"

	// markerFile indicates the data directory is sealed
	markerFile = ".sealed"

	// verifyFile holds an encrypted magic string used to check the passphrase
	verifyFile = ".seal-verify"

	verifyMagic = `{"magic":"moneymoved-seal-verify","version":1}`
)

// ErrLocked is returned when a sealed file is read before Unlock.
var ErrLocked = errors.New("file is sealed but storage is locked")

// ErrBadPassphrase is returned when a passphrase does not open the verify file.
var ErrBadPassphrase = errors.New("incorrect passphrase")

// Storage gives the dataset loaders transparent access to plain or sealed
// files under one data directory.
type Storage struct {
	baseDir   string
	sealed    bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	mu        sync.RWMutex
}

// New creates a Storage rooted at baseDir.
func New(baseDir string) (*Storage, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", baseDir)
	}

	s := &Storage{baseDir: baseDir}
	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.sealed = true
	}
	return s, nil
}

// BaseDir returns the data directory.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Resolve makes a relative source path absolute against the data directory.
func (s *Storage) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// IsSealed reports whether the data directory carries the seal marker.
func (s *Storage) IsSealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// IsUnlocked reports whether sealed files can be read.
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.sealed || s.identity != nil
}

// Unlock verifies the passphrase and keeps the identity for later reads.
func (s *Storage) Unlock(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sealed {
		return nil
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if err := s.verify(identity); err != nil {
		return err
	}

	s.identity = identity
	s.recipient, _ = age.NewScryptRecipient(passphrase)
	return nil
}

// Lock drops the identity from memory.
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

func (s *Storage) verify(identity *age.ScryptIdentity) error {
	encrypted, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return fmt.Errorf("failed to read verification file: %w", err)
	}
	decrypted, err := decryptData(encrypted, identity)
	if err != nil || string(decrypted) != verifyMagic {
		return ErrBadPassphrase
	}
	return nil
}

// ReadFile reads path and decrypts it when it is sealed.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Resolve(path))
	if err != nil {
		return nil, err
	}
	if !isAgeEncrypted(data) {
		return data, nil
	}
	if s.identity == nil {
		return nil, ErrLocked
	}
	return decryptData(data, s.identity)
}

// OpenFile returns a reader over the plain content of path.
func (s *Storage) OpenFile(path string) (io.ReadCloser, error) {
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Materialize returns a path to a plain copy of path for readers that need a
// real file, such as SQLite. Unsealed files are returned as is. The cleanup
// function removes any temporary copy and is always safe to call.
func (s *Storage) Materialize(path string) (string, func(), error) {
	noop := func() {}
	resolved := s.Resolve(path)

	sealed, err := isSealedFile(resolved)
	if err != nil {
		return "", noop, err
	}
	if !sealed {
		return resolved, noop, nil
	}

	data, err := s.ReadFile(resolved)
	if err != nil {
		return "", noop, err
	}

	tmp, err := os.CreateTemp("", "moneymoved-*"+filepath.Ext(resolved))
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { os.Remove(tmp.Name()) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return tmp.Name(), cleanup, nil
}

// WriteFile writes data, sealing it when the directory is sealed and unlocked.
func (s *Storage) WriteFile(path string, data []byte, perm os.FileMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path = s.Resolve(path)
	if !s.skipSeal(path) && s.sealed && s.recipient != nil {
		encrypted, err := encryptData(data, s.recipient)
		if err != nil {
			return fmt.Errorf("failed to encrypt: %w", err)
		}
		data = encrypted
	}
	return atomicWrite(path, data, perm)
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// skipSeal reports whether path is one of the bookkeeping files.
func (s *Storage) skipSeal(path string) bool {
	base := filepath.Base(path)
	return base == markerFile || base == verifyFile
}

func isAgeEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}

// isSealedFile checks the header without reading the whole file.
func isSealedFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(ageHeader)+1)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return isAgeEncrypted(head[:n]), nil
}
