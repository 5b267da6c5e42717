package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// sealedExtensions are the dataset source formats Seal encrypts.
var sealedExtensions = map[string]bool{
	".csv":     true,
	".db":      true,
	".sqlite":  true,
	".sqlite3": true,
	".parquet": true,
}

// Seal encrypts every dataset source file under the data directory with the
// passphrase and marks the directory as sealed.
func (s *Storage) Seal(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return fmt.Errorf("data directory is already sealed")
	}
	if len(passphrase) < 8 {
		return fmt.Errorf("passphrase must be at least 8 characters")
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	encrypted, err := encryptData([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, encrypted, 0644); err != nil {
		return fmt.Errorf("failed to write verification file: %w", err)
	}

	files, err := s.sourceFiles()
	if err != nil {
		os.Remove(verifyPath)
		return fmt.Errorf("failed to scan files: %w", err)
	}

	for _, path := range files {
		if err := rewriteFile(path, func(data []byte) ([]byte, error) {
			if isAgeEncrypted(data) {
				return data, nil
			}
			return encryptData(data, recipient)
		}); err != nil {
			s.rollback(files, identity)
			os.Remove(verifyPath)
			return fmt.Errorf("failed to seal %s: %w", filepath.Base(path), err)
		}
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("sealed"), 0644); err != nil {
		return fmt.Errorf("failed to create marker file: %w", err)
	}

	s.sealed = true
	s.identity = identity
	s.recipient = recipient
	return nil
}

// Unseal decrypts every sealed file and removes the marker.
func (s *Storage) Unseal(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sealed {
		return fmt.Errorf("data directory is not sealed")
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if err := s.verify(identity); err != nil {
		return err
	}

	files, err := s.sourceFiles()
	if err != nil {
		return fmt.Errorf("failed to scan files: %w", err)
	}
	for _, path := range files {
		if err := rewriteFile(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return data, nil
			}
			return decryptData(data, identity)
		}); err != nil {
			return fmt.Errorf("failed to unseal %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.sealed = false
	s.identity = nil
	s.recipient = nil
	return nil
}

func (s *Storage) sourceFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || s.skipSeal(path) {
			return nil
		}
		if sealedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func rewriteFile(path string, transform func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := transform(data)
	if err != nil {
		return err
	}
	return atomicWrite(path, out, 0644)
}

// rollback best-effort decrypts files sealed during a failed Seal.
func (s *Storage) rollback(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		_ = rewriteFile(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return data, nil
			}
			return decryptData(data, identity)
		})
	}
}
