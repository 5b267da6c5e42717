package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const passphrase = "testpassword123"

func writePlain(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestSealUnsealRoundtrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	csvPath := filepath.Join(dir, "payments.csv")
	original := []byte("payment_date,payment_amount_usd\n2024-07-01,100.00\n")
	writePlain(t, csvPath, original)

	read, err := store.ReadFile("payments.csv")
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch before sealing")
	}

	if err := store.Seal(passphrase); err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}
	if !store.IsSealed() {
		t.Error("Expected IsSealed() to return true")
	}

	rawData, _ := os.ReadFile(csvPath)
	if !isAgeEncrypted(rawData) {
		t.Error("File should be encrypted on disk")
	}

	read, err = store.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("Failed to read sealed file: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch after sealing: got %q, want %q", read, original)
	}

	store.Lock()
	if _, err := store.ReadFile(csvPath); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
	if err := store.Unlock(passphrase); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}

	if err := store.Unseal(passphrase); err != nil {
		t.Fatalf("Failed to unseal: %v", err)
	}
	if store.IsSealed() {
		t.Error("Expected IsSealed() to return false after unseal")
	}
	rawData, _ = os.ReadFile(csvPath)
	if string(rawData) != string(original) {
		t.Errorf("Raw content mismatch after unseal")
	}
}

func TestReopenSealedDirectory(t *testing.T) {
	dir := t.TempDir()
	writePlain(t, filepath.Join(dir, "a.csv"), []byte("x\n1\n"))

	store, _ := New(dir)
	if err := store.Seal(passphrase); err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	if !reopened.IsSealed() || reopened.IsUnlocked() {
		t.Fatal("Reopened storage should be sealed and locked")
	}
	if err := reopened.Unlock("wrongpassword"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("Expected ErrBadPassphrase, got %v", err)
	}
	if err := reopened.Unlock(passphrase); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if !reopened.IsUnlocked() {
		t.Error("Expected IsUnlocked() after Unlock")
	}
}

func TestSealPassphraseTooShort(t *testing.T) {
	store, _ := New(t.TempDir())
	if err := store.Seal("short"); err == nil {
		t.Error("Expected error for short passphrase")
	}
}

func TestSealSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	notes := filepath.Join(dir, "catalog.yaml")
	content := []byte("datasets: {}\n")
	writePlain(t, notes, content)

	if err := store.Seal(passphrase); err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	rawData, _ := os.ReadFile(notes)
	if string(rawData) != string(content) {
		t.Error("Non-dataset file should be unchanged")
	}
}

func TestWriteFileSealsWhenUnlocked(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	if err := store.Seal(passphrase); err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	content := []byte("a,b\n1,2\n")
	if err := store.WriteFile("new.csv", content, 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	rawData, _ := os.ReadFile(filepath.Join(dir, "new.csv"))
	if !isAgeEncrypted(rawData) {
		t.Error("New file should be encrypted on disk")
	}
}

func TestMaterialize(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	dbPath := filepath.Join(dir, "payments.db")
	content := []byte("not really sqlite")
	writePlain(t, dbPath, content)

	path, cleanup, err := store.Materialize("payments.db")
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if path != dbPath {
		t.Errorf("Plain file should be returned as is, got %s", path)
	}
	cleanup()

	if err := store.Seal(passphrase); err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}
	path, cleanup, err = store.Materialize(dbPath)
	if err != nil {
		t.Fatalf("Materialize sealed failed: %v", err)
	}
	if path == dbPath {
		t.Error("Sealed file should be copied to a temporary path")
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(content) {
		t.Errorf("Temporary copy mismatch: %q", got)
	}
	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Temporary copy should be removed by cleanup")
	}
}

func TestNewRejectsMissingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}
