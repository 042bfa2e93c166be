// Package datastore holds the filesystem primitives for per-tenant
// data: memory documents (one JSON file per tenant) and tenant file
// trees (one directory per tenant). Operations are atomic enough at
// single-file granularity only; there are no cross-file transactions.
package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Store resolves and manipulates tenant data under a fixed directory
// layout: <memoryDir>/<gptId>.json for memory documents and
// <filesDir>/<gptId>/<filename> for files.
type Store struct {
	memoryDir string
	filesDir  string
	logger    *slog.Logger
}

// New creates a store rooted at the given memory and files directories.
func New(memoryDir, filesDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{memoryDir: memoryDir, filesDir: filesDir, logger: logger}
}

// MemoryDir returns the directory holding all tenants' memory documents.
func (s *Store) MemoryDir() string { return s.memoryDir }

// FilesDir returns the directory holding all tenants' file trees.
func (s *Store) FilesDir() string { return s.filesDir }

// EnsureDirectories creates the memory and files directories if absent.
func (s *Store) EnsureDirectories() error {
	for _, dir := range []string{s.memoryDir, s.filesDir} {
		if err := EnsureDir(dir); err != nil {
			return fmt.Errorf("ensuring data directory %s: %w", dir, err)
		}
	}
	return nil
}

// MemoryPath returns the path of a tenant's memory document.
func (s *Store) MemoryPath(gptID string) string {
	return filepath.Join(s.memoryDir, gptID+".json")
}

// FilePath returns the path of one tenant file.
func (s *Store) FilePath(gptID, filename string) string {
	return filepath.Join(s.filesDir, gptID, filename)
}

// ReadMemory reads and validates a memory document.
func (s *Store) ReadMemory(path string) (json.RawMessage, error) {
	s.logger.Debug("reading memory document", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading memory %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("memory document %s is not valid JSON", path)
	}
	return data, nil
}

// WriteMemory writes a memory document, indented for readability.
func (s *Store) WriteMemory(path string, doc json.RawMessage) error {
	s.logger.Debug("writing memory document", "path", path)

	var buf any
	if err := json.Unmarshal(doc, &buf); err != nil {
		return fmt.Errorf("parsing memory document: %w", err)
	}
	data, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding memory document: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing memory %s: %w", path, err)
	}
	return nil
}

// ClearMemory resets a memory document to an empty object. The file is
// retained.
func (s *Store) ClearMemory(path string) error {
	s.logger.Debug("clearing memory document", "path", path)
	return s.WriteMemory(path, json.RawMessage("{}"))
}

// ReadFile returns the raw contents of a tenant file.
func (s *Store) ReadFile(path string) ([]byte, error) {
	s.logger.Debug("reading file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}

// WriteFile stores raw content as a tenant file, creating the tenant's
// directory when needed.
func (s *Store) WriteFile(path string, content []byte) error {
	s.logger.Debug("writing file", "path", path)

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("ensuring tenant directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes a tenant file. Removing an absent file is not an error.
func (s *Store) DeleteFile(path string) error {
	s.logger.Debug("deleting file", "path", path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates a directory and its parents if absent.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// CopyDir recursively copies the contents of src into dst, overwriting
// existing files. dst must already exist. Symlinks and other non-regular
// files are skipped.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return EnsureDir(target)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
