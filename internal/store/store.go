// Package store keeps uploaded filings and their extracted bundles on disk.
//
// Layout under the data directory:
//
//	uploads/<filename>
//	artifacts/<filename>.json
//
// Every write goes to a temp file in the target directory and is renamed into
// place, so readers see either the old or the new content.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound means no upload or artifact exists for the name.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidName means the name is not a plain file name.
	ErrInvalidName = errors.New("store: invalid name")
	// ErrStale means the upload changed after the artifact was computed from it.
	ErrStale = errors.New("store: upload changed")
)

const maxNameLen = 200

// Store is the persistence the pipeline and API need.
type Store interface {
	SaveUpload(name string, data []byte) (FileInfo, error)
	ReadUpload(name string) ([]byte, error)
	StatUpload(name string) (FileInfo, error)
	ListUploads() ([]FileInfo, error)
	DeleteUpload(name string) error
	PutArtifact(name string, v any) error
	PutArtifactIfUnchanged(name string, source []byte, v any) error
	GetArtifact(name string, v any) error
	ReadArtifact(name string) ([]byte, error)
	Invalidate(name string) error
}

// FileInfo describes one upload.
type FileInfo struct {
	Name       string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Extracted  bool      `json:"extracted"`
}

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	mu          sync.RWMutex
	uploadDir   string
	artifactDir string
}

// NewLocalStore creates the directory layout under dataDir.
func NewLocalStore(dataDir string) (*LocalStore, error) {
	s := &LocalStore{
		uploadDir:   filepath.Join(dataDir, "uploads"),
		artifactDir: filepath.Join(dataDir, "artifacts"),
	}
	for _, dir := range []string{s.uploadDir, s.artifactDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return s, nil
}

// SanitizeFilename strips path components from an uploaded file name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "unnamed"
	}
	return name
}

// ValidateName accepts only names SanitizeFilename leaves unchanged.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLen || SanitizeFilename(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SaveUpload replaces the upload and drops any bundle extracted from the old bytes.
func (s *LocalStore) SaveUpload(name string, data []byte) (FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return FileInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.uploadDir, name, data); err != nil {
		return FileInfo{}, fmt.Errorf("writing upload: %w", err)
	}
	if err := removeIfExists(s.artifactPath(name)); err != nil {
		return FileInfo{}, fmt.Errorf("invalidating artifact: %w", err)
	}
	return s.statLocked(name)
}

// ReadUpload returns the raw bytes of an upload.
func (s *LocalStore) ReadUpload(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.uploadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: upload %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return data, nil
}

// StatUpload describes one upload.
func (s *LocalStore) StatUpload(name string) (FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return FileInfo{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statLocked(name)
}

func (s *LocalStore) statLocked(name string) (FileInfo, error) {
	fi, err := os.Stat(filepath.Join(s.uploadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return FileInfo{}, fmt.Errorf("%w: upload %s", ErrNotFound, name)
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat upload: %w", err)
	}
	_, aerr := os.Stat(s.artifactPath(name))
	return FileInfo{
		Name:       name,
		Size:       fi.Size(),
		UploadedAt: fi.ModTime().UTC(),
		Extracted:  aerr == nil,
	}, nil
}

// ListUploads returns every upload, most recent first.
func (s *LocalStore) ListUploads() ([]FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	list := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := s.statLocked(e.Name())
		if err != nil {
			continue
		}
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].UploadedAt.After(list[j].UploadedAt)
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// DeleteUpload removes an upload and its bundle.
func (s *LocalStore) DeleteUpload(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.uploadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: upload %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("deleting upload: %w", err)
	}
	if err := removeIfExists(s.artifactPath(name)); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// PutArtifact persists v as the bundle for name.
func (s *LocalStore) PutArtifact(name string, v any) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.artifactDir, name+".json", data); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

// PutArtifactIfUnchanged persists v only while the upload still holds source.
// The comparison and the write happen under one lock, so a concurrent
// SaveUpload either lands first (ErrStale) or removes the new artifact.
func (s *LocalStore) PutArtifactIfUnchanged(name string, source []byte, v any) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := os.ReadFile(filepath.Join(s.uploadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: upload %s removed", ErrStale, name)
	}
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	if !bytes.Equal(current, source) {
		return fmt.Errorf("%w: %s", ErrStale, name)
	}
	if err := writeFileAtomic(s.artifactDir, name+".json", data); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

// ReadArtifact returns the persisted bundle bytes for name.
func (s *LocalStore) ReadArtifact(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.artifactPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return data, nil
}

// GetArtifact decodes the persisted bundle for name into v.
func (s *LocalStore) GetArtifact(name string, v any) error {
	data, err := s.ReadArtifact(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", name, err)
	}
	return nil
}

// Invalidate drops the bundle for name. A missing bundle is not an error.
func (s *LocalStore) Invalidate(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.artifactPath(name))
}

func (s *LocalStore) artifactPath(name string) string {
	return filepath.Join(s.artifactDir, name+".json")
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
