package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidKey is returned for keys that are empty or try to escape the store directory.
	ErrInvalidKey = errors.New("invalid blob key")
	// ErrBlobNotFound is returned when no blob exists for a key.
	ErrBlobNotFound = errors.New("blob not found")
)

const (
	tempPrefix       = ".tmp-"
	quarantinePrefix = ".hold-"
	maxKeyAttempts   = 64
)

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// BlobStore persists uploaded files flat on disk under a base directory.
type BlobStore struct {
	baseDir string
	now     func() time.Time
}

// NewBlobStore ensures the base directory exists and returns a handle.
func NewBlobStore(baseDir string) (*BlobStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &BlobStore{baseDir: baseDir, now: time.Now}, nil
}

// Put streams r into a new blob named after originalName and returns its metadata.
// The data is written to a temp file first so a failed write never leaves a visible blob.
// The temp file is hard-linked into place, which fails instead of replacing an existing
// blob; on a key collision the next millisecond is tried.
func (s *BlobStore) Put(r io.Reader, originalName string) (BlobInfo, error) {
	name := SanitizeName(originalName)

	tmp, err := os.CreateTemp(s.baseDir, tempPrefix+"*")
	if err != nil {
		return BlobInfo{}, fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close() //nolint:errcheck
		return BlobInfo{}, fmt.Errorf("write blob stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return BlobInfo{}, fmt.Errorf("close temp blob: %w", err)
	}

	ms := s.now().UnixMilli()
	for attempt := int64(0); attempt < maxKeyAttempts; attempt++ {
		key := fmt.Sprintf("%d-%s", ms+attempt, name)
		target := filepath.Join(s.baseDir, key)
		if err := os.Link(tmpPath, target); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return BlobInfo{}, fmt.Errorf("commit blob: %w", err)
		}
		info, err := os.Stat(target)
		if err != nil {
			return BlobInfo{Key: key, Size: size, LastModified: s.now()}, nil
		}
		return BlobInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
	}
	return BlobInfo{}, fmt.Errorf("commit blob: no free key for %s after %d attempts", name, maxKeyAttempts)
}

// Exists reports whether a blob is stored under key.
func (s *BlobStore) Exists(key string) (bool, error) {
	_, err := s.Metadata(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrBlobNotFound) {
		return false, nil
	}
	return false, err
}

// Metadata returns size and modification time for a blob.
func (s *BlobStore) Metadata(key string) (BlobInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return BlobInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BlobInfo{}, ErrBlobNotFound
		}
		return BlobInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	if info.IsDir() {
		return BlobInfo{}, ErrBlobNotFound
	}
	return BlobInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

// Open returns a read-only handle for the blob together with its metadata.
func (s *BlobStore) Open(key string) (*os.File, BlobInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, BlobInfo{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, BlobInfo{}, ErrBlobNotFound
		}
		return nil, BlobInfo{}, fmt.Errorf("open blob: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, BlobInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	return file, BlobInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

// Delete removes a blob. It returns false when the blob was already gone.
func (s *BlobStore) Delete(key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete blob: %w", err)
	}
	return true, nil
}

// Hold moves a blob aside so it can be restored if a surrounding operation fails.
// A missing blob is not an error; the returned release and restore funcs become no-ops.
func (s *BlobStore) Hold(key string) (release func() error, restore func() error, err error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}
	held := filepath.Join(s.baseDir, quarantinePrefix+key)
	if err := os.Rename(path, held); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			noop := func() error { return nil }
			return noop, noop, nil
		}
		return nil, nil, fmt.Errorf("hold blob: %w", err)
	}
	release = func() error {
		if err := os.Remove(held); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("release held blob: %w", err)
		}
		return nil
	}
	restore = func() error {
		if err := os.Rename(held, path); err != nil {
			return fmt.Errorf("restore held blob: %w", err)
		}
		return nil
	}
	return release, restore, nil
}

// List returns visible blobs whose key starts with prefix, newest first.
func (s *BlobStore) List(prefix string) ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	result := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat blob %s: %w", name, err)
		}
		result = append(result, BlobInfo{Key: name, Size: info.Size(), LastModified: info.ModTime()})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastModified.After(result[j].LastModified)
	})
	return result, nil
}

// SweepExpired deletes every file, including abandoned temp and held files, last modified
// more than maxAge ago. Files that disappear mid-sweep are skipped.
func (s *BlobStore) SweepExpired(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("sweep blobs: %w", err)
	}
	cutoff := s.now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("stat blob %s: %w", entry.Name(), err)
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("delete expired blob %s: %w", entry.Name(), err)
		}
		deleted++
	}
	return deleted, nil
}

// ValidateKey rejects keys that could resolve outside the store directory.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") || strings.ContainsRune(key, 0) {
		return ErrInvalidKey
	}
	if filepath.Base(key) != key || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}

// SanitizeName replaces every character outside [A-Za-z0-9._-] with an underscore.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.ReplaceAll(b.String(), "..", "_")
	if out == "" || out == "." || out == "/" {
		return "file"
	}
	return out
}

// KeyTimestamp extracts the creation time encoded in a blob key.
func KeyTimestamp(key string) (time.Time, bool) {
	idx := strings.IndexByte(key, '-')
	if idx <= 0 {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(key[:idx], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Dir exposes the base directory (useful for debugging).
func (s *BlobStore) Dir() string {
	return s.baseDir
}

func (s *BlobStore) resolve(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.Base(key)), nil
}
