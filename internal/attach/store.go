package attach

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Entry describes one directory entry of an attachment folder.
type Entry struct {
	Name  string     `json:"name"`
	IsDir bool       `json:"isDir"`
	Size  int64      `json:"size"`
	MTime *time.Time `json:"mtime"`
}

// Store reads and writes files inside attachment folders. Folder paths are
// expected to be resolved through the sandbox already; basenames are
// re-sanitized here as defense in depth.
type Store struct {
	locks *PathLock
}

func NewStore(locks *PathLock) *Store {
	if locks == nil {
		locks = NewPathLock()
	}
	return &Store{locks: locks}
}

// List enumerates the folder. A missing folder yields an empty slice, not
// an error: "no folder yet" is a valid state for a record.
func (s *Store) List(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		e := Entry{Name: d.Name(), IsDir: d.IsDir()}
		if info, err := d.Info(); err == nil {
			e.Size = info.Size()
			mt := info.ModTime()
			e.MTime = &mt
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadFile returns the file's contents. Missing files and directories both
// map to ErrNotFound.
func (s *Store) ReadFile(dir, basename string) ([]byte, error) {
	path := filepath.Join(dir, filepath.Base(basename))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, basename)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", basename, err)
	}
	return data, nil
}

// WriteFile stores the contents under basename, creating the folder if
// needed. An existing file is never overwritten: the name gets a " (n)"
// suffix before the extension until a free one is found. Returns the
// basename actually used.
func (s *Store) WriteFile(dir, basename string, r io.Reader) (string, error) {
	name := filepath.Base(basename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("empty filename")
	}

	unlock := s.locks.Lock(dir)
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", dir, err)
	}
	target := uniquePath(filepath.Join(dir, name))

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Base(target), err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return filepath.Base(target), nil
}

// DeleteFile removes a single file. ErrNotFound if absent or a directory.
func (s *Store) DeleteFile(dir, basename string) error {
	path := filepath.Join(dir, filepath.Base(basename))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, basename)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", basename, err)
	}
	return nil
}

// DeleteTree removes the whole folder recursively. Non-existence is fine.
func (s *Store) DeleteTree(dir string) error {
	return os.RemoveAll(dir)
}

// uniquePath returns path unchanged if free, otherwise inserts " (1)",
// " (2)", ... before the extension until the name is unused.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(cand); errors.Is(err, fs.ErrNotExist) {
			return cand
		}
	}
}
