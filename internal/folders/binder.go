// Package folders couples each Ausschreibung row to its attachment folder
// on disk and keeps the two in sync across create, rename and delete.
package folders

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"ausschreibungen/internal/attach"
)

var (
	// ErrFolderExists means the target folder name is taken and the caller
	// did not opt into reusing it.
	ErrFolderExists = errors.New("folder already exists")
	// ErrMoveFailed means both the atomic rename and the copy+delete
	// fallback failed; the record update must be aborted.
	ErrMoveFailed = errors.New("folder move failed")
)

type Binder struct {
	base  string
	locks *attach.PathLock
	log   *slog.Logger
}

func NewBinder(base string, locks *attach.PathLock, log *slog.Logger) *Binder {
	if locks == nil {
		locks = attach.NewPathLock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Binder{base: base, locks: locks, log: log}
}

// DesiredName is the sanitized user-chosen folder name, or the record id
// when no usable name was supplied.
func (b *Binder) DesiredName(id int, ordnername string) string {
	if name := attach.SanitizeFolderName(ordnername); name != "" {
		return name
	}
	return strconv.Itoa(id)
}

// Taken reports whether a folder with the given desired name already
// exists under the base directory.
func (b *Binder) Taken(id int, ordnername string) (bool, error) {
	target, err := attach.Resolve(b.base, b.DesiredName(id, ordnername))
	if err != nil {
		return false, err
	}
	return dirExists(target), nil
}

// Allocate creates the record's folder and returns its absolute path. An
// existing folder is a conflict unless useExisting is set, in which case
// it is adopted as-is.
func (b *Binder) Allocate(id int, ordnername string, useExisting bool) (string, error) {
	target, err := attach.Resolve(b.base, b.DesiredName(id, ordnername))
	if err != nil {
		return "", err
	}

	unlock := b.locks.Lock(target)
	defer unlock()

	if dirExists(target) {
		if !useExisting {
			return "", fmt.Errorf("%w: %s", ErrFolderExists, filepath.Base(target))
		}
		return target, nil
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", filepath.Base(target), err)
	}
	return target, nil
}

// CurrentPath is the folder the record points at right now: the stored
// path if it still exists on disk, otherwise the conventional base/<id>
// location. A stale stored path heals transparently on the next write.
func (b *Binder) CurrentPath(id int, stored *string) string {
	if stored != nil && *stored != "" {
		if p, err := attach.Resolve(b.base, *stored); err == nil && dirExists(p) {
			return p
		}
	}
	p, _ := attach.Resolve(b.base, strconv.Itoa(id))
	return p
}

// Rename relocates the record's folder to the new desired name and returns
// the new path. The move must succeed before the caller persists the path;
// on ErrMoveFailed the row update is aborted and the source folder is left
// intact. Falls back to copy+delete when an atomic rename is not possible
// (e.g. across devices), never overwriting anything at the destination.
func (b *Binder) Rename(id int, stored *string, ordnername string, useExisting bool) (string, error) {
	current := b.CurrentPath(id, stored)
	target, err := attach.Resolve(b.base, b.DesiredName(id, ordnername))
	if err != nil {
		return "", err
	}
	if target == current {
		return target, nil
	}

	unlock := b.locks.Lock(target)
	defer unlock()

	targetExists := dirExists(target)
	if targetExists && !useExisting {
		return "", fmt.Errorf("%w: %s", ErrFolderExists, filepath.Base(target))
	}
	if !dirExists(current) {
		// Nothing to move; make sure the target exists.
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", fmt.Errorf("create folder %s: %w", filepath.Base(target), err)
		}
		return target, nil
	}
	if targetExists {
		// Explicit reuse: adopt the existing folder, source stays behind.
		return target, nil
	}

	if renameErr := os.Rename(current, target); renameErr != nil {
		if copyErr := copyTree(current, target); copyErr != nil {
			return "", fmt.Errorf("%w: rename: %v, copy: %v", ErrMoveFailed, renameErr, copyErr)
		}
		if rmErr := os.RemoveAll(current); rmErr != nil {
			// Accepted risk: both copies coexist until someone cleans up.
			b.log.Warn("source folder left behind after copy", "path", current, "err", rmErr)
		}
	}
	return target, nil
}

// Remove deletes the record's folder tree, best-effort. Failures are
// logged only; the row-level delete has already happened.
func (b *Binder) Remove(id int, stored *string) {
	current := b.CurrentPath(id, stored)
	if err := os.RemoveAll(current); err != nil {
		b.log.Warn("folder cleanup failed", "id", id, "path", current, "err", err)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// copyTree copies src into dst recursively, refusing to overwrite any
// existing file at the destination.
func copyTree(src, dst string) error {
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
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
