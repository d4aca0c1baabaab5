package attach

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolve joins candidate onto base and returns the canonical absolute path,
// or ErrPathEscape if the result leaves base. The candidate may be relative
// or absolute; either way the resolved path must equal base or sit strictly
// below it. Must be called on every externally supplied path component
// before any filesystem syscall.
func Resolve(base, candidate string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base: %w", err)
	}
	absBase = filepath.Clean(absBase)

	target := candidate
	if !filepath.IsAbs(target) {
		target = filepath.Join(absBase, target)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve candidate: %w", err)
	}
	absTarget = filepath.Clean(absTarget)

	if absTarget != absBase && !strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, candidate)
	}
	return absTarget, nil
}
