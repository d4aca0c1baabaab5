package attach

import "errors"

var (
	// ErrPathEscape means a candidate path resolved outside the base directory.
	ErrPathEscape = errors.New("path escapes base directory")
	// ErrNotFound means the referenced file does not exist or is a directory.
	ErrNotFound = errors.New("file not found")
)
