package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrPermission  = errors.New("storage permission denied")
	ErrExhausted   = errors.New("storage resources exhausted")
	ErrIO          = errors.New("storage i/o failure")
	ErrInvalidPath = errors.New("invalid storage path")
)

// classify tags err with the storage error kind it maps to, keeping the
// underlying error in the chain.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s failed: %w: %w", op, path, kindOf(err), err)
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE), errors.Is(err, syscall.ENOSPC):
		return ErrExhausted
	default:
		return ErrIO
	}
}
