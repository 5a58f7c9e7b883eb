package fsutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/tdmcli/tdmcli/internal/log"
)

// MoveTree moves the directory src to dst. dst must not exist.
// A plain rename is tried first; when src and dst are on different devices
// the tree is copied and the source removed. If that copy fails the partial
// destination is removed and src is left untouched.
func MoveTree(ctx context.Context, src, dst string, opts CopyOptions) error {
	if Exists(dst) {
		return &PathError{Op: "move", Path: dst, Kind: KindExists, Err: ErrExists}
	}
	if _, err := os.Stat(src); err != nil {
		return newPathError("move", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return newPathError("mkdir", filepath.Dir(dst), err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		log.Debug(log.CatCopy, "renamed tree", "src", src, "dst", dst)
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return newPathError("move", src, err)
	}

	log.Debug(log.CatCopy, "cross-device move, copying", "src", src, "dst", dst)
	return copyMove(ctx, src, dst, opts)
}

// copyMove moves src to dst by copying the tree and removing src.
// A failed copy removes the partial dst and leaves src untouched.
func copyMove(ctx context.Context, src, dst string, opts CopyOptions) error {
	if _, err := CopyTree(ctx, src, dst, opts); err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			log.Warn(log.CatCopy, "could not clean up partial move", "path", dst, "error", rmErr)
		}
		return err
	}
	if err := os.RemoveAll(src); err != nil {
		return newPathError("remove", src, err)
	}
	return nil
}

// RemoveTree removes path and everything below it.
// Returns a *PathError of KindNotFound if path does not exist.
func RemoveTree(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return newPathError("remove", path, err)
	}
	if err := os.RemoveAll(path); err != nil {
		return newPathError("remove", path, err)
	}
	return nil
}

// EnsureWritableDir creates dir if needed and verifies that files can be created in it.
func EnsureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newPathError("mkdir", dir, err)
	}
	isDir, err := IsDir(dir)
	if err != nil {
		return err
	}
	if !isDir {
		return &PathError{Op: "mkdir", Path: dir, Kind: KindExists, Err: fmt.Errorf("not a directory")}
	}

	probe, err := os.CreateTemp(dir, ".tdmcli-probe-*")
	if err != nil {
		return newPathError("write", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// IsEmptyDir reports whether dir exists and contains no entries.
func IsEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, newPathError("read", dir, err)
	}
	return len(entries) == 0, nil
}
