package fsutil

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/tdmcli/tdmcli/internal/log"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of concurrent file copies when CopyOptions.Workers is unset.
var DefaultWorkers = runtime.NumCPU() * 4

// CopyOptions controls CopyTree.
type CopyOptions struct {
	// Workers bounds the number of files copied concurrently.
	Workers int

	// Skip, if set, is called for every entry below the source root with its
	// slash-separated relative path. Returning true skips the entry
	// (and its contents, for directories).
	Skip func(rel string, d fs.DirEntry) bool
}

// CopyResult summarizes a completed copy.
type CopyResult struct {
	Dirs     int
	Files    int
	Symlinks int
	Skipped  int
	Bytes    int64

	// Overwritten counts regular files that already existed in dst.
	Overwritten int
}

type dirTime struct {
	path    string
	modTime time.Time
}

// CopyTree recursively copies the directory src into dst.
// Directories are created as needed and existing files in dst are overwritten.
// File contents are copied byte for byte; modification times are restored
// on a best-effort basis. Symlinks are recreated, not followed.
//
// There is no rollback: on failure, entries already written stay in place and
// the returned *PathError has Partial set.
func CopyTree(ctx context.Context, src, dst string, opts CopyOptions) (*CopyResult, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, newPathError("copy", src, err)
	}
	if !info.IsDir() {
		return nil, &PathError{Op: "copy", Path: src, Kind: KindNotFound, Err: fmt.Errorf("not a directory")}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var (
		result  CopyResult
		files   atomic.Int64
		over    atomic.Int64
		bytes   atomic.Int64
		wrote   atomic.Bool
		dirs    []dirTime
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(workers)

	log.Debug(log.CatCopy, "copy tree", "src", src, "dst", dst, "workers", workers)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return newPathError("read", path, err)
		}
		if err := gctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return newPathError("copy", path, err)
		}
		target := filepath.Join(dst, rel)

		if rel != "." && opts.Skip != nil && opts.Skip(filepath.ToSlash(rel), d) {
			result.Skipped++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return newPathError("stat", path, err)
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return newPathError("mkdir", target, err)
			}
			wrote.Store(true)
			result.Dirs++
			dirs = append(dirs, dirTime{path: target, modTime: info.ModTime()})

		case d.Type()&fs.ModeSymlink != 0:
			if err := copySymlink(path, target); err != nil {
				log.Warn(log.CatCopy, "skipping symlink", "path", path, "error", err)
				result.Skipped++
				return nil
			}
			wrote.Store(true)
			result.Symlinks++

		case d.Type().IsRegular():
			g.Go(func() error {
				if fi, err := os.Lstat(target); err == nil && fi.Mode().IsRegular() {
					over.Add(1)
				}
				n, err := copyFile(path, target, info.Mode().Perm(), info.ModTime())
				if n > 0 || err == nil {
					wrote.Store(true)
				}
				if err != nil {
					return err
				}
				files.Add(1)
				bytes.Add(n)
				return nil
			})

		default:
			log.Warn(log.CatCopy, "skipping special file", "path", path, "mode", d.Type().String())
			result.Skipped++
		}
		return nil
	})

	waitErr := g.Wait()

	result.Files = int(files.Load())
	result.Overwritten = int(over.Load())
	result.Bytes = bytes.Load()

	// File writes touch directory mtimes, so restore them last, deepest first.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Chtimes(dirs[i].path, dirs[i].modTime, dirs[i].modTime)
	}

	err = walkErr
	if waitErr != nil {
		err = waitErr
	}
	if err != nil {
		pe := newPathError("copy", src, err)
		pe.Partial = wrote.Load()
		log.Debug(log.CatCopy, "copy tree failed", "src", src, "dst", dst, "path", pe.Path, "error", pe.Err)
		return &result, pe
	}

	log.Debug(log.CatCopy, "copy tree done", "dirs", result.Dirs, "files", result.Files, "bytes", result.Bytes)
	return &result, nil
}

// copyFile copies a single regular file and restores its modification time.
func copyFile(src, dst string, perm fs.FileMode, modTime time.Time) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, newPathError("open", src, err)
	}
	defer in.Close()

	// A symlink at the destination would redirect the write elsewhere.
	if fi, err := os.Lstat(dst); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(dst); err != nil {
			return 0, newPathError("remove", dst, err)
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0o600)
	if err != nil {
		return 0, newPathError("create", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, newPathError("write", dst, err)
	}
	if err := out.Close(); err != nil {
		return n, newPathError("write", dst, err)
	}

	if err := os.Chtimes(dst, modTime, modTime); err != nil {
		log.Debug(log.CatCopy, "could not restore mtime", "path", dst, "error", err)
	}
	return n, nil
}

// copySymlink recreates the symlink at src as dst, replacing any existing entry.
func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if fi, err := os.Lstat(dst); err == nil && !fi.IsDir() {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	return os.Symlink(link, dst)
}
