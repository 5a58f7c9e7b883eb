package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/tdmcli/tdmcli/internal/log"
)

// Unpack validates the header of archiveFile and reconstructs its tree under
// dstDir, creating dstDir if needed. Entries that would land outside dstDir
// are rejected with ErrInvalidArchive.
//
// On failure, entries already extracted stay in place; callers that need
// all-or-nothing behavior should unpack into a staging directory.
func Unpack(ctx context.Context, archiveFile, dstDir string) (*Manifest, error) {
	f, err := os.Open(archiveFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := readArchive(ctx, bufio.NewReader(f), dstDir)
	if err != nil {
		return nil, err
	}

	log.Debug(log.CatArchive, "unpacked", "archive", archiveFile, "dst", dstDir,
		"dirs", m.Dirs, "files", m.Files, "bytes", m.Bytes)
	return m, nil
}

type dirTime struct {
	path    string
	modTime time.Time
}

func readArchive(ctx context.Context, r io.Reader, dstDir string) (*Manifest, error) {
	if _, err := readHeader(r); err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, err
	}

	tr := tar.NewReader(zr)
	m := &Manifest{}
	var dirs []dirTime

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}

		target, err := entryPath(dstDir, hdr.Name)
		if err != nil {
			return nil, err
		}
		if target == "" {
			continue
		}
		if err := checkParents(dstDir, target); err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				return nil, fmt.Errorf("%w: directory %q replaces a symlink", ErrInvalidArchive, hdr.Name)
			}
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return nil, err
			}
			dirs = append(dirs, dirTime{path: target, modTime: hdr.ModTime})
			m.Dirs++

		case tar.TypeReg:
			n, err := extractFile(tr, target, os.FileMode(hdr.Mode).Perm(), hdr.ModTime)
			if err != nil {
				return nil, err
			}
			m.Files++
			m.Bytes += n

		case tar.TypeSymlink:
			if err := checkLink(hdr.Name, hdr.Linkname); err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
				if err := os.Remove(target); err != nil {
					return nil, err
				}
			}
			if err := os.Symlink(filepath.FromSlash(hdr.Linkname), target); err != nil {
				log.Warn(log.CatArchive, "skipping symlink", "path", target, "error", err)
				continue
			}
			m.Symlinks++

		default:
			return nil, fmt.Errorf("%w: unsupported entry type %q for %s", ErrInvalidArchive, hdr.Typeflag, hdr.Name)
		}
	}

	// Drain the gzip trailer so checksum and truncation errors surface.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Chtimes(dirs[i].path, dirs[i].modTime, dirs[i].modTime)
	}
	return m, nil
}

// entryPath maps an archive entry name to a path under dstDir.
// Returns "" for the root entry itself.
func entryPath(dstDir, name string) (string, error) {
	if name == "" || strings.Contains(name, `\`) || path.IsAbs(name) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: illegal entry name %q", ErrInvalidArchive, name)
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: entry %q escapes the template root", ErrInvalidArchive, name)
	}
	return filepath.Join(dstDir, filepath.FromSlash(clean)), nil
}

// checkLink rejects symlinks that point outside the template root.
func checkLink(name, link string) error {
	if link == "" || path.IsAbs(link) || filepath.IsAbs(link) {
		return fmt.Errorf("%w: symlink %q has absolute target", ErrInvalidArchive, name)
	}
	resolved := path.Clean(path.Join(path.Dir(path.Clean(name)), link))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return fmt.Errorf("%w: symlink %q points outside the template root", ErrInvalidArchive, name)
	}
	return nil
}

// checkParents rejects targets whose parent directories, below dstDir, include
// a symlink. Link targets are only checked as text, so a chain of links can
// still resolve outside dstDir on disk; nothing is ever written through one.
func checkParents(dstDir, target string) error {
	rel, err := filepath.Rel(dstDir, filepath.Dir(target))
	if err != nil || rel == "." {
		return nil
	}
	cur := dstDir
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			rel, _ := filepath.Rel(dstDir, target)
			return fmt.Errorf("%w: entry %q lies below symlink %q", ErrInvalidArchive,
				filepath.ToSlash(rel), filepath.ToSlash(strings.TrimPrefix(cur, dstDir+string(filepath.Separator))))
		}
	}
	return nil
}

func extractFile(r io.Reader, target string, perm os.FileMode, modTime time.Time) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return 0, err
		}
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		if errors.Is(err, io.ErrUnexpectedEOF) || isCorrupt(err) {
			return n, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, target, err)
		}
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}
	_ = os.Chtimes(target, modTime, modTime)
	return n, nil
}

// isCorrupt reports whether err comes from a damaged gzip or tar stream.
func isCorrupt(err error) bool {
	return errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, tar.ErrHeader)
}
