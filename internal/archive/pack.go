package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/tdmcli/tdmcli/internal/log"
)

// Pack writes the tree rooted at srcDir to archiveFile.
// The archive is written to a temporary file next to archiveFile and renamed
// into place, so a failed Pack never leaves a truncated archive behind.
func Pack(ctx context.Context, srcDir, archiveFile string) (*Manifest, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", srcDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archiveFile), "."+filepath.Base(archiveFile)+".tmp-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	m, err := writeArchive(ctx, tmp, srcDir)
	if err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, archiveFile); err != nil {
		return nil, err
	}
	committed = true

	log.Debug(log.CatArchive, "packed", "src", srcDir, "archive", archiveFile,
		"dirs", m.Dirs, "files", m.Files, "bytes", m.Bytes)
	return m, nil
}

// writeArchive writes the header and payload for srcDir to w.
func writeArchive(ctx context.Context, w io.Writer, srcDir string) (*Manifest, error) {
	h := Header{Version: Version, Flags: FlagGzip}
	if _, err := w.Write(h.marshal()); err != nil {
		return nil, err
	}

	zw := gzip.NewWriter(w)
	tw := tar.NewWriter(zw)
	m := &Manifest{}

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return addEntry(tw, m, path, filepath.ToSlash(rel), d)
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return m, nil
}

// addEntry writes a single tar entry for path.
func addEntry(tw *tar.Writer, m *Manifest, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    name,
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
		Format:  tar.FormatPAX,
	}

	switch {
	case d.IsDir():
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		m.Dirs++
		return tw.WriteHeader(hdr)

	case d.Type()&fs.ModeSymlink != 0:
		link, err := os.Readlink(path)
		if err != nil {
			return err
		}
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = filepath.ToSlash(link)
		m.Symlinks++
		return tw.WriteHeader(hdr)

	case d.Type().IsRegular():
		hdr.Typeflag = tar.TypeReg
		hdr.Size = info.Size()
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := io.Copy(tw, f)
		if err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		m.Files++
		m.Bytes += n
		return nil

	default:
		log.Warn(log.CatArchive, "skipping special file", "path", path, "mode", d.Type().String())
		return nil
	}
}
