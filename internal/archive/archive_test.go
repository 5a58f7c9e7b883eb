package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writeTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readTree(t testing.TB, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// rawArchive builds an archive by hand so tests can craft hostile entries.
func rawArchive(t *testing.T, version, flags uint16, entries []*tar.Header, contents []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(Header{Version: version, Flags: flags}.marshal())

	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for i, hdr := range entries {
		require.NoError(t, tw.WriteHeader(hdr))
		if i < len(contents) && contents[i] != "" {
			_, err := tw.Write([]byte(contents[i]))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPackUnpack(t *testing.T) {
	t.Run("round trip preserves tree", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{
			"a.txt":         "hi",
			"sub/b.txt":     "yo",
			"sub/deep/c.md": "# c",
			"empty/":        "",
			"bin.dat":       string([]byte{0, 1, 2, 255}),
		})
		archiveFile := filepath.Join(t.TempDir(), "hello.tdmcli")

		packed, err := Pack(context.Background(), src, archiveFile)
		require.NoError(t, err)
		assert.Equal(t, 4, packed.Files)
		assert.Equal(t, 3, packed.Dirs)

		dst := filepath.Join(t.TempDir(), "restored")
		unpacked, err := Unpack(context.Background(), archiveFile, dst)
		require.NoError(t, err)

		assert.Equal(t, readTree(t, src), readTree(t, dst))
		assert.Equal(t, packed.Files, unpacked.Files)
		assert.Equal(t, packed.Bytes, unpacked.Bytes)
	})

	t.Run("empty template round trips", func(t *testing.T) {
		src := t.TempDir()
		archiveFile := filepath.Join(t.TempDir(), "empty.tdmcli")

		_, err := Pack(context.Background(), src, archiveFile)
		require.NoError(t, err)

		dst := filepath.Join(t.TempDir(), "restored")
		_, err = Unpack(context.Background(), archiveFile, dst)
		require.NoError(t, err)
		assert.Empty(t, readTree(t, dst))
	})

	t.Run("archive starts with magic and version", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{"a.txt": "a"})
		archiveFile := filepath.Join(t.TempDir(), "a.tdmcli")

		_, err := Pack(context.Background(), src, archiveFile)
		require.NoError(t, err)

		data, err := os.ReadFile(archiveFile)
		require.NoError(t, err)
		assert.Equal(t, Magic[:], data[:8])
		assert.Equal(t, Version, binary.BigEndian.Uint16(data[8:10]))

		h, err := ReadHeader(archiveFile)
		require.NoError(t, err)
		assert.Equal(t, FlagGzip, h.Flags)
	})

	t.Run("pack leaves no temp files behind", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{"a.txt": "a"})
		out := t.TempDir()

		_, err := Pack(context.Background(), src, filepath.Join(out, "a.tdmcli"))
		require.NoError(t, err)

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.tdmcli", entries[0].Name())
	})

	t.Run("pack of missing source fails without output", func(t *testing.T) {
		out := t.TempDir()
		_, err := Pack(context.Background(), filepath.Join(out, "missing"), filepath.Join(out, "a.tdmcli"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("cancelled pack removes temp file", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{"a.txt": "a"})
		out := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Pack(ctx, src, filepath.Join(out, "a.tdmcli"))
		require.ErrorIs(t, err, context.Canceled)

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestUnpackRejectsInvalidArchives(t *testing.T) {
	reg := func(name, content string) *tar.Header {
		return &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}
	}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{
			name: "empty file",
			data: func(t *testing.T) []byte { return nil },
		},
		{
			name: "wrong magic",
			data: func(t *testing.T) []byte { return []byte("FILE: a.txt\nSIZE: 2\nhi\nEND_OF_FILE\n") },
		},
		{
			name: "future version",
			data: func(t *testing.T) []byte { return rawArchive(t, Version+1, FlagGzip, nil, nil) },
		},
		{
			name: "version zero",
			data: func(t *testing.T) []byte { return rawArchive(t, 0, FlagGzip, nil, nil) },
		},
		{
			name: "unknown flags",
			data: func(t *testing.T) []byte { return rawArchive(t, Version, FlagGzip|0x8000, nil, nil) },
		},
		{
			name: "corrupt payload",
			data: func(t *testing.T) []byte {
				h := Header{Version: Version, Flags: FlagGzip}.marshal()
				return append(h, []byte("definitely not gzip")...)
			},
		},
		{
			name: "truncated payload",
			data: func(t *testing.T) []byte {
				data := rawArchive(t, Version, FlagGzip,
					[]*tar.Header{reg("a.txt", "hello world")}, []string{"hello world"})
				return data[:len(data)-10]
			},
		},
		{
			name: "path traversal",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip,
					[]*tar.Header{reg("../evil.txt", "x")}, []string{"x"})
			},
		},
		{
			name: "absolute path",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip,
					[]*tar.Header{reg("/etc/evil", "x")}, []string{"x"})
			},
		},
		{
			name: "symlink escaping root",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip,
					[]*tar.Header{{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "../../etc/passwd"}}, nil)
			},
		},
		{
			name: "file written through chained symlinks",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip, []*tar.Header{
					{Name: "a/b/l", Typeflag: tar.TypeSymlink, Linkname: "../.."},
					{Name: "a/b/m", Typeflag: tar.TypeSymlink, Linkname: "l/.."},
					reg("a/b/m/evil.txt", "x"),
				}, []string{"", "", "x"})
			},
		},
		{
			name: "directory below a symlink",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip, []*tar.Header{
					{Name: "l", Typeflag: tar.TypeSymlink, Linkname: "."},
					{Name: "l/sub/", Typeflag: tar.TypeDir, Mode: 0o755},
				}, nil)
			},
		},
		{
			name: "directory entry over a symlink",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip, []*tar.Header{
					{Name: "a/b/l", Typeflag: tar.TypeSymlink, Linkname: "../.."},
					{Name: "a/b/m", Typeflag: tar.TypeSymlink, Linkname: "l/.."},
					{Name: "a/b/m/", Typeflag: tar.TypeDir, Mode: 0o755},
				}, nil)
			},
		},
		{
			name: "device entry",
			data: func(t *testing.T) []byte {
				return rawArchive(t, Version, FlagGzip,
					[]*tar.Header{{Name: "dev", Typeflag: tar.TypeChar, Mode: 0o644}}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archiveFile := filepath.Join(dir, "bad.tdmcli")
			require.NoError(t, os.WriteFile(archiveFile, tt.data(t), 0o644))

			dst := filepath.Join(dir, "out")
			_, err := Unpack(context.Background(), archiveFile, dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArchive), "got %v", err)

			assert.False(t, exists(filepath.Join(dir, "evil.txt")))
		})
	}
}

func TestReadHeader(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadHeader(filepath.Join(t.TempDir(), "missing.tdmcli"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ReadHeader(t.TempDir())
		assert.True(t, errors.Is(err, ErrInvalidArchive))
	})

	t.Run("legacy text format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "old.tdmcli")
		require.NoError(t, os.WriteFile(path, []byte("FILE: a.txt\nSIZE: 2\n"), 0o644))

		_, err := ReadHeader(path)
		assert.True(t, errors.Is(err, ErrInvalidArchive))
	})
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		root, err := os.MkdirTemp("", "tdmcli-archive-*")
		if err != nil {
			r.Fatalf("mkdtemp: %v", err)
		}
		defer os.RemoveAll(root)

		src := filepath.Join(root, "src")
		files := rapid.MapOfN(
			rapid.StringMatching(`[a-z]{1,6}(/[a-z]{1,6}){0,3}\.(txt|bin)`),
			rapid.SliceOf(rapid.Byte()),
			0, 15,
		).Draw(r, "files")
		if err := os.MkdirAll(src, 0o755); err != nil {
			r.Fatalf("mkdir: %v", err)
		}
		for rel, content := range files {
			path := filepath.Join(src, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				r.Fatalf("mkdir: %v", err)
			}
			if err := os.WriteFile(path, content, 0o644); err != nil {
				r.Fatalf("write: %v", err)
			}
		}

		archiveFile := filepath.Join(root, "t.tdmcli")
		if _, err := Pack(context.Background(), src, archiveFile); err != nil {
			r.Fatalf("Pack: %v", err)
		}
		dst := filepath.Join(root, "dst")
		if _, err := Unpack(context.Background(), archiveFile, dst); err != nil {
			r.Fatalf("Unpack: %v", err)
		}

		want, got := readTree(t, src), readTree(t, dst)
		if len(want) != len(got) {
			r.Fatalf("entry count: got %d want %d", len(got), len(want))
		}
		for rel, content := range want {
			if got[rel] != content {
				r.Fatalf("%s differs after round trip", rel)
			}
		}
	})
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
