// Package archive packs a template tree into a single portable .tdmcli file
// and unpacks it again.
//
// Layout of a .tdmcli file:
//
//	offset 0   magic "TDMCLI\x00\x1a" (8 bytes)
//	offset 8   format version, uint16 big-endian
//	offset 10  flags, uint16 big-endian (bit 0: gzip payload)
//	offset 12  payload: gzip-compressed tar stream
//
// The tar stream holds one directory entry per directory (empty ones included)
// and one regular entry per file, named by slash-separated path relative to
// the template root.
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Version is the archive format version written by Pack.
const Version uint16 = 1

const (
	// FlagGzip marks a gzip-compressed payload.
	FlagGzip uint16 = 1 << 0

	knownFlags = FlagGzip
	headerSize = 12
)

// Magic identifies a .tdmcli archive.
var Magic = [8]byte{'T', 'D', 'M', 'C', 'L', 'I', 0x00, 0x1a}

// ErrInvalidArchive is returned for files that are not readable archives:
// wrong magic, unsupported version or flags, or a corrupt payload.
var ErrInvalidArchive = errors.New("invalid archive")

// Header is the fixed-size prefix of an archive file.
type Header struct {
	Version uint16
	Flags   uint16
}

// Manifest summarizes the entries written or read.
type Manifest struct {
	Dirs     int
	Files    int
	Symlinks int
	Bytes    int64
}

func (h Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf, Magic[:])
	binary.BigEndian.PutUint16(buf[8:], h.Version)
	binary.BigEndian.PutUint16(buf[10:], h.Flags)
	return buf
}

// validate rejects headers this build cannot read.
func (h Header) validate() error {
	if h.Version == 0 || h.Version > Version {
		return fmt.Errorf("%w: unsupported format version %d (this build reads up to %d)", ErrInvalidArchive, h.Version, Version)
	}
	if h.Flags&^knownFlags != 0 {
		return fmt.Errorf("%w: unknown flags %#04x", ErrInvalidArchive, h.Flags)
	}
	if h.Flags&FlagGzip == 0 {
		return fmt.Errorf("%w: uncompressed payloads are not supported", ErrInvalidArchive)
	}
	return nil
}

// readHeader reads and validates the archive header from r.
func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: file too short", ErrInvalidArchive)
		}
		return Header{}, err
	}
	if !bytes.Equal(buf[:8], Magic[:]) {
		return Header{}, fmt.Errorf("%w: not a tdmcli archive", ErrInvalidArchive)
	}
	h := Header{
		Version: binary.BigEndian.Uint16(buf[8:]),
		Flags:   binary.BigEndian.Uint16(buf[10:]),
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ReadHeader opens path and validates its archive header.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Header{}, err
	}
	if info.IsDir() {
		return Header{}, fmt.Errorf("%w: %s is a directory", ErrInvalidArchive, path)
	}

	return readHeader(f)
}
