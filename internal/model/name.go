package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// ArchiveExt is the file extension of exported templates.
const ArchiveExt = ".tdmcli"

// maxNameLen is the longest name most filesystems accept as a single path component.
const maxNameLen = 255

var (
	// ErrInvalidName is returned when a template name cannot be used as a directory name.
	ErrInvalidName = errors.New("invalid template name")

	reservedChars = `<>:"/\|?*`

	reservedNames = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}
)

// ValidateName checks that name can be used as a template name.
// Names map directly to snapshot directory names, so anything that is not a
// portable single path component is rejected.
// Returns an error wrapping ErrInvalidName.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidName, maxNameLen)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q must not start with a dot", ErrInvalidName, name)
	}
	for _, r := range name {
		if strings.ContainsRune(reservedChars, r) {
			return fmt.Errorf("%w: %q contains reserved character %q", ErrInvalidName, name, r)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return fmt.Errorf("%w: %q must not end with a dot or space", ErrInvalidName, name)
	}
	base := strings.ToUpper(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedNames[base] {
		return fmt.Errorf("%w: %q is a reserved device name", ErrInvalidName, name)
	}
	return nil
}

// NameFromArchive derives a template name from an archive file path.
// "exports/hello.tdmcli" yields "hello".
func NameFromArchive(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ArchiveExt) {
		base = base[:len(base)-len(ArchiveExt)]
	}
	return base
}

// ArchiveFileName returns the file name an exported template is written to.
func ArchiveFileName(name string) string {
	return name + ArchiveExt
}
