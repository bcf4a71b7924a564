// Package validation checks user-supplied paths and sniffs the kind of file
// behind them before the CLI opens a parser or database.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxPathLength is the maximum accepted path length.
const MaxPathLength = 4096

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrTypeMismatch     = errors.New("file type mismatch")
)

// ValidatePath rejects empty or overlong paths and paths carrying NUL or
// control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// FileType is a detected input kind.
type FileType string

const (
	FileTypeXHTML   FileType = "xhtml"
	FileTypeHTML    FileType = "html"
	FileTypeXZ      FileType = "xz"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeUnknown FileType = "unknown"
)

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// DetectFileType reads the head of r and decides what filename holds.
//
// Binary formats are recognised by magic bytes. Markup is XHTML when it has
// an XML declaration or the XHTML namespace; otherwise the extension decides
// (.xhtml, .xml and .opf are XHTML, .html and .htm are HTML) and text with no
// telling extension is treated as HTML. A binary head under a markup
// extension is ErrTypeMismatch.
func DetectFileType(r io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			if ext := extensionType(filename); ext == FileTypeXHTML || ext == FileTypeHTML {
				return FileTypeUnknown, fmt.Errorf("%w: %s has %s content", ErrTypeMismatch, filepath.Base(filename), sig.fileType)
			}
			return sig.fileType, nil
		}
	}

	if !isLikelyText(buf) {
		return FileTypeUnknown, nil
	}
	head := bytes.ToLower(bytes.TrimLeft(buf, "\ufeff \t\r\n"))
	if bytes.HasPrefix(head, []byte("<?xml")) || bytes.Contains(head, []byte("http://www.w3.org/1999/xhtml")) {
		return FileTypeXHTML, nil
	}
	if extensionType(filename) == FileTypeXHTML {
		return FileTypeXHTML, nil
	}
	return FileTypeHTML, nil
}

func extensionType(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xhtml", ".xml", ".opf":
		return FileTypeXHTML
	case ".html", ".htm":
		return FileTypeHTML
	case ".xz":
		return FileTypeXZ
	case ".db", ".sqlite", ".sqlite3":
		return FileTypeSQLite
	}
	return FileTypeUnknown
}

// isLikelyText reports whether buf has no NUL bytes and is mostly printable.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 || bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 || b == '\t' || b == '\n' || b == '\r':
			printable++
		default:
			control++
		}
	}
	return float64(printable)/float64(printable+control) > 0.95
}
