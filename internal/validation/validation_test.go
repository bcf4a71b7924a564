package validation

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError error
	}{
		{"valid relative path", "ch01.xhtml", nil},
		{"valid absolute path", "/tmp/annotations.db", nil},
		{"empty path", "", ErrEmptyPath},
		{"path with null byte", "file\x00.xhtml", ErrInvalidCharacter},
		{"path with control character", "dir/file\n.xhtml", ErrInvalidCharacter},
		{"very long path", strings.Repeat("a/", 2048) + "file.xhtml", ErrPathTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if !errors.Is(err, tt.wantError) {
				t.Errorf("ValidatePath(%q) error = %v, want %v", tt.path, err, tt.wantError)
			}
		})
	}
}

func TestDetectFileType(t *testing.T) {
	xzHead := []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x04}
	tests := []struct {
		name     string
		content  []byte
		filename string
		want     FileType
		wantErr  error
	}{
		{"xhtml extension", []byte("<html><body><p>x</p></body></html>"), "ch01.xhtml", FileTypeXHTML, nil},
		{"html extension", []byte("<html><body><p>x</p></body></html>"), "ch01.html", FileTypeHTML, nil},
		{"xml declaration wins", []byte("<?xml version=\"1.0\"?>\n<html/>"), "ch01.html", FileTypeXHTML, nil},
		{"xhtml namespace wins", []byte(`<html xmlns="http://www.w3.org/1999/xhtml"><body/></html>`), "ch01.htm", FileTypeXHTML, nil},
		{"bom before declaration", []byte("\ufeff<?xml version=\"1.0\"?><html/>"), "ch01", FileTypeXHTML, nil},
		{"unknown extension text", []byte("<p>tag soup"), "chapter", FileTypeHTML, nil},
		{"xz archive", xzHead, "export.jsonl.xz", FileTypeXZ, nil},
		{"sqlite database", []byte("SQLite format 3\x00rest"), "marginalia.db", FileTypeSQLite, nil},
		{"xz named as xhtml", xzHead, "ch01.xhtml", FileTypeUnknown, ErrTypeMismatch},
		{"binary", []byte{0x00, 0x01, 0x02, 0x03}, "blob", FileTypeUnknown, nil},
		{"empty", nil, "empty.xhtml", FileTypeUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(bytes.NewReader(tt.content), tt.filename)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DetectFileType() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFileType() = %s, want %s", got, tt.want)
			}
		})
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestDetectFileType_ReadError(t *testing.T) {
	if _, err := DetectFileType(errReader{}, "x.xhtml"); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("DetectFileType() error = %v, want the read error", err)
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"ascii", []byte("plain text\n"), true},
		{"utf-8", []byte("ἐν ἀρχῇ ἦν ὁ λόγος"), true},
		{"null byte", []byte("abc\x00def"), false},
		{"control heavy", []byte{0x01, 0x02, 0x03, 'a'}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if got := isLikelyText(tt.buf); got != tt.want {
			t.Errorf("isLikelyText(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
