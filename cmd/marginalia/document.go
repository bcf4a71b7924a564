package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/marginalia/core/errors"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/core/tree/htmltree"
	"github.com/FocuswithJustin/marginalia/core/tree/xmltree"
	"github.com/FocuswithJustin/marginalia/internal/validation"
)

// document is a loaded chapter: the container annotations are anchored in
// and a writer for the whole file.
type document interface {
	tree.Container
	Write(w io.Writer) error
}

// loadDocument parses path and selects the container. For XHTML root is an
// XPath expression; for HTML it is an element id.
func loadDocument(path, root string) (document, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid document path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	kind, err := validation.DetectFileType(f, path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch kind {
	case validation.FileTypeHTML:
		d, err := htmltree.Parse(f)
		if err != nil {
			return nil, err
		}
		if root == "" {
			return d, nil
		}
		return d.SelectID(root)
	case validation.FileTypeXHTML:
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is not an XHTML or HTML document (%s)", path, kind)
	}

	d, err := xmltree.Parse(f)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return d, nil
	}
	return d.Select(root)
}

// writeDocument writes d to path, or to w when path is empty.
func writeDocument(d document, path string, w io.Writer) error {
	if path == "" {
		return d.Write(w)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	return f.Close()
}

// defaultScope names a document's annotations after its file.
func defaultScope(path, scope string) string {
	if scope != "" {
		return scope
	}
	return filepath.Base(path)
}
