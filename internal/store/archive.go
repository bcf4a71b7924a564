package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/errors"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// Injectable for testing.
var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
)

// Export writes the annotations of scope (all scopes when empty) to w as
// xz-compressed JSON lines and returns how many were written.
func (s *Store) Export(ctx context.Context, w io.Writer, scope string) (int, error) {
	anns, err := s.ListByScope(ctx, scope)
	if err != nil {
		return 0, err
	}
	xw, err := xzNewWriter(w)
	if err != nil {
		return 0, errors.Wrap(err, "create xz writer")
	}
	enc := json.NewEncoder(xw)
	for _, a := range anns {
		if err := enc.Encode(a); err != nil {
			xw.Close()
			return 0, errors.Wrapf(err, "encode %s", a.ID)
		}
	}
	if err := xw.Close(); err != nil {
		return 0, errors.Wrap(err, "close xz writer")
	}
	logging.Info("annotations exported", "scope", scope, "count", len(anns))
	return len(anns), nil
}

// Import reads an Export stream and saves every annotation, replacing any
// with the same id. Records that fail validation stop the import; those saved
// before remain.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	xr, err := xzNewReader(r)
	if err != nil {
		return 0, errors.NewParse("xz", "", err.Error())
	}
	dec := json.NewDecoder(xr)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		var a annotation.Annotation
		err := dec.Decode(&a)
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.NewParse("jsonl", fmt.Sprintf("record %d", count+1), err.Error())
		}
		if err := s.Save(ctx, &a); err != nil {
			return count, errors.Wrapf(err, "import record %d", count+1)
		}
		count++
	}
	logging.Info("annotations imported", "count", count)
	return count, nil
}
