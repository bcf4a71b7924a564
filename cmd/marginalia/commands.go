package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/engine"
	"github.com/FocuswithJustin/marginalia/core/errors"
	"github.com/FocuswithJustin/marginalia/core/sqlite"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/internal/logging"
	"github.com/FocuswithJustin/marginalia/internal/store"
	"github.com/FocuswithJustin/marginalia/internal/validation"
)

// AnchorCmd creates an annotation from a character range.
type AnchorCmd struct {
	File  string   `arg:"" help:"XHTML or HTML document" type:"existingfile"`
	Start int      `required:"" help:"Start offset in characters of container text"`
	End   int      `required:"" help:"End offset (exclusive)"`
	Scope string   `help:"Scope name (default: file name)"`
	Color string   `help:"Marker color" default:"yellow"`
	Note  string   `help:"Attach a note"`
	Tags  []string `name:"tag" help:"Tags for the note"`
	Out   string   `help:"Write the painted document to this path" type:"path"`
}

func (c *AnchorCmd) Run(ctx context.Context, g *Globals) error {
	d, err := loadDocument(c.File, g.Root)
	if err != nil {
		return err
	}
	tm := tree.NewTextMap(d, d.Root())
	if c.Start < 0 || c.End > tm.Len() || c.Start >= c.End {
		return errors.NewValidation("range", fmt.Sprintf("[%d,%d) is not inside [0,%d)", c.Start, c.End, tm.Len()))
	}
	sb, _ := tm.Locate(c.Start, false)
	eb, _ := tm.Locate(c.End, true)

	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	scope := defaultScope(c.File, c.Scope)
	existing, err := s.ListByScope(ctx, scope)
	if err != nil {
		return err
	}

	eng := engine.New(g.engineConfig())
	sel := engine.Selection{Span: tree.Span{Start: sb, End: eb}, Scope: scope}
	a, ok := eng.CreateAnnotation(sel, d, annotation.Style{Color: c.Color})
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "range [%d,%d) could not be anchored", c.Start, c.End)
	}
	if c.Note != "" {
		a.AddNote(c.Note, c.Tags...)
	}
	a.SetRelations(eng.ClassifyAgainstExisting(a, existing, d))
	if err := s.Save(ctx, a); err != nil {
		return err
	}
	if err := saveInverse(ctx, s, a, existing); err != nil {
		return err
	}

	if c.Out != "" {
		if err := writeDocument(d, c.Out, nil); err != nil {
			return err
		}
	}
	fmt.Fprintf(g.stdout(), "%s\t%q\n", a.ID, a.Text)
	return nil
}

// saveInverse records a's relations on the other side.
func saveInverse(ctx context.Context, s *store.Store, a *annotation.Annotation, others []*annotation.Annotation) error {
	byID := make(map[string]*annotation.Annotation, len(others))
	for _, o := range others {
		byID[o.ID] = o
	}
	for _, ref := range a.Relations {
		o, ok := byID[ref.OtherID]
		if !ok {
			continue
		}
		rels := withoutRelation(o.Relations, a.ID)
		o.SetRelations(append(rels, annotation.RelationRef{Type: ref.Type.Inverse(), OtherID: a.ID}))
		if err := s.Save(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func withoutRelation(refs []annotation.RelationRef, id string) []annotation.RelationRef {
	var out []annotation.RelationRef
	for _, r := range refs {
		if r.OtherID != id {
			out = append(out, r)
		}
	}
	return out
}

// ListCmd lists annotations.
type ListCmd struct {
	Scope string `help:"Only this scope"`
}

func (c *ListCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	anns, err := s.ListByScope(ctx, c.Scope)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCOPE\tCOLOR\tNOTES\tTEXT")
	for _, a := range anns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.Scope, a.Style.ColorOrDefault(), len(a.Notes), truncate(a.Text, 40))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// ShowCmd prints one annotation.
type ShowCmd struct {
	ID string `arg:"" help:"Annotation id"`
}

func (c *ShowCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(g.stdout())
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// DeleteCmd deletes an annotation and drops relations pointing at it.
type DeleteCmd struct {
	ID string `arg:"" help:"Annotation id"`
}

func (c *DeleteCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, c.ID); err != nil {
		return err
	}
	others, err := s.ListByScope(ctx, a.Scope)
	if err != nil {
		return err
	}
	for _, o := range others {
		rels := withoutRelation(o.Relations, c.ID)
		if len(rels) == len(o.Relations) {
			continue
		}
		o.SetRelations(rels)
		if err := s.Save(ctx, o); err != nil {
			return err
		}
	}
	fmt.Fprintf(g.stdout(), "deleted %s\n", c.ID)
	return nil
}

// NoteAddCmd appends a note.
type NoteAddCmd struct {
	ID      string   `arg:"" help:"Annotation id"`
	Content string   `arg:"" help:"Note text"`
	Tags    []string `name:"tag" help:"Tags for the note"`
}

func (c *NoteAddCmd) Run(ctx context.Context, g *Globals) error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.NewValidation("content", "is empty")
	}
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	n := a.AddNote(c.Content, c.Tags...)
	if err := s.Save(ctx, a); err != nil {
		return err
	}
	fmt.Fprintln(g.stdout(), n.ID)
	return nil
}

// ResolveCmd reports how each annotation of a scope resolves.
type ResolveCmd struct {
	File  string `arg:"" help:"XHTML or HTML document" type:"existingfile"`
	Scope string `help:"Scope name (default: file name)"`
}

func (c *ResolveCmd) Run(ctx context.Context, g *Globals) error {
	d, err := loadDocument(c.File, g.Root)
	if err != nil {
		return err
	}
	anns, closeStore, err := scopeAnnotations(ctx, g, defaultScope(c.File, c.Scope))
	if err != nil {
		return err
	}
	defer closeStore()

	eng := engine.New(g.engineConfig())
	tm := tree.NewTextMap(d, d.Root())
	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVIA\tSTART\tEND\tSTALE\tTEXT")
	unresolved := 0
	for _, a := range anns {
		res, ok := eng.Resolve(a, d)
		if !ok {
			unresolved++
			fmt.Fprintf(tw, "%s\tunresolved\t-\t-\t-\t%s\n", a.ID, truncate(a.Text, 40))
			continue
		}
		start, end, _ := tm.Interval(res.Span)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%s\n", a.ID, res.Via, start, end, a.Position.Stale(d), truncate(a.Text, 40))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if unresolved > 0 {
		logging.Warn("annotations did not resolve", "count", unresolved, "total", len(anns))
	}
	return nil
}

// scopeAnnotations opens the store and lists one scope.
func scopeAnnotations(ctx context.Context, g *Globals, scope string) ([]*annotation.Annotation, func(), error) {
	s, err := g.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	anns, err := s.ListByScope(ctx, scope)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return anns, func() { s.Close() }, nil
}

// PaintCmd restores every annotation of a scope and writes the document.
type PaintCmd struct {
	File  string `arg:"" help:"XHTML or HTML document" type:"existingfile"`
	Scope string `help:"Scope name (default: file name)"`
	Out   string `short:"o" help:"Output path (default: stdout)" type:"path"`
}

func (c *PaintCmd) Run(ctx context.Context, g *Globals) error {
	d, err := loadDocument(c.File, g.Root)
	if err != nil {
		return err
	}
	anns, closeStore, err := scopeAnnotations(ctx, g, defaultScope(c.File, c.Scope))
	if err != nil {
		return err
	}
	defer closeStore()

	eng := engine.New(g.engineConfig())
	painted := 0
	for _, a := range anns {
		if eng.RestoreAnnotation(a, d) {
			painted++
		}
	}
	logging.Info("annotations painted", "painted", painted, "total", len(anns))
	return writeDocument(d, c.Out, g.stdout())
}

// RelateCmd recomputes and stores relations for a scope.
type RelateCmd struct {
	File  string `arg:"" help:"XHTML or HTML document" type:"existingfile"`
	Scope string `help:"Scope name (default: file name)"`
	All   bool   `help:"Also print independent pairs"`
}

func (c *RelateCmd) Run(ctx context.Context, g *Globals) error {
	d, err := loadDocument(c.File, g.Root)
	if err != nil {
		return err
	}
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	anns, err := s.ListByScope(ctx, defaultScope(c.File, c.Scope))
	if err != nil {
		return err
	}
	eng := engine.New(g.engineConfig())
	out := g.stdout()
	for _, a := range anns {
		refs := eng.ClassifyAgainstExisting(a, anns, d)
		a.SetRelations(refs)
		if err := s.Save(ctx, a); err != nil {
			return err
		}
		for _, r := range refs {
			if r.Type == annotation.Independent && !c.All {
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", a.ID, r.Type, r.OtherID)
		}
	}
	return nil
}

// ExportCmd writes an export archive.
type ExportCmd struct {
	Out   string `short:"o" required:"" help:"Archive path" type:"path"`
	Scope string `help:"Only this scope"`
}

func (c *ExportCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Create(c.Out)
	if err != nil {
		return errors.NewIO("create", c.Out, err)
	}
	n, err := s.Export(ctx, f, c.Scope)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewIO("close", c.Out, err)
	}
	fmt.Fprintf(g.stdout(), "exported %d annotations to %s\n", n, c.Out)
	return nil
}

// ImportCmd loads an export archive.
type ImportCmd struct {
	File string `arg:"" help:"Archive path" type:"existingfile"`
}

func (c *ImportCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return errors.NewIO("open", c.File, err)
	}
	defer f.Close()
	kind, err := validation.DetectFileType(f, c.File)
	if err != nil {
		return err
	}
	if kind != validation.FileTypeXZ {
		return errors.NewParse("xz", c.File, "not an xz archive")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.NewIO("seek", c.File, err)
	}
	n, err := s.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "imported %d annotations\n", n)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.stdout(), "marginalia version %s (sqlite driver: %s)\n", version, sqlite.DriverType())
	return nil
}
