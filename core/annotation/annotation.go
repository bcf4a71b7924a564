// Package annotation defines the annotation records the engine produces and
// consumes, and the detector that classifies how two annotations overlap.
//
// Records are plain structs with JSON tags. The engine never persists them;
// see internal/store for the SQLite collaborator.
package annotation

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/errors"
)

// DefaultColor is used when a style names no color.
const DefaultColor = "yellow"

// Colors lists the style color tokens markers can carry.
var Colors = map[string]bool{
	"yellow": true,
	"green":  true,
	"blue":   true,
	"pink":   true,
	"purple": true,
	"orange": true,
}

// Style is the visual treatment of a marker.
type Style struct {
	Color string `json:"color"`
}

// ColorOrDefault returns the color token, defaulting to DefaultColor.
func (s Style) ColorOrDefault() string {
	if s.Color == "" {
		return DefaultColor
	}
	return s.Color
}

// Note is a comment attached to an annotation. Notes are kept in creation
// order.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []string  `json:"tags,omitempty"`
}

// Annotation is a user selection with its durable position, the text it
// covered when created, and the user's style, notes and computed relations.
type Annotation struct {
	ID string `json:"id"`
	// Scope names the document section, e.g. a chapter href.
	Scope     string           `json:"scope"`
	Position  *anchor.Position `json:"position"`
	Text      string           `json:"text"`
	Style     Style            `json:"style"`
	Notes     []Note           `json:"notes,omitempty"`
	Relations []RelationRef    `json:"relations,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// New returns an annotation with a fresh id. text is the snapshot and never
// changes afterwards.
func New(scope string, pos *anchor.Position, text string, style Style) *Annotation {
	ts := now()
	if pos != nil && !pos.CreatedAt.IsZero() {
		ts = pos.CreatedAt
	}
	if style.Color == "" {
		style.Color = DefaultColor
	}
	return &Annotation{
		ID:        uuid.NewString(),
		Scope:     scope,
		Position:  pos,
		Text:      text,
		Style:     style,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// AddNote appends a note and returns it.
func (a *Annotation) AddNote(content string, tags ...string) Note {
	ts := now()
	n := Note{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: ts,
		UpdatedAt: ts,
		Tags:      normalizeTags(tags),
	}
	a.Notes = append(a.Notes, n)
	a.UpdatedAt = ts
	return n
}

// UpdateNote replaces a note's content. It reports whether the note exists.
func (a *Annotation) UpdateNote(id, content string) bool {
	for i := range a.Notes {
		if a.Notes[i].ID == id {
			ts := now()
			a.Notes[i].Content = content
			a.Notes[i].UpdatedAt = ts
			a.UpdatedAt = ts
			return true
		}
	}
	return false
}

// RemoveNote deletes a note, keeping the order of the rest.
func (a *Annotation) RemoveNote(id string) bool {
	i := slices.IndexFunc(a.Notes, func(n Note) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	a.Notes = slices.Delete(a.Notes, i, i+1)
	a.UpdatedAt = now()
	return true
}

// SetStyle changes the marker style.
func (a *Annotation) SetStyle(s Style) {
	if s.Color == "" {
		s.Color = DefaultColor
	}
	a.Style = s
	a.UpdatedAt = now()
}

// SetRelations replaces the computed relations.
func (a *Annotation) SetRelations(refs []RelationRef) {
	a.Relations = refs
	a.UpdatedAt = now()
}

// Validate checks the record before it is stored.
func (a *Annotation) Validate() error {
	if _, err := uuid.Parse(a.ID); err != nil {
		return &errors.ValidationError{Field: "id", Value: a.ID, Message: "not a UUID", Err: err}
	}
	if strings.TrimSpace(a.Text) == "" {
		return errors.NewValidation("text", "snapshot must not be empty")
	}
	if a.Position == nil {
		return errors.NewValidation("position", "missing")
	}
	if !Colors[a.Style.ColorOrDefault()] {
		return &errors.ValidationError{Field: "style.color", Value: a.Style.Color, Message: "unknown color"}
	}
	for _, r := range a.Relations {
		if !r.Type.Valid() {
			return &errors.ValidationError{Field: "relations.type", Value: string(r.Type), Message: "unknown relation"}
		}
		if r.OtherID == a.ID {
			return errors.NewValidation("relations.other_id", "annotation related to itself")
		}
	}
	for _, n := range a.Notes {
		if n.ID == "" {
			return errors.NewValidation("notes.id", "missing")
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
