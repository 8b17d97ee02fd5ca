package crm

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Shortcut declares a direct field a class carries in place of a full
// (source, property, target) triple. Literal shortcuts hold strings instead
// of entity references.
type Shortcut struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Literal bool   `json:"literal,omitempty"`
}

// declaredShortcuts lists the shortcut fields each class introduces.
// Subclasses inherit them through the ancestry table.
var declaredShortcuts = map[string][]Shortcut{
	"E2":  {{Code: "P4", Field: "timespan"}},
	"E4":  {{Code: "P7", Field: "took_place_at"}},
	"E5":  {{Code: "P11", Field: "participants"}},
	"E7":  {{Code: "P14", Field: "carried_out_by"}},
	"E12": {{Code: "P108", Field: "has_produced"}},
	"E19": {{Code: "P55", Field: "current_location"}},
	"E24": {{Code: "P108i", Field: "produced_by"}},
	"E39": {{Code: "P74", Field: "residence"}},
	"E52": {
		{Code: "P79", Field: "begin_of_the_begin", Literal: true},
		{Code: "P80", Field: "end_of_the_end", Literal: true},
	},
}

// genericFields are the value-holding properties every entity carries.
var genericFields = []Shortcut{
	{Code: "P1", Field: "identifiers", Literal: true},
	{Code: "P2", Field: "type", Literal: true},
	{Code: "P3", Field: "notes", Literal: true},
}

func buildShortcutTable(r *Registry) map[string][]Shortcut {
	table := make(map[string][]Shortcut, len(r.classOrder))
	for _, code := range r.classOrder {
		seen := make(map[string]struct{})
		var list []Shortcut
		for _, c := range append([]string{code}, r.ancestry[code]...) {
			for _, sc := range declaredShortcuts[c] {
				if _, ok := seen[sc.Code]; ok {
					continue
				}
				if _, known := r.properties[sc.Code]; !known {
					continue
				}
				seen[sc.Code] = struct{}{}
				list = append(list, sc)
			}
		}
		slices.SortStableFunc(list, func(a, b Shortcut) int {
			return ComparePropertyCodes(a.Code, b.Code)
		})
		table[code] = list
	}
	return table
}

// Shortcuts returns the shortcut fields available on class, inherited ones
// included, ordered by property code.
func (r *Registry) Shortcuts(class string) []Shortcut {
	return slices.Clone(r.shortcuts[class])
}

// Fields returns every property an entity of class can hold values for:
// the generic identifier, type and note fields plus its shortcuts.
func (r *Registry) Fields(class string) []Shortcut {
	return append(slices.Clone(genericFields), r.shortcuts[class]...)
}

// ShortcutFor returns the shortcut declaration for code on class.
func (r *Registry) ShortcutFor(class, code string) (Shortcut, bool) {
	for _, sc := range r.shortcuts[class] {
		if sc.Code == code {
			return sc, true
		}
	}
	return Shortcut{}, false
}

// ShortcutLinks maps a property code to the entities an entity points at.
type ShortcutLinks map[string][]uuid.UUID

// LiteralValues maps a property code to primitive values.
type LiteralValues map[string][]string

// Entity is a CRM-typed node. Class-specific pointers live in Shortcuts and
// Literals, keyed by property code, instead of per-class struct fields.
type Entity struct {
	ID          uuid.UUID     `json:"id"`
	ClassCode   string        `json:"class_code"`
	Label       string        `json:"label,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	SourceText  string        `json:"source_text,omitempty"`
	Types       []string      `json:"type,omitempty"`
	Identifiers []string      `json:"identifiers,omitempty"`
	Shortcuts   ShortcutLinks `json:"shortcuts,omitempty"`
	Literals    LiteralValues `json:"literals,omitempty"`
}

// Relation is an explicit edge between two entities.
type Relation struct {
	ID           uuid.UUID `json:"id"`
	SourceID     uuid.UUID `json:"src"`
	PropertyCode string    `json:"type"`
	TargetID     uuid.UUID `json:"tgt"`
	Confidence   float64   `json:"confidence,omitempty"`
	SourceText   string    `json:"source_text,omitempty"`
}

// Triple is the generic (source, property, target) form.
type Triple struct {
	SourceID     uuid.UUID `json:"source_id"`
	PropertyCode string    `json:"property_code"`
	TargetID     uuid.UUID `json:"target_id"`
}

// Link records target under the shortcut code. It fails when the entity's
// class does not declare that shortcut.
func (e *Entity) Link(reg *Registry, code string, target uuid.UUID) error {
	sc, ok := reg.ShortcutFor(e.ClassCode, code)
	if !ok || sc.Literal {
		return fmt.Errorf("class %s has no entity shortcut for %s", e.ClassCode, code)
	}
	if e.Shortcuts == nil {
		e.Shortcuts = make(ShortcutLinks)
	}
	e.Shortcuts[code] = append(e.Shortcuts[code], target)
	return nil
}

// SetLiteral records a primitive value under a literal shortcut.
func (e *Entity) SetLiteral(reg *Registry, code, value string) error {
	sc, ok := reg.ShortcutFor(e.ClassCode, code)
	if !ok || !sc.Literal {
		return fmt.Errorf("class %s has no literal shortcut for %s", e.ClassCode, code)
	}
	if e.Literals == nil {
		e.Literals = make(LiteralValues)
	}
	e.Literals[code] = append(e.Literals[code], value)
	return nil
}

// Expand turns the entity's shortcut links into triples, ordered by
// property code and then by insertion order.
func (e *Entity) Expand() []Triple {
	codes := make([]string, 0, len(e.Shortcuts))
	for code := range e.Shortcuts {
		codes = append(codes, code)
	}
	slices.SortFunc(codes, ComparePropertyCodes)

	var triples []Triple
	for _, code := range codes {
		for _, target := range e.Shortcuts[code] {
			triples = append(triples, Triple{SourceID: e.ID, PropertyCode: code, TargetID: target})
		}
	}
	return triples
}

// Values returns the values the entity holds for a property.
func (e *Entity) Values(code string) []string {
	switch code {
	case "P1":
		return slices.Clone(e.Identifiers)
	case "P2":
		return slices.Clone(e.Types)
	case "P3":
		if e.Notes == "" {
			return nil
		}
		return []string{e.Notes}
	}

	if lits, ok := e.Literals[code]; ok {
		return slices.Clone(lits)
	}

	targets := e.Shortcuts[code]
	if len(targets) == 0 {
		return nil
	}
	values := make([]string, len(targets))
	for i, t := range targets {
		values[i] = t.String()
	}
	return values
}

// Graph is a set of CRM entities plus their explicit relations.
type Graph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// Lookup indexes the graph entities by ID.
func (g *Graph) Lookup() map[uuid.UUID]*Entity {
	idx := make(map[uuid.UUID]*Entity, len(g.Entities))
	for i := range g.Entities {
		idx[g.Entities[i].ID] = &g.Entities[i]
	}
	return idx
}

// Triples returns explicit relations followed by expanded shortcuts.
func (g *Graph) Triples() []Triple {
	triples := make([]Triple, 0, len(g.Relations))
	for _, rel := range g.Relations {
		triples = append(triples, Triple{SourceID: rel.SourceID, PropertyCode: rel.PropertyCode, TargetID: rel.TargetID})
	}
	for i := range g.Entities {
		triples = append(triples, g.Entities[i].Expand()...)
	}
	return triples
}
