// Package export renders CRM graphs as Markdown, Cypher import scripts and
// node/edge documents.
package export

import (
	"fmt"
	"slices"
	"strings"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"

	"github.com/google/uuid"
)

// Style selects a Markdown layout.
type Style string

const (
	StyleCard      Style = "card"
	StyleDetailed  Style = "detailed"
	StyleTable     Style = "table"
	StyleNarrative Style = "narrative"
)

// ParseStyle accepts a style name in any case. An empty name is a card.
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleCard, nil
	case StyleCard, StyleDetailed, StyleTable, StyleNarrative:
		return st, nil
	}
	return "", fmt.Errorf("unknown markdown style %q", s)
}

// DefaultColumns are the table columns used when none are given.
var DefaultColumns = []string{"id", "class_code", "label", "type"}

// Markdown renders entities. Targets of shortcut links are shown by label
// when the entity is known to the renderer, else by a shortened id. A
// Markdown is not safe for concurrent use.
type Markdown struct {
	reg       *crm.Registry
	aliases   map[string]string
	showCodes bool
	labels    map[uuid.UUID]string
}

// MarkdownOption configures a Markdown renderer.
type MarkdownOption func(*Markdown)

// WithAliases overrides display names for class codes, property codes or
// field names.
func WithAliases(aliases map[string]string) MarkdownOption {
	return func(m *Markdown) {
		m.aliases = aliases
	}
}

// WithCodes toggles the `P..` codes next to field names.
func WithCodes(show bool) MarkdownOption {
	return func(m *Markdown) {
		m.showCodes = show
	}
}

// WithGraph lets the renderer resolve link targets found in graph.
func WithGraph(graph *crm.Graph) MarkdownOption {
	return func(m *Markdown) {
		for _, e := range graph.Entities {
			if e.Label != "" {
				m.labels[e.ID] = e.Label
			}
		}
	}
}

// NewMarkdown creates a renderer. A nil registry means crm.Default().
func NewMarkdown(reg *crm.Registry, opts ...MarkdownOption) *Markdown {
	if reg == nil {
		reg = crm.Default()
	}
	m := &Markdown{reg: reg, showCodes: true, labels: make(map[uuid.UUID]string)}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Render formats a single entity.
func (m *Markdown) Render(e *crm.Entity, style Style) (string, error) {
	switch style {
	case StyleCard:
		return m.card(e), nil
	case StyleDetailed:
		return m.detailed(e), nil
	case StyleTable:
		return m.RenderTable([]crm.Entity{*e}, nil), nil
	case StyleNarrative:
		return m.narrative(e), nil
	}
	return "", fmt.Errorf("unknown markdown style %q", style)
}

// RenderTable formats entities as one table. Nil columns means
// DefaultColumns; a column is a field name, a property code or alias.
func (m *Markdown) RenderTable(entities []crm.Entity, columns []string) string {
	if len(entities) == 0 {
		return "No entities to display."
	}
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)))
	for i := range entities {
		b.WriteString("\n|")
		for _, col := range columns {
			b.WriteString(" " + escapeCell(strings.Join(m.column(&entities[i], col), ", ")) + " |")
		}
	}
	return b.String()
}

// RenderGraph renders every entity in style followed by a relationship list.
func (m *Markdown) RenderGraph(graph *crm.Graph, style Style) (string, error) {
	WithGraph(graph)(m)

	var b strings.Builder
	b.WriteString("# CIDOC CRM Graph\n\n")
	fmt.Fprintf(&b, "%d entities, %d relationships\n\n## Entities\n\n", len(graph.Entities), len(graph.Triples()))

	if style == StyleTable {
		b.WriteString(m.RenderTable(graph.Entities, nil))
		b.WriteString("\n")
	} else {
		for i := range graph.Entities {
			out, err := m.Render(&graph.Entities[i], style)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			b.WriteString("\n\n")
		}
	}

	triples := graph.Triples()
	if len(triples) > 0 {
		b.WriteString("\n## Relationships\n\n")
		for _, t := range triples {
			fmt.Fprintf(&b, "- %s `%s` %s %s\n", m.ref(t.SourceID), t.PropertyCode, m.propertyLabel(t.PropertyCode), m.ref(t.TargetID))
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func (m *Markdown) card(e *crm.Entity) string {
	parts := []string{e.ClassCode, m.className(e.ClassCode)}
	if e.Label != "" {
		parts = append(parts, e.Label)
	}
	parts = append(parts, "("+shortID(e.ID)+")")

	var lines []string
	for _, f := range m.reg.Fields(e.ClassCode) {
		if f.Code == "P3" {
			continue
		}
		if vals := m.values(e, f); len(vals) > 0 {
			lines = append(lines, m.fieldLine(f.Field, f.Code, strings.Join(vals, ", ")))
		}
	}
	if e.Notes != "" {
		lines = append(lines, "- **Notes**: "+e.Notes)
	}
	return "### " + strings.Join(parts, " · ") + "\n\n" + strings.Join(lines, "\n")
}

func (m *Markdown) detailed(e *crm.Entity) string {
	header := fmt.Sprintf("## %s · %s", e.ClassCode, m.className(e.ClassCode))
	if e.Label != "" {
		header += ": " + e.Label
	}
	header += " (" + e.ID.String() + ")"

	var lines []string
	if e.Label != "" {
		lines = append(lines, m.fieldLine("label", "", e.Label))
	}
	for _, f := range m.reg.Fields(e.ClassCode) {
		if vals := m.values(e, f); len(vals) > 0 {
			lines = append(lines, m.fieldLine(f.Field, f.Code, strings.Join(vals, ", ")))
		}
	}
	if e.SourceText != "" {
		lines = append(lines, m.fieldLine("source_text", "", e.SourceText))
	}
	if anc := m.reg.Ancestors(e.ClassCode); len(anc) > 0 {
		lines = append(lines, m.fieldLine("superclasses", "", strings.Join(anc, ", ")))
	}
	return header + "\n\n" + strings.Join(lines, "\n")
}

// narrativePhrases introduce shortcut targets in running text.
var narrativePhrases = map[string]string{
	"P4":    "that occurred during",
	"P7":    "at",
	"P11":   "with participation of",
	"P14":   "carried out by",
	"P108":  "which produced",
	"P108i": "that was produced by",
	"P55":   "currently located at",
	"P74":   "residing at",
	"P79":   "beginning",
	"P80":   "ending",
}

func (m *Markdown) narrative(e *crm.Entity) string {
	var parts []string
	if e.Label != "" {
		parts = append(parts, "**"+e.Label+"**")
	}
	parts = append(parts, "is "+article(m.className(e.ClassCode))+" "+strings.ToLower(m.className(e.ClassCode)))

	for _, sc := range m.reg.Shortcuts(e.ClassCode) {
		phrase, ok := narrativePhrases[sc.Code]
		if !ok {
			continue
		}
		if vals := m.values(e, sc); len(vals) > 0 {
			parts = append(parts, phrase+" "+joinNatural(vals))
		}
	}

	out := strings.Join(parts, " ") + "."
	if e.Notes != "" {
		out += "\n\n" + e.Notes
	}
	return out
}

func (m *Markdown) values(e *crm.Entity, f crm.Shortcut) []string {
	if f.Literal {
		return e.Values(f.Code)
	}
	targets := e.Shortcuts[f.Code]
	out := make([]string, len(targets))
	for i, id := range targets {
		out[i] = m.ref(id)
	}
	return out
}

func (m *Markdown) column(e *crm.Entity, col string) []string {
	switch col {
	case "id":
		return []string{e.ID.String()}
	case "class_code":
		return []string{e.ClassCode}
	case "class":
		return []string{m.className(e.ClassCode)}
	case "label":
		return []string{e.Label}
	case "notes":
		return []string{e.Notes}
	}
	for _, f := range m.reg.Fields(e.ClassCode) {
		if f.Field == col || f.Code == col {
			return m.values(e, f)
		}
	}
	if code, ok := m.reg.ResolveAlias(col); ok {
		if f, ok := m.reg.ShortcutFor(e.ClassCode, code); ok {
			return m.values(e, f)
		}
	}
	return nil
}

func (m *Markdown) fieldLine(field, code, value string) string {
	name := m.fieldName(field, code)
	if m.showCodes && code != "" {
		return fmt.Sprintf("- **%s** (`%s`): %s", name, code, value)
	}
	return fmt.Sprintf("- **%s**: %s", name, value)
}

func (m *Markdown) className(code string) string {
	if alias, ok := m.aliases[code]; ok {
		return alias
	}
	if c, ok := m.reg.Class(code); ok {
		return c.Label
	}
	return code
}

func (m *Markdown) propertyLabel(code string) string {
	if alias, ok := m.aliases[code]; ok {
		return alias
	}
	if p, ok := m.reg.Property(code); ok {
		return p.Label
	}
	return code
}

func (m *Markdown) fieldName(field, code string) string {
	if alias, ok := m.aliases[field]; ok {
		return alias
	}
	if alias, ok := m.aliases[code]; ok {
		return alias
	}
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (m *Markdown) ref(id uuid.UUID) string {
	if label, ok := m.labels[id]; ok {
		return label
	}
	return shortID(id)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8] + "..."
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func article(word string) string {
	if word != "" && slices.Contains([]byte("AEIOUaeiou"), word[0]) {
		return "an"
	}
	return "a"
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
