package crm

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schema/*.yaml
var schemaFS embed.FS

// PropertyDefinition describes a single CRM property, forward or inverse.
type PropertyDefinition struct {
	Code        string     `json:"code"`
	Label       string     `json:"label"`
	DomainClass string     `json:"domain_class"`
	RangeClass  string     `json:"range_class"`
	InverseCode string     `json:"inverse_code,omitempty"`
	Quantifier  Quantifier `json:"quantifier"`
	Aliases     []string   `json:"aliases,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ClassDefinition describes a CRM class and its direct superclasses.
type ClassDefinition struct {
	Code      string   `json:"code"`
	Label     string   `json:"label"`
	Parents   []string `json:"parents,omitempty"`
	Ancestors []string `json:"ancestors,omitempty"`
}

type classRecord struct {
	Code    string   `yaml:"code"`
	Label   string   `yaml:"label"`
	Parents []string `yaml:"parents"`
}

type propertyRecord struct {
	Code              string   `yaml:"code"`
	Label             string   `yaml:"label"`
	InverseLabel      string   `yaml:"inverse_label"`
	Symmetric         bool     `yaml:"symmetric"`
	Domain            string   `yaml:"domain"`
	Range             string   `yaml:"range"`
	Quantifier        string   `yaml:"quantifier"`
	InverseQuantifier string   `yaml:"inverse_quantifier"`
	Aliases           []string `yaml:"aliases"`
	InverseAliases    []string `yaml:"inverse_aliases"`
	Notes             string   `yaml:"notes"`
}

// Registry is the immutable lookup table of CRM classes and properties.
// It is safe for concurrent use once loaded.
type Registry struct {
	classes    map[string]ClassDefinition
	classOrder []string
	properties map[string]PropertyDefinition
	propOrder  []string
	aliases    map[string]string
	ancestry   map[string][]string
	shortcuts  map[string][]Shortcut
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded schema tables.
// A broken embedded schema is a build defect, so it panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(schemaFS, "schema")
		if err != nil {
			panic(fmt.Sprintf("crm: open embedded schema: %v", err))
		}
		reg, err := Load(sub)
		if err != nil {
			panic(fmt.Sprintf("crm: load embedded schema: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Load builds a registry from classes.yaml and properties.yaml in fsys.
// Any inconsistency in the tables is returned as an error.
func Load(fsys fs.FS) (*Registry, error) {
	var classRecords []classRecord
	if err := decodeYAML(fsys, "classes.yaml", &classRecords); err != nil {
		return nil, err
	}
	var propRecords []propertyRecord
	if err := decodeYAML(fsys, "properties.yaml", &propRecords); err != nil {
		return nil, err
	}

	reg := &Registry{
		classes:    make(map[string]ClassDefinition, len(classRecords)),
		properties: make(map[string]PropertyDefinition, len(propRecords)*2),
		aliases:    make(map[string]string),
		ancestry:   make(map[string][]string, len(classRecords)),
	}

	if err := reg.loadClasses(classRecords); err != nil {
		return nil, err
	}
	if err := reg.loadProperties(propRecords); err != nil {
		return nil, err
	}
	if err := reg.checkConsistency(); err != nil {
		return nil, err
	}
	reg.shortcuts = buildShortcutTable(reg)

	return reg, nil
}

func decodeYAML(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (r *Registry) loadClasses(records []classRecord) error {
	for _, rec := range records {
		if rec.Code == "" {
			return fmt.Errorf("class without code (label %q)", rec.Label)
		}
		if _, dup := r.classes[rec.Code]; dup {
			return fmt.Errorf("duplicate class %s", rec.Code)
		}
		r.classes[rec.Code] = ClassDefinition{
			Code:    rec.Code,
			Label:   rec.Label,
			Parents: slices.Clone(rec.Parents),
		}
		r.classOrder = append(r.classOrder, rec.Code)
	}

	for _, code := range r.classOrder {
		for _, parent := range r.classes[code].Parents {
			if _, ok := r.classes[parent]; !ok {
				return fmt.Errorf("class %s: unknown parent %s", code, parent)
			}
		}
	}

	for _, code := range r.classOrder {
		chain, err := r.computeAncestors(code)
		if err != nil {
			return err
		}
		r.ancestry[code] = chain
		def := r.classes[code]
		def.Ancestors = chain
		r.classes[code] = def
	}
	return nil
}

// computeAncestors walks the parent graph breadth first so the closest
// ancestors come first. Shared ancestors appear once.
func (r *Registry) computeAncestors(code string) ([]string, error) {
	seen := map[string]struct{}{code: {}}
	queue := slices.Clone(r.classes[code].Parents)
	var chain []string

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == code {
			return nil, fmt.Errorf("class %s: cycle in hierarchy", code)
		}
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		chain = append(chain, next)
		queue = append(queue, r.classes[next].Parents...)
	}
	return chain, nil
}

func (r *Registry) loadProperties(records []propertyRecord) error {
	for _, rec := range records {
		if rec.Code == "" {
			return fmt.Errorf("property without code (label %q)", rec.Label)
		}

		q, err := ParseQuantifier(rec.Quantifier)
		if err != nil {
			return fmt.Errorf("property %s: %w", rec.Code, err)
		}

		forward := PropertyDefinition{
			Code:        rec.Code,
			Label:       rec.Label,
			DomainClass: rec.Domain,
			RangeClass:  rec.Range,
			Quantifier:  q,
			Aliases:     slices.Clone(rec.Aliases),
			Notes:       rec.Notes,
		}

		switch {
		case rec.Symmetric:
			forward.InverseCode = rec.Code
		case rec.InverseLabel != "":
			forward.InverseCode = rec.Code + "i"
		}
		if err := r.addProperty(forward); err != nil {
			return err
		}

		if rec.Symmetric || rec.InverseLabel == "" {
			continue
		}

		invQuantifier := rec.InverseQuantifier
		if invQuantifier == "" {
			invQuantifier = "0..*"
		}
		iq, err := ParseQuantifier(invQuantifier)
		if err != nil {
			return fmt.Errorf("property %si: %w", rec.Code, err)
		}

		inverse := PropertyDefinition{
			Code:        forward.InverseCode,
			Label:       rec.InverseLabel,
			DomainClass: rec.Range,
			RangeClass:  rec.Domain,
			InverseCode: rec.Code,
			Quantifier:  iq,
			Aliases:     slices.Clone(rec.InverseAliases),
			Notes:       rec.Notes,
		}
		if err := r.addProperty(inverse); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) addProperty(def PropertyDefinition) error {
	if _, dup := r.properties[def.Code]; dup {
		return fmt.Errorf("duplicate property %s", def.Code)
	}
	r.properties[def.Code] = def
	r.propOrder = append(r.propOrder, def.Code)

	for _, alias := range def.Aliases {
		key := normalizeAlias(alias)
		if existing, ok := r.aliases[key]; ok {
			return fmt.Errorf("alias %q used by %s and %s", alias, existing, def.Code)
		}
		r.aliases[key] = def.Code
	}
	return nil
}

func (r *Registry) checkConsistency() error {
	for _, code := range r.propOrder {
		def := r.properties[code]
		if _, ok := r.classes[def.DomainClass]; !ok {
			return fmt.Errorf("property %s: unknown domain class %s", code, def.DomainClass)
		}
		if _, ok := r.classes[def.RangeClass]; !ok {
			return fmt.Errorf("property %s: unknown range class %s", code, def.RangeClass)
		}
		if def.InverseCode == "" {
			continue
		}
		inv, ok := r.properties[def.InverseCode]
		if !ok {
			return fmt.Errorf("property %s: inverse %s not found", code, def.InverseCode)
		}
		if inv.InverseCode != code {
			return fmt.Errorf("property %s: inverse %s points back to %q", code, inv.Code, inv.InverseCode)
		}
		if inv.DomainClass != def.RangeClass || inv.RangeClass != def.DomainClass {
			return fmt.Errorf("property %s: inverse %s does not swap domain and range", code, inv.Code)
		}
	}
	return nil
}

// Property looks up a property by code.
func (r *Registry) Property(code string) (PropertyDefinition, bool) {
	def, ok := r.properties[code]
	return def, ok
}

// Class looks up a class by code.
func (r *Registry) Class(code string) (ClassDefinition, bool) {
	def, ok := r.classes[code]
	return def, ok
}

// Ancestors returns the superclasses of code, closest first.
func (r *Registry) Ancestors(code string) []string {
	return slices.Clone(r.ancestry[code])
}

// IsA reports whether class equals ancestor or descends from it.
func (r *Registry) IsA(class, ancestor string) bool {
	if class == ancestor {
		return true
	}
	return slices.Contains(r.ancestry[class], ancestor)
}

// PropertiesForDomain returns the codes of all properties an instance of
// class may carry, including those declared on its superclasses.
func (r *Registry) PropertiesForDomain(class string) []string {
	var codes []string
	for _, code := range r.propOrder {
		if r.IsA(class, r.properties[code].DomainClass) {
			codes = append(codes, code)
		}
	}
	return codes
}

// PropertyCodes returns every property code in table order.
func (r *Registry) PropertyCodes() []string {
	return slices.Clone(r.propOrder)
}

// ClassCodes returns every class code in table order.
func (r *Registry) ClassCodes() []string {
	return slices.Clone(r.classOrder)
}

// ResolveAlias maps an alias, or a code in any case, to a property code.
func (r *Registry) ResolveAlias(alias string) (string, bool) {
	trimmed := strings.TrimSpace(alias)
	if _, ok := r.properties[trimmed]; ok {
		return trimmed, true
	}
	upper := strings.ToUpper(trimmed)
	if strings.HasSuffix(upper, "I") {
		upper = strings.TrimSuffix(upper, "I") + "i"
	}
	if _, ok := r.properties[upper]; ok {
		return upper, true
	}
	code, ok := r.aliases[normalizeAlias(trimmed)]
	return code, ok
}

func normalizeAlias(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// ComparePropertyCodes orders codes numerically, forward before inverse.
func ComparePropertyCodes(a, b string) int {
	na, ia := splitCode(a)
	nb, ib := splitCode(b)
	if na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	switch {
	case ia == ib:
		return strings.Compare(a, b)
	case ia:
		return 1
	default:
		return -1
	}
}

func splitCode(code string) (int, bool) {
	inverse := strings.HasSuffix(code, "i")
	digits := strings.TrimSuffix(strings.TrimLeft(code, "PE"), "i")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1, inverse
	}
	return n, inverse
}
