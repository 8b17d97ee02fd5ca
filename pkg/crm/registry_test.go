package crm

import (
	"errors"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
)

func TestParseQuantifier(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Quantifier
		wantErr bool
	}{
		{name: "optional single", in: "0..1", want: Quantifier{Min: 0, Max: 1}},
		{name: "exactly one", in: "1..1", want: Quantifier{Min: 1, Max: 1}},
		{name: "unbounded star", in: "0..*", want: Quantifier{Min: 0, Unbounded: true}},
		{name: "unbounded n", in: "1..n", want: Quantifier{Min: 1, Unbounded: true}},
		{name: "missing separator", in: "01", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "non numeric min", in: "a..1", wantErr: true},
		{name: "max below min", in: "2..1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantifier(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedQuantifier) {
					t.Fatalf("expected ErrMalformedQuantifier, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQuantifierAllows(t *testing.T) {
	tests := []struct {
		q    string
		n    int
		want bool
	}{
		{"0..1", 0, true},
		{"0..1", 1, true},
		{"0..1", 2, false},
		{"1..*", 0, false},
		{"1..*", 12, true},
		{"1..1", 1, true},
	}
	for _, tt := range tests {
		if got := MustParseQuantifier(tt.q).Allows(tt.n); got != tt.want {
			t.Errorf("%s.Allows(%d) = %v, want %v", tt.q, tt.n, got, tt.want)
		}
	}
}

func TestDefaultRegistryInverseSymmetry(t *testing.T) {
	reg := Default()
	codes := reg.PropertyCodes()
	if len(codes) < 250 {
		t.Fatalf("expected forward and inverse properties, got %d", len(codes))
	}

	for _, code := range codes {
		def, _ := reg.Property(code)
		if _, ok := reg.Class(def.DomainClass); !ok {
			t.Errorf("%s: unknown domain %s", code, def.DomainClass)
		}
		if _, ok := reg.Class(def.RangeClass); !ok {
			t.Errorf("%s: unknown range %s", code, def.RangeClass)
		}
		if def.InverseCode == "" {
			continue
		}
		inv, ok := reg.Property(def.InverseCode)
		if !ok {
			t.Errorf("%s: missing inverse %s", code, def.InverseCode)
			continue
		}
		if inv.InverseCode != code {
			t.Errorf("%s: inverse %s points to %s", code, inv.Code, inv.InverseCode)
		}
	}
}

func TestDefaultRegistryEntries(t *testing.T) {
	reg := Default()

	tests := []struct {
		code       string
		domain     string
		rangeClass string
		inverse    string
		quantifier string
	}{
		{"P108", "E12", "E24", "P108i", "0..*"},
		{"P108i", "E24", "E12", "P108", "0..1"},
		{"P55", "E19", "E53", "P55i", "0..1"},
		{"P4", "E2", "E52", "P4i", "0..1"},
		{"P98", "E67", "E21", "P98i", "1..*"},
		{"P3", "E1", "E62", "", "0..*"},
		{"P122", "E53", "E53", "P122", "0..*"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			def, ok := reg.Property(tt.code)
			if !ok {
				t.Fatalf("property %s not found", tt.code)
			}
			if def.DomainClass != tt.domain || def.RangeClass != tt.rangeClass {
				t.Fatalf("got %s -> %s, want %s -> %s", def.DomainClass, def.RangeClass, tt.domain, tt.rangeClass)
			}
			if def.InverseCode != tt.inverse {
				t.Fatalf("inverse = %q, want %q", def.InverseCode, tt.inverse)
			}
			if def.Quantifier.String() != tt.quantifier {
				t.Fatalf("quantifier = %s, want %s", def.Quantifier, tt.quantifier)
			}
		})
	}
}

func TestAncestors(t *testing.T) {
	reg := Default()

	got := reg.Ancestors("E22")
	want := []string{"E19", "E24", "E18", "E71", "E72", "E92", "E70", "E1", "E77"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Ancestors(E22) = %v, want %v", got, want)
	}

	if len(reg.Ancestors("E1")) != 0 {
		t.Fatalf("E1 should have no ancestors")
	}

	checks := []struct {
		class, ancestor string
		want            bool
	}{
		{"E21", "E39", true},
		{"E21", "E20", true},
		{"E21", "E1", true},
		{"E22", "E24", true},
		{"E22", "E12", false},
		{"E5", "E2", true},
		{"E53", "E53", true},
		{"E53", "E18", false},
	}
	for _, c := range checks {
		if got := reg.IsA(c.class, c.ancestor); got != c.want {
			t.Errorf("IsA(%s, %s) = %v, want %v", c.class, c.ancestor, got, c.want)
		}
	}
}

func TestResolveAlias(t *testing.T) {
	reg := Default()
	tests := map[string]string{
		"produced_by":      "P108i",
		"current location": "P55",
		"timespan":         "P4",
		"p108i":            "P108i",
		"P98":              "P98",
	}
	for alias, want := range tests {
		got, ok := reg.ResolveAlias(alias)
		if !ok || got != want {
			t.Errorf("ResolveAlias(%q) = %q, %v, want %q", alias, got, ok, want)
		}
	}
	if _, ok := reg.ResolveAlias("not_a_property"); ok {
		t.Errorf("expected unknown alias to fail")
	}
}

func TestPropertiesForDomainIncludesInherited(t *testing.T) {
	reg := Default()
	codes := reg.PropertiesForDomain("E22")

	has := make(map[string]bool, len(codes))
	for _, c := range codes {
		has[c] = true
	}
	for _, want := range []string{"P1", "P55", "P108i", "P46"} {
		if !has[want] {
			t.Errorf("expected %s to apply to E22", want)
		}
	}
	if has["P108"] {
		t.Errorf("P108 has domain E12 and must not apply to E22")
	}
}

func TestLoadRejectsInconsistentSchema(t *testing.T) {
	classes := "- code: E1\n  label: Entity\n  parents: []\n"

	tests := []struct {
		name       string
		classes    string
		properties string
	}{
		{
			name:       "malformed quantifier",
			classes:    classes,
			properties: "- code: P1\n  label: x\n  domain: E1\n  range: E1\n  quantifier: \"01\"\n",
		},
		{
			name:       "unknown range",
			classes:    classes,
			properties: "- code: P1\n  label: x\n  domain: E1\n  range: E9\n  quantifier: \"0..1\"\n",
		},
		{
			name:       "unknown parent",
			classes:    "- code: E2\n  label: Temporal\n  parents: [E1]\n",
			properties: "",
		},
		{
			name:    "duplicate alias",
			classes: classes,
			properties: "- code: P1\n  label: x\n  domain: E1\n  range: E1\n  quantifier: \"0..1\"\n  aliases: [same]\n" +
				"- code: P2\n  label: y\n  domain: E1\n  range: E1\n  quantifier: \"0..1\"\n  aliases: [same]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"classes.yaml":    {Data: []byte(tt.classes)},
				"properties.yaml": {Data: []byte(tt.properties)},
			}
			if _, err := Load(fsys); err == nil {
				t.Fatal("expected load error")
			}
		})
	}
}

func TestShortcutsInherited(t *testing.T) {
	reg := Default()

	codes := func(list []Shortcut) []string {
		out := make([]string, len(list))
		for i, sc := range list {
			out[i] = sc.Code
		}
		return out
	}

	if got, want := codes(reg.Shortcuts("E5")), []string{"P4", "P7", "P11"}; !reflect.DeepEqual(got, want) {
		t.Errorf("E5 shortcuts = %v, want %v", got, want)
	}
	if got, want := codes(reg.Shortcuts("E22")), []string{"P55", "P108i"}; !reflect.DeepEqual(got, want) {
		t.Errorf("E22 shortcuts = %v, want %v", got, want)
	}
	if got, want := codes(reg.Shortcuts("E21")), []string{"P55", "P74"}; !reflect.DeepEqual(got, want) {
		t.Errorf("E21 shortcuts = %v, want %v", got, want)
	}
}

func TestEntityExpand(t *testing.T) {
	reg := Default()
	event := Entity{ID: uuid.New(), ClassCode: "E5"}
	place := uuid.New()
	span := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()

	for _, link := range []struct {
		code   string
		target uuid.UUID
	}{
		{"P11", p1}, {"P7", place}, {"P11", p2}, {"P4", span},
	} {
		if err := event.Link(reg, link.code, link.target); err != nil {
			t.Fatalf("Link(%s): %v", link.code, err)
		}
	}

	want := []Triple{
		{SourceID: event.ID, PropertyCode: "P4", TargetID: span},
		{SourceID: event.ID, PropertyCode: "P7", TargetID: place},
		{SourceID: event.ID, PropertyCode: "P11", TargetID: p1},
		{SourceID: event.ID, PropertyCode: "P11", TargetID: p2},
	}
	if got := event.Expand(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand() = %v, want %v", got, want)
	}

	if err := event.Link(reg, "P55", place); err == nil {
		t.Fatal("events have no current location shortcut")
	}
	if err := event.Link(reg, "P79", place); err == nil {
		t.Fatal("P79 is not declared on events")
	}
}

func TestEntityValues(t *testing.T) {
	reg := Default()
	span := Entity{ID: uuid.New(), ClassCode: "E52", Types: []string{"E52"}, Notes: "note"}
	if err := span.SetLiteral(reg, "P79", "1879-03-14"); err != nil {
		t.Fatalf("SetLiteral: %v", err)
	}

	if got := span.Values("P79"); !reflect.DeepEqual(got, []string{"1879-03-14"}) {
		t.Errorf("P79 values = %v", got)
	}
	if got := span.Values("P2"); !reflect.DeepEqual(got, []string{"E52"}) {
		t.Errorf("P2 values = %v", got)
	}
	if got := span.Values("P3"); !reflect.DeepEqual(got, []string{"note"}) {
		t.Errorf("P3 values = %v", got)
	}
	if got := span.Values("P80"); got != nil {
		t.Errorf("P80 values = %v, want none", got)
	}
}
