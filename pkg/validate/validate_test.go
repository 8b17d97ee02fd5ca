package validate

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger/memory"

	"github.com/google/uuid"
)

func captureLogs(t *testing.T) *memory.Recorder {
	t.Helper()
	rec := memory.NewRecorder()
	logger.Init(rec)
	t.Cleanup(func() { logger.Init() })
	return rec
}

func newEntity(class string) *crm.Entity {
	return &crm.Entity{ID: uuid.New(), ClassCode: class, Types: []string{class}}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"", SeverityWarn, false},
		{"warn", SeverityWarn, false},
		{"IGNORE", SeverityIgnore, false},
		{" raise ", SeverityRaise, false},
		{"fatal", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseSeverity(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnforceQuantifierSeverities(t *testing.T) {
	v := New(nil)
	entity := newEntity("E22")
	values := []string{uuid.NewString(), uuid.NewString()}

	t.Run("raise", func(t *testing.T) {
		rec := captureLogs(t)
		_, err := v.EnforceQuantifier(entity, "P55", values, SeverityRaise)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.EntityID != entity.ID.String() || verr.ClassCode != "E22" || verr.PropertyCode != "P55" {
			t.Fatalf("unexpected error fields: %+v", verr)
		}
		if verr.Actual != 2 || verr.Expected != "0..1" {
			t.Fatalf("actual/expected = %d/%s", verr.Actual, verr.Expected)
		}
		if len(rec.Level("warn")) != 0 {
			t.Fatalf("raise must not log warnings")
		}
	})

	t.Run("warn", func(t *testing.T) {
		rec := captureLogs(t)
		msgs, err := v.EnforceQuantifier(entity, "P55", values, SeverityWarn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("messages = %v", msgs)
		}
		warns := rec.Level("warn")
		if len(warns) != 1 {
			t.Fatalf("expected exactly one warning, got %d", len(warns))
		}
		if warns[0].Field("entity_id") != entity.ID.String() || warns[0].Field("property") != "P55" {
			t.Fatalf("warning fields = %v", warns[0].Fields)
		}
		if !strings.Contains(warns[0].Message, "allows at most 1 values, got 2") {
			t.Fatalf("warning message = %q", warns[0].Message)
		}
	})

	t.Run("ignore", func(t *testing.T) {
		rec := captureLogs(t)
		msgs, err := v.EnforceQuantifier(entity, "P55", values, SeverityIgnore)
		if err != nil || msgs != nil {
			t.Fatalf("ignore returned %v, %v", msgs, err)
		}
		if len(rec.Entries()) != 0 {
			t.Fatalf("ignore must not log")
		}
	})
}

func TestEnforceQuantifierBounds(t *testing.T) {
	v := New(nil)

	tests := []struct {
		name    string
		class   string
		code    string
		values  int
		wantMsg string
	}{
		{name: "within bound", class: "E22", code: "P55", values: 1},
		{name: "empty optional", class: "E22", code: "P55", values: 0},
		{name: "minimum not met", class: "E67", code: "P98", values: 0, wantMsg: "requires at least 1 values, got 0"},
		{name: "unbounded", class: "E5", code: "P11", values: 7},
		{name: "domain does not apply", class: "E53", code: "P55", values: 3},
		{name: "inherited domain", class: "E21", code: "P55", values: 2, wantMsg: "allows at most 1 values, got 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]string, tt.values)
			msgs, err := v.EnforceQuantifier(newEntity(tt.class), tt.code, values, SeverityWarn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantMsg == "" {
				if len(msgs) != 0 {
					t.Fatalf("unexpected messages: %v", msgs)
				}
				return
			}
			if len(msgs) != 1 || !strings.Contains(msgs[0], tt.wantMsg) {
				t.Fatalf("messages = %v, want %q", msgs, tt.wantMsg)
			}
		})
	}
}

func TestUnknownPropertyIsSkipped(t *testing.T) {
	rec := captureLogs(t)
	v := New(nil)
	entity := newEntity("E21")

	msgs, err := v.EnforceQuantifier(entity, "P999", []string{"a", "b"}, SeverityRaise)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("unknown property must be skipped, got %v, %v", msgs, err)
	}
	msgs, err = v.DomainRange(entity, entity, "P999", SeverityRaise)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("unknown property must be skipped, got %v, %v", msgs, err)
	}

	warns := rec.Level("warn")
	if len(warns) != 2 || warns[0].Field("property") != "P999" {
		t.Fatalf("expected two unknown-property warnings, got %+v", warns)
	}
}

func TestEntityAndBatchQuantifiers(t *testing.T) {
	reg := crm.Default()
	v := New(reg)

	object := newEntity("E22")
	place1, place2 := uuid.New(), uuid.New()
	for _, p := range []uuid.UUID{place1, place2} {
		if err := object.Link(reg, "P55", p); err != nil {
			t.Fatal(err)
		}
	}
	clean := newEntity("E22")
	if err := clean.Link(reg, "P108i", uuid.New()); err != nil {
		t.Fatal(err)
	}

	msgs, err := v.EntityQuantifiers(object, SeverityWarn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Property P55") {
		t.Fatalf("messages = %v", msgs)
	}

	results, err := v.BatchQuantifiers([]crm.Entity{*object, *clean}, SeverityWarn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one entity with issues, got %v", results)
	}
	if _, ok := results[object.ID.String()]; !ok {
		t.Fatalf("missing entry for violating entity")
	}

	empty, err := v.BatchQuantifiers([]crm.Entity{*clean}, SeverityWarn)
	if err != nil || len(empty) != 0 {
		t.Fatalf("valid batch should produce an empty map, got %v, %v", empty, err)
	}

	if _, err := v.BatchQuantifiers([]crm.Entity{*clean, *object}, SeverityRaise); err == nil {
		t.Fatal("raise should abort the batch")
	}

	summary := v.QuantifierSummary([]crm.Entity{*object, *clean})
	if summary.TotalEntities != 2 || summary.EntitiesWithIssues != 1 || summary.TotalIssues != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestDomainRangeScenario(t *testing.T) {
	fsys := fstest.MapFS{
		"classes.yaml": {Data: []byte(
			"- code: E1\n  label: Entity\n  parents: []\n" +
				"- code: E12\n  label: Production\n  parents: [E1]\n" +
				"- code: E22\n  label: Object\n  parents: [E1]\n",
		)},
		"properties.yaml": {Data: []byte(
			"- code: P108\n  label: was produced by\n  domain: E22\n  range: E12\n  quantifier: \"0..1\"\n",
		)},
	}
	reg, err := crm.Load(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	v := New(reg)

	source := newEntity("E22")
	target := newEntity("E22")

	msgs, err := v.DomainRange(source, target, "P108", SeverityWarn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected a single violation, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "does not match range E12") {
		t.Fatalf("expected range violation, got %q", msgs[0])
	}

	_, err = v.DomainRange(source, target, "P108", SeverityRaise)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != KindRange || verr.EntityID != target.ID.String() {
		t.Fatalf("expected range ValidationError for target, got %v", err)
	}
}

func TestDomainRangeDefaultRegistry(t *testing.T) {
	v := New(nil)

	tests := []struct {
		name       string
		source     string
		target     string
		code       string
		wantDomain bool
		wantRange  bool
	}{
		{name: "valid produced by", source: "E22", target: "E12", code: "P108i"},
		{name: "object produced by object", source: "E22", target: "E22", code: "P108i", wantRange: true},
		{name: "inherited domain and range", source: "E21", target: "E53", code: "P74"},
		{name: "both sides wrong", source: "E53", target: "E52", code: "P98", wantDomain: true, wantRange: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := v.DomainRange(newEntity(tt.source), newEntity(tt.target), tt.code, SeverityWarn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var gotDomain, gotRange bool
			for _, m := range msgs {
				gotDomain = gotDomain || strings.Contains(m, "does not match domain")
				gotRange = gotRange || strings.Contains(m, "does not match range")
			}
			if gotDomain != tt.wantDomain || gotRange != tt.wantRange {
				t.Fatalf("domain=%v range=%v, messages %v", gotDomain, gotRange, msgs)
			}
		})
	}
}

func TestBatchTyping(t *testing.T) {
	reg := crm.Default()
	v := New(reg)

	event := newEntity("E5")
	place := newEntity("E53")
	person := newEntity("E21")
	object := newEntity("E22")

	if err := event.Link(reg, "P7", place.ID); err != nil {
		t.Fatal(err)
	}
	if err := event.Link(reg, "P4", person.ID); err != nil {
		t.Fatal(err)
	}
	if err := event.Link(reg, "P11", uuid.New()); err != nil {
		t.Fatal(err)
	}

	graph := &crm.Graph{
		Entities: []crm.Entity{*event, *place, *person, *object},
		Relations: []crm.Relation{
			{ID: uuid.New(), SourceID: object.ID, PropertyCode: "P108i", TargetID: person.ID},
			{ID: uuid.New(), SourceID: person.ID, PropertyCode: "P74", TargetID: place.ID},
		},
	}

	results, err := v.BatchTyping(graph, SeverityWarn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected issues on event and object, got %v", results)
	}
	if msgs := results[event.ID.String()]; len(msgs) != 1 || !strings.Contains(msgs[0], "range E52 for property P4") {
		t.Fatalf("event messages = %v", msgs)
	}
	if msgs := results[object.ID.String()]; len(msgs) != 1 || !strings.Contains(msgs[0], "range E12") {
		t.Fatalf("object messages = %v", msgs)
	}

	report, err := v.Check(graph, SeverityWarn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Valid() || report.Typing.TotalIssues != 2 {
		t.Fatalf("report = %+v", report)
	}

	ignored, err := v.BatchTyping(graph, SeverityIgnore)
	if err != nil || len(ignored) != 0 {
		t.Fatalf("ignore should report nothing, got %v, %v", ignored, err)
	}
}
