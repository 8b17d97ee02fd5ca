package ai

import (
	"encoding/json"
	"testing"
)

type liteEntity struct {
	RefID      string  `json:"ref_id"`
	EntityType string  `json:"entity_type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type litePayload struct {
	Entities          []liteEntity `json:"entities"`
	OverallConfidence float64      `json:"overall_confidence"`
}

func TestUnmarshalFlexible(t *testing.T) {
	want := litePayload{
		Entities:          []liteEntity{{RefID: "person_1", EntityType: "Person", Label: "Ada Lovelace", Confidence: 0.9}},
		OverallConfidence: 0.8,
	}

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "valid json",
			input: `{"entities":[{"ref_id":"person_1","entity_type":"Person","label":"Ada Lovelace","confidence":0.9}],"overall_confidence":0.8}`,
		},
		{
			name:  "code fence",
			input: "```json\n{\"entities\":[{\"ref_id\":\"person_1\",\"entity_type\":\"Person\",\"label\":\"Ada Lovelace\",\"confidence\":0.9}],\"overall_confidence\":0.8}\n```",
		},
		{
			name:  "trailing commas",
			input: `{"entities":[{"ref_id":"person_1","entity_type":"Person","label":"Ada Lovelace","confidence":0.9,},],"overall_confidence":0.8,}`,
		},
		{
			name:  "single quotes and bare keys",
			input: `{entities:[{ref_id:'person_1',entity_type:'Person',label:'Ada Lovelace',confidence:0.9}],overall_confidence:0.8}`,
		},
		{
			name:  "truncated",
			input: `{"overall_confidence":0.8,"entities":[{"ref_id":"person_1","entity_type":"Person","label":"Ada Lovelace","confidence":0.9`,
		},
		{
			name:  "double encoded",
			input: `"{\"entities\":[{\"ref_id\":\"person_1\",\"entity_type\":\"Person\",\"label\":\"Ada Lovelace\",\"confidence\":0.9}],\"overall_confidence\":0.8}"`,
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\"entities\":[{\"ref_id\":\"person_1\",\"entity_type\":\"Person\",\"label\":\"Ada Lovelace\",\"confidence\":0.9}],\"overall_confidence\":0.8}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got litePayload
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Fatalf("got %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestGenerateSchemaIsStrict(t *testing.T) {
	schema := GenerateSchema(&litePayload{})
	raw, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if decoded["additionalProperties"] != false {
		t.Fatalf("expected additionalProperties=false, got %v", decoded["additionalProperties"])
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", raw)
	}
	if _, ok := props["entities"]; !ok {
		t.Fatalf("schema is missing entities: %s", raw)
	}
	if _, ok := decoded["$defs"]; ok {
		t.Fatalf("schema should inline definitions: %s", raw)
	}
}

func TestApplyOptions(t *testing.T) {
	got := ApplyOptions(
		GenerateOptions{Model: "default", Temperature: 0.1},
		WithModel("custom"),
		WithSystemPrompts("a", "b"),
		WithTemperature(0.5),
	)
	if got.Model != "custom" || got.Temperature != 0.5 || len(got.SystemPrompts) != 2 {
		t.Fatalf("unexpected options: %+v", got)
	}
}

func TestMetricsRecorder(t *testing.T) {
	var rec MetricsRecorder
	rec.Add(ModelMetrics{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, DurationMs: 500})
	rec.Add(ModelMetrics{InputTokens: 10, OutputTokens: 40, TotalTokens: 50, DurationMs: 500})

	got := rec.Snapshot()
	if got.Requests != 2 || got.TotalTokens != 200 || got.TokenPerSecond != 200 {
		t.Fatalf("unexpected metrics: %+v", got)
	}

	rec.Reset()
	if rec.Snapshot() != (ModelMetrics{}) {
		t.Fatalf("reset did not clear metrics")
	}
}
