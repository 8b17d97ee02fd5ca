package extractor

import (
	"strings"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
)

// Strict structured output forbids open maps, so the model returns
// attributes as a key/value list.
type unitAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type unitEntity struct {
	RefID         string          `json:"ref_id"`
	EntityType    string          `json:"entity_type" jsonschema:"enum=Person,enum=Event,enum=Place,enum=Object,enum=TimeSpan"`
	Label         string          `json:"label"`
	Description   string          `json:"description"`
	Confidence    float64         `json:"confidence"`
	SourceSnippet string          `json:"source_snippet"`
	Attributes    []unitAttribute `json:"attributes"`
}

type unitRelationship struct {
	SourceRef     string  `json:"source_ref"`
	TargetRef     string  `json:"target_ref"`
	PropertyCode  string  `json:"property_code"`
	PropertyLabel string  `json:"property_label"`
	Confidence    float64 `json:"confidence"`
	SourceSnippet string  `json:"source_snippet"`
}

type unitResponse struct {
	Entities          []unitEntity       `json:"entities"`
	Relationships     []unitRelationship `json:"relationships"`
	OverallConfidence float64            `json:"overall_confidence"`
}

func (r unitResponse) toLite() extraction.LiteResult {
	lite := extraction.LiteResult{
		Entities:          make([]extraction.LiteEntity, 0, len(r.Entities)),
		Relationships:     make([]extraction.LiteRelationship, 0, len(r.Relationships)),
		OverallConfidence: r.OverallConfidence,
	}

	for _, e := range r.Entities {
		var attrs map[string]any
		for _, a := range e.Attributes {
			key := strings.TrimSpace(a.Key)
			if key == "" || a.Value == "" {
				continue
			}
			if attrs == nil {
				attrs = make(map[string]any, len(e.Attributes))
			}
			attrs[key] = a.Value
		}

		lite.Entities = append(lite.Entities, extraction.LiteEntity{
			RefID:         strings.TrimSpace(e.RefID),
			EntityType:    strings.TrimSpace(e.EntityType),
			Label:         strings.TrimSpace(e.Label),
			Description:   e.Description,
			Confidence:    e.Confidence,
			SourceSnippet: e.SourceSnippet,
			Attributes:    attrs,
		})
	}

	for _, rel := range r.Relationships {
		lite.Relationships = append(lite.Relationships, extraction.LiteRelationship{
			SourceRef:     strings.TrimSpace(rel.SourceRef),
			TargetRef:     strings.TrimSpace(rel.TargetRef),
			PropertyCode:  strings.TrimSpace(rel.PropertyCode),
			PropertyLabel: rel.PropertyLabel,
			Confidence:    rel.Confidence,
			SourceSnippet: rel.SourceSnippet,
		})
	}
	return lite
}
