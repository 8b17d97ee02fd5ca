package extraction

import (
	"fmt"

	"github.com/go-playground/validator"
)

// Coarse entity kinds emitted by the extraction service.
const (
	TypePerson   = "Person"
	TypeEvent    = "Event"
	TypePlace    = "Place"
	TypeObject   = "Object"
	TypeTimeSpan = "TimeSpan"
)

// LiteEntity is an entity as produced by the extraction service, before
// identity resolution. RefID is only meaningful within one batch.
type LiteEntity struct {
	RefID         string         `json:"ref_id"`
	EntityType    string         `json:"entity_type"`
	Label         string         `json:"label"`
	Description   string         `json:"description,omitempty"`
	Confidence    float64        `json:"confidence" validate:"min=0,max=1"`
	SourceSnippet string         `json:"source_snippet,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// LiteRelationship references its endpoints by batch-local ref ids.
type LiteRelationship struct {
	SourceRef     string  `json:"source_ref"`
	TargetRef     string  `json:"target_ref"`
	PropertyCode  string  `json:"property_code"`
	PropertyLabel string  `json:"property_label"`
	Confidence    float64 `json:"confidence" validate:"min=0,max=1"`
	SourceSnippet string  `json:"source_snippet,omitempty"`
}

// LiteResult is the full output of one extraction call.
type LiteResult struct {
	Entities          []LiteEntity       `json:"entities" validate:"dive"`
	Relationships     []LiteRelationship `json:"relationships" validate:"dive"`
	OverallConfidence float64            `json:"overall_confidence" validate:"min=0,max=1"`
}

var liteValidator = validator.New()

// Validate checks confidence bounds only. Missing refs, labels and types are
// data quality problems that Resolve absorbs, so they never fail a batch.
func (r *LiteResult) Validate() error {
	if err := liteValidator.Struct(r); err != nil {
		return fmt.Errorf("invalid lite result: %w", err)
	}
	return nil
}
