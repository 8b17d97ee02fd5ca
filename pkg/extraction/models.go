package extraction

import (
	"github.com/google/uuid"
)

// Entity is a resolved, deduplicated entity with a stable identifier.
type Entity struct {
	ID          uuid.UUID      `json:"id"`
	RefID       string         `json:"ref_id"`
	EntityType  string         `json:"entity_type"`
	ClassCode   string         `json:"class_code"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Confidence  float64        `json:"confidence"`
	SourceText  string         `json:"source_text,omitempty"`
	Attributes  map[string]any `json:"properties,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Detail returns a string detail value, or "" when absent.
func (e *Entity) Detail(field string) string {
	v, ok := e.Details[field].(string)
	if !ok {
		return ""
	}
	return v
}

// Relationship is a resolved edge whose endpoints are both present in the
// containing Result.
type Relationship struct {
	ID            uuid.UUID `json:"id"`
	SourceID      uuid.UUID `json:"source_id"`
	TargetID      uuid.UUID `json:"target_id"`
	PropertyCode  string    `json:"property_code"`
	PropertyLabel string    `json:"property_label"`
	Confidence    float64   `json:"confidence"`
	SourceText    string    `json:"source_text,omitempty"`
}

// Side names the endpoint of a relationship that failed to resolve.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// DroppedRelationship records a lite relationship discarded because an
// endpoint did not resolve.
type DroppedRelationship struct {
	Index        int    `json:"index"`
	SourceRef    string `json:"source_ref"`
	TargetRef    string `json:"target_ref"`
	PropertyCode string `json:"property_code"`
	Side         Side   `json:"side"`
	Ref          string `json:"ref"`
}

// Result is the output of one resolution run. Consumers treat it as
// read-only.
type Result struct {
	Entities      []Entity              `json:"entities"`
	Relationships []Relationship        `json:"relationships"`
	Dropped       []DroppedRelationship `json:"dropped,omitempty"`
	Metadata      map[string]any        `json:"extraction_metadata,omitempty"`
}

// EntitiesByClass returns the entities of one CRM class.
func (r *Result) EntitiesByClass(classCode string) []Entity {
	var out []Entity
	for _, e := range r.Entities {
		if e.ClassCode == classCode {
			out = append(out, e)
		}
	}
	return out
}

// RelationshipsByProperty returns the relationships using one property.
func (r *Result) RelationshipsByProperty(propertyCode string) []Relationship {
	var out []Relationship
	for _, rel := range r.Relationships {
		if rel.PropertyCode == propertyCode {
			out = append(out, rel)
		}
	}
	return out
}

// Entity looks up an entity by id.
func (r *Result) Entity(id uuid.UUID) (*Entity, bool) {
	for i := range r.Entities {
		if r.Entities[i].ID == id {
			return &r.Entities[i], true
		}
	}
	return nil, false
}

// Triple is the identity of a resolved relationship.
type Triple struct {
	SourceID     uuid.UUID `json:"source_id"`
	PropertyCode string    `json:"property_code"`
	TargetID     uuid.UUID `json:"target_id"`
}

// Triples lists the (source, property, target) form of every relationship
// in output order.
func (r *Result) Triples() []Triple {
	out := make([]Triple, len(r.Relationships))
	for i, rel := range r.Relationships {
		out[i] = Triple{SourceID: rel.SourceID, PropertyCode: rel.PropertyCode, TargetID: rel.TargetID}
	}
	return out
}
