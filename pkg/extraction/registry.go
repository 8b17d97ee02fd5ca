package extraction

import (
	"fmt"
	"maps"
)

// FallbackClass is used for entity types outside the known set.
const FallbackClass = "E55"

var classForType = map[string]string{
	TypePerson:   "E21",
	TypeEvent:    "E5",
	TypePlace:    "E53",
	TypeObject:   "E22",
	TypeTimeSpan: "E52",
}

// ClassForType maps a lite entity type to its CRM class code.
func ClassForType(entityType string) string {
	if code, ok := classForType[entityType]; ok {
		return code
	}
	return FallbackClass
}

type detailField struct {
	name     string
	required bool
}

// kindDetails lists the per-kind fields copied from attributes. Required
// fields default to "unknown" when the extractor left them out.
var kindDetails = map[string][]detailField{
	TypePerson: {
		{name: "birth_date"}, {name: "death_date"}, {name: "birth_place"},
		{name: "death_place"}, {name: "occupation"}, {name: "nationality"},
		{name: "parents"}, {name: "children"}, {name: "spouses"},
	},
	TypeEvent: {
		{name: "event_type", required: true}, {name: "start_date"}, {name: "end_date"},
		{name: "location"}, {name: "participants"}, {name: "cause"}, {name: "result"},
	},
	TypePlace: {
		{name: "place_type", required: true}, {name: "coordinates"}, {name: "country"},
		{name: "region"}, {name: "city"}, {name: "address"},
	},
	TypeObject: {
		{name: "object_type", required: true}, {name: "material"}, {name: "creator"},
		{name: "creation_date"}, {name: "current_location"}, {name: "dimensions"}, {name: "condition"},
	},
	TypeTimeSpan: {
		{name: "time_type", required: true}, {name: "start_date"}, {name: "end_date"},
		{name: "duration"}, {name: "calendar"}, {name: "precision"},
	},
}

// UnknownDetail is the placeholder for required details the extractor did
// not supply.
const UnknownDetail = "unknown"

// KindField returns the name of the subtype field for an entity type, or ""
// for types without one.
func KindField(entityType string) string {
	for _, f := range kindDetails[entityType] {
		if f.required {
			return f.name
		}
	}
	return ""
}

func buildDetails(entityType string, attrs map[string]any) map[string]any {
	fields := kindDetails[entityType]
	if len(fields) == 0 {
		return nil
	}
	details := make(map[string]any)
	for _, f := range fields {
		v, ok := attrs[f.name]
		if ok && v != nil {
			details[f.name] = normalizeDetail(v)
			continue
		}
		if f.required {
			details[f.name] = UnknownDetail
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func normalizeDetail(v any) any {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return fmt.Sprint(val)
	}
}

// Registry assigns identities to lite entities and deduplicates them by
// exact label. It is not safe for concurrent use; build one per batch.
type Registry struct {
	byRef   map[string]*Entity
	byLabel map[string]*Entity
	order   []*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byRef:   make(map[string]*Entity),
		byLabel: make(map[string]*Entity),
	}
}

// Register resolves a lite entity. When an entity with the same label was
// registered before, lite.RefID becomes an alias of it and the earlier
// entity is returned unchanged.
func (r *Registry) Register(lite LiteEntity) Entity {
	if existing, ok := r.byLabel[lite.Label]; ok {
		r.alias(lite.RefID, existing)
		return *existing
	}

	entity := &Entity{
		ID:          EntityID(lite.RefID, lite.Label),
		RefID:       lite.RefID,
		EntityType:  lite.EntityType,
		ClassCode:   ClassForType(lite.EntityType),
		Label:       lite.Label,
		Description: lite.Description,
		Confidence:  lite.Confidence,
		SourceText:  lite.SourceSnippet,
		Attributes:  maps.Clone(lite.Attributes),
		Details:     buildDetails(lite.EntityType, lite.Attributes),
	}

	r.alias(lite.RefID, entity)
	r.byLabel[lite.Label] = entity
	r.order = append(r.order, entity)
	return *entity
}

// Resolve looks up the entity a ref id was registered under.
func (r *Registry) Resolve(refID string) (Entity, bool) {
	e, ok := r.byRef[refID]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// An empty ref never resolves, so relationships with a blank endpoint are
// dropped instead of attaching to an entity that had no ref.
func (r *Registry) alias(refID string, e *Entity) {
	if refID != "" {
		r.byRef[refID] = e
	}
}

// Entities returns each distinct entity once, in first-registration order.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, len(r.order))
	for i, e := range r.order {
		out[i] = *e
	}
	return out
}

// Len returns the number of distinct entities.
func (r *Registry) Len() int {
	return len(r.order)
}
