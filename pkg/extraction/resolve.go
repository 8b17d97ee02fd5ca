package extraction

import (
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
)

// ResolveRelationships resolves lite relationships against a populated
// registry. Relationships with an endpoint that does not resolve are left
// out of the first return value, logged and listed in the second. The
// source side is checked first, so each drop names one side.
func ResolveRelationships(lites []LiteRelationship, reg *Registry) ([]Relationship, []DroppedRelationship) {
	relationships := make([]Relationship, 0, len(lites))
	var dropped []DroppedRelationship
	occurrences := make(map[Triple]int)

	for i, lite := range lites {
		source, ok := reg.Resolve(lite.SourceRef)
		if !ok {
			dropped = append(dropped, dropRelationship(i, lite, SideSource, lite.SourceRef))
			continue
		}
		target, ok := reg.Resolve(lite.TargetRef)
		if !ok {
			dropped = append(dropped, dropRelationship(i, lite, SideTarget, lite.TargetRef))
			continue
		}

		triple := Triple{SourceID: source.ID, PropertyCode: lite.PropertyCode, TargetID: target.ID}
		n := occurrences[triple]
		occurrences[triple] = n + 1

		relationships = append(relationships, Relationship{
			ID:            RelationshipID(source.ID, lite.PropertyCode, target.ID, n),
			SourceID:      source.ID,
			TargetID:      target.ID,
			PropertyCode:  lite.PropertyCode,
			PropertyLabel: lite.PropertyLabel,
			Confidence:    lite.Confidence,
			SourceText:    lite.SourceSnippet,
		})
	}

	return relationships, dropped
}

func dropRelationship(index int, lite LiteRelationship, side Side, ref string) DroppedRelationship {
	logger.Warn(
		"[Resolve] Dropping relationship with unresolved endpoint",
		"side", string(side),
		"ref", ref,
		"property", lite.PropertyCode,
		"index", index,
	)
	return DroppedRelationship{
		Index:        index,
		SourceRef:    lite.SourceRef,
		TargetRef:    lite.TargetRef,
		PropertyCode: lite.PropertyCode,
		Side:         side,
		Ref:          ref,
	}
}

// Resolve turns a lite extraction result into a resolved Result. All
// entities are registered before any relationship is resolved, so
// relationships may point forward in the batch. Data quality problems never
// produce an error; they are logged and recorded in Result.Dropped.
func Resolve(lite LiteResult) Result {
	reg := NewRegistry()
	for _, e := range lite.Entities {
		reg.Register(e)
	}

	relationships, dropped := ResolveRelationships(lite.Relationships, reg)

	result := Result{
		Entities:      reg.Entities(),
		Relationships: relationships,
		Dropped:       dropped,
		Metadata: map[string]any{
			"overall_confidence":    lite.OverallConfidence,
			"lite_entities":         len(lite.Entities),
			"lite_relationships":    len(lite.Relationships),
			"dropped_relationships": len(dropped),
			"deduplicated_entities": len(lite.Entities) - reg.Len(),
		},
	}

	logger.Debug(
		"[Resolve] Resolved extraction",
		"entities", len(result.Entities),
		"relationships", len(result.Relationships),
		"dropped", len(dropped),
	)
	return result
}
