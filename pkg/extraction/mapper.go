package extraction

import (
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
)

// timeSpanLiterals maps time-span details onto literal shortcut properties.
var timeSpanLiterals = []struct {
	detail string
	code   string
}{
	{detail: "start_date", code: "P79"},
	{detail: "end_date", code: "P80"},
}

// ToCRM maps a resolved result onto the CRM model. A relationship whose
// property is a shortcut of its source's class becomes a shortcut link on
// that entity; every other relationship stays an explicit relation.
func ToCRM(result *Result, reg *crm.Registry) crm.Graph {
	graph := crm.Graph{
		Entities: make([]crm.Entity, len(result.Entities)),
	}

	index := make(map[string]int, len(result.Entities))
	for i := range result.Entities {
		graph.Entities[i] = entityToCRM(&result.Entities[i], reg)
		index[result.Entities[i].ID.String()] = i
	}

	for _, rel := range result.Relationships {
		if i, ok := index[rel.SourceID.String()]; ok {
			src := &graph.Entities[i]
			if err := src.Link(reg, rel.PropertyCode, rel.TargetID); err == nil {
				continue
			}
		}
		graph.Relations = append(graph.Relations, crm.Relation{
			ID:           rel.ID,
			SourceID:     rel.SourceID,
			PropertyCode: rel.PropertyCode,
			TargetID:     rel.TargetID,
			Confidence:   rel.Confidence,
			SourceText:   rel.SourceText,
		})
	}

	return graph
}

func entityToCRM(e *Entity, reg *crm.Registry) crm.Entity {
	out := crm.Entity{
		ID:         e.ID,
		ClassCode:  e.ClassCode,
		Label:      e.Label,
		Notes:      e.Description,
		SourceText: e.SourceText,
		Types:      []string{e.ClassCode},
	}

	if field := KindField(e.EntityType); field != "" {
		if kind := e.Detail(field); kind != "" && kind != UnknownDetail {
			out.Types = append(out.Types, kind)
		}
	}

	if e.EntityType == TypeTimeSpan {
		for _, lit := range timeSpanLiterals {
			if v := e.Detail(lit.detail); v != "" {
				if err := out.SetLiteral(reg, lit.code, v); err != nil {
					logger.Debug("[ToCRM] Skipping time-span literal", "entity", e.ID, "property", lit.code, "err", err)
				}
			}
		}
	}

	return out
}
