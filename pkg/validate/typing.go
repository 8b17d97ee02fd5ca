package validate

import (
	"fmt"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"github.com/google/uuid"
)

// DomainRange checks that source fits the domain and target fits the range
// of code. Both sides are reported independently. With raise severity the
// first failing side is returned as the error.
func (v *Validator) DomainRange(source, target *crm.Entity, code string, sev Severity) ([]string, error) {
	if sev == SeverityIgnore {
		return nil, nil
	}

	def, ok := v.reg.Property(code)
	if !ok {
		logger.Warn("[Validate] Unknown property code, skipping check", "property", code, "entity_id", source.ID.String())
		return nil, nil
	}

	var messages []string
	sides := []struct {
		kind     string
		entity   *crm.Entity
		expected string
	}{
		{KindDomain, source, def.DomainClass},
		{KindRange, target, def.RangeClass},
	}

	for _, side := range sides {
		if v.reg.IsA(side.entity.ClassCode, side.expected) {
			continue
		}
		msg := fmt.Sprintf(
			"Entity %s (class %s) does not match %s %s for property %s (Property: %s, Source: %s, Target: %s)",
			side.entity.ID, side.entity.ClassCode, side.kind, side.expected, code,
			code, source.ID, target.ID,
		)
		verr := &ValidationError{
			Kind:          side.kind,
			EntityID:      side.entity.ID.String(),
			ClassCode:     side.entity.ClassCode,
			PropertyCode:  code,
			SourceID:      source.ID.String(),
			TargetID:      target.ID.String(),
			ExpectedClass: side.expected,
			message:       msg,
		}
		reported, err := handle(verr, sev)
		if reported != "" {
			messages = append(messages, reported)
		}
		if err != nil {
			return messages, err
		}
	}
	return messages, nil
}

// EntityTyping checks each expanded shortcut of entity against lookup.
// Targets missing from lookup are skipped.
func (v *Validator) EntityTyping(entity *crm.Entity, lookup map[uuid.UUID]*crm.Entity, sev Severity) ([]string, error) {
	if sev == SeverityIgnore {
		return nil, nil
	}

	var messages []string
	for _, triple := range entity.Expand() {
		target, ok := lookup[triple.TargetID]
		if !ok {
			logger.Info("[Validate] Target entity not found, skipping", "target_id", triple.TargetID.String(), "property", triple.PropertyCode)
			continue
		}
		msgs, err := v.DomainRange(entity, target, triple.PropertyCode, sev)
		messages = append(messages, msgs...)
		if err != nil {
			return messages, err
		}
	}
	return messages, nil
}

// BatchTyping checks every shortcut and every explicit relation in graph.
// Messages are keyed by the source entity id; entities without violations
// are omitted.
func (v *Validator) BatchTyping(graph *crm.Graph, sev Severity) (map[string][]string, error) {
	results := make(map[string][]string)
	if sev == SeverityIgnore {
		return results, nil
	}

	lookup := graph.Lookup()
	for i := range graph.Entities {
		entity := &graph.Entities[i]
		msgs, err := v.EntityTyping(entity, lookup, sev)
		if len(msgs) > 0 {
			results[entity.ID.String()] = append(results[entity.ID.String()], msgs...)
		}
		if err != nil {
			return results, err
		}
	}

	for _, rel := range graph.Relations {
		source, okS := lookup[rel.SourceID]
		target, okT := lookup[rel.TargetID]
		if !okS || !okT {
			logger.Info("[Validate] Relation endpoint not found, skipping", "relation_id", rel.ID.String(), "property", rel.PropertyCode)
			continue
		}
		msgs, err := v.DomainRange(source, target, rel.PropertyCode, sev)
		if len(msgs) > 0 {
			results[source.ID.String()] = append(results[source.ID.String()], msgs...)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// TypingSummary validates graph with warn severity and summarizes.
func (v *Validator) TypingSummary(graph *crm.Graph) Summary {
	results, _ := v.BatchTyping(graph, SeverityWarn)
	return Summarize(len(graph.Entities), results)
}
