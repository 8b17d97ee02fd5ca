package validate

import (
	"fmt"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
)

// EnforceQuantifier checks that values satisfies the cardinality of code
// on entity. Properties whose domain does not cover the entity's class are
// skipped, as are unknown property codes.
func (v *Validator) EnforceQuantifier(entity *crm.Entity, code string, values []string, sev Severity) ([]string, error) {
	if sev == SeverityIgnore {
		return nil, nil
	}

	def, ok := v.reg.Property(code)
	if !ok {
		logger.Warn("[Validate] Unknown property code, skipping check", "property", code, "entity_id", entity.ID.String())
		return nil, nil
	}
	if !v.reg.IsA(entity.ClassCode, def.DomainClass) {
		logger.Debug("[Validate] Property does not apply to class", "property", code, "class", entity.ClassCode, "domain", def.DomainClass)
		return nil, nil
	}

	n := len(values)
	q := def.Quantifier

	var msg string
	switch {
	case n < q.Min:
		msg = fmt.Sprintf("Property %s requires at least %d values, got %d", code, q.Min, n)
	case !q.Unbounded && n > q.Max:
		msg = fmt.Sprintf("Property %s allows at most %d values, got %d", code, q.Max, n)
	default:
		return nil, nil
	}

	verr := &ValidationError{
		Kind:         KindCount,
		EntityID:     entity.ID.String(),
		ClassCode:    entity.ClassCode,
		PropertyCode: code,
		Actual:       n,
		Expected:     q.String(),
		message:      fmt.Sprintf("%s (Entity: %s, Class: %s)", msg, entity.ID, entity.ClassCode),
	}
	reported, err := handle(verr, sev)
	if reported == "" {
		return nil, err
	}
	return []string{reported}, err
}

// EntityQuantifiers checks every property the entity can hold values for:
// its identifier, type and note fields and the shortcuts of its class.
func (v *Validator) EntityQuantifiers(entity *crm.Entity, sev Severity) ([]string, error) {
	if sev == SeverityIgnore {
		return nil, nil
	}

	var messages []string
	for _, field := range v.reg.Fields(entity.ClassCode) {
		msgs, err := v.EnforceQuantifier(entity, field.Code, entity.Values(field.Code), sev)
		messages = append(messages, msgs...)
		if err != nil {
			return messages, err
		}
	}
	return messages, nil
}

// BatchQuantifiers runs EntityQuantifiers over entities. The result maps
// entity ids to their messages and omits entities without violations.
func (v *Validator) BatchQuantifiers(entities []crm.Entity, sev Severity) (map[string][]string, error) {
	results := make(map[string][]string)
	for i := range entities {
		msgs, err := v.EntityQuantifiers(&entities[i], sev)
		if len(msgs) > 0 {
			results[entities[i].ID.String()] = msgs
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// QuantifierSummary validates entities with warn severity and summarizes.
func (v *Validator) QuantifierSummary(entities []crm.Entity) Summary {
	results, _ := v.BatchQuantifiers(entities, SeverityWarn)
	return Summarize(len(entities), results)
}
