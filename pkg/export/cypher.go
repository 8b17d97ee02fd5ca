package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
)

// DefaultBatchSize is the number of rows bound to one UNWIND parameter.
const DefaultBatchSize = 1000

// Constraint statements shared by Neo4j 5 and Memgraph.
var Constraints = []string{
	"CREATE CONSTRAINT crm_id IF NOT EXISTS FOR (n:CRM) REQUIRE n.id IS UNIQUE;",
	"CREATE CONSTRAINT crm_class_code IF NOT EXISTS FOR (n:CRM) REQUIRE n.class_code IS NOT NULL;",
}

// CypherOptions controls script generation.
type CypherOptions struct {
	IncludeConstraints bool
	BatchSize          int
}

// DefaultCypherOptions includes constraints and batches by DefaultBatchSize.
func DefaultCypherOptions() CypherOptions {
	return CypherOptions{IncludeConstraints: true, BatchSize: DefaultBatchSize}
}

func (o CypherOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

// Statement is one Cypher statement with the parameters it references.
type Statement struct {
	Query  string
	Params map[string]any
}

// Cypher emits idempotent MERGE scripts for a graph.
type Cypher struct {
	reg  *crm.Registry
	opts CypherOptions
}

// NewCypher creates an emitter. A nil registry means crm.Default().
func NewCypher(reg *crm.Registry, opts CypherOptions) *Cypher {
	if reg == nil {
		reg = crm.Default()
	}
	return &Cypher{reg: reg, opts: opts}
}

// unknownRelType types relationships whose code has no usable characters.
const unknownRelType = "RELATED_TO"

// RelType is the relationship type for a property code: the code followed
// by its upper-cased label, e.g. P7_TOOK_PLACE_AT. Unknown codes keep only
// their ASCII letters and digits, so the type is always a plain identifier.
func (c *Cypher) RelType(code string) string {
	ident := identifier(code, false)
	if ident == "" {
		return unknownRelType
	}
	if p, ok := c.reg.Property(code); ok {
		if label := identifier(p.Label, true); label != "" {
			ident += "_" + label
		}
	}
	return ident
}

// identifier replaces every run of characters outside [A-Za-z0-9] with one
// underscore and trims underscores at both ends.
func identifier(s string, upper bool) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if upper {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Nodes returns one parameter row per entity. Empty fields are omitted;
// literal shortcuts are nested under "props".
func (c *Cypher) Nodes(graph *crm.Graph) []map[string]any {
	nodes := make([]map[string]any, 0, len(graph.Entities))
	for i := range graph.Entities {
		e := &graph.Entities[i]
		node := map[string]any{
			"id":         e.ID.String(),
			"class_code": e.ClassCode,
		}
		if e.Label != "" {
			node["label"] = e.Label
		}
		if e.Notes != "" {
			node["notes"] = e.Notes
		}
		if len(e.Types) > 0 {
			node["type"] = e.Types
		}
		if len(e.Identifiers) > 0 {
			node["identifiers"] = e.Identifiers
		}
		if len(e.Literals) > 0 {
			props := make(map[string]any, len(e.Literals))
			for code, vals := range e.Literals {
				key := code
				if sc, ok := c.reg.ShortcutFor(e.ClassCode, code); ok {
					key = sc.Field
				}
				props[key] = vals
			}
			node["props"] = props
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Relationships returns explicit relations followed by expanded shortcuts,
// each as {src, type, tgt}.
func (c *Cypher) Relationships(graph *crm.Graph) []map[string]any {
	triples := graph.Triples()
	rels := make([]map[string]any, 0, len(triples))
	for _, t := range triples {
		rels = append(rels, map[string]any{
			"src":  t.SourceID.String(),
			"type": c.RelType(t.PropertyCode),
			"tgt":  t.TargetID.String(),
		})
	}
	return rels
}

// groupByType keeps types in order of first appearance.
func groupByType(rels []map[string]any) ([]string, map[string][]map[string]any) {
	var order []string
	groups := make(map[string][]map[string]any)
	for _, r := range rels {
		t := r["type"].(string)
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], r)
	}
	return order, groups
}

func batches[T any](rows []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(rows); i += size {
		out = append(out, rows[i:min(i+size, len(rows))])
	}
	return out
}

const nodeQuery = `UNWIND $%s AS n
MERGE (x:CRM {id: n.id})
SET x.class_code = n.class_code,
    x.label = coalesce(n.label, x.label),
    x.notes = coalesce(n.notes, x.notes),
    x.type = coalesce(n.type, x.type),
    x.identifiers = coalesce(n.identifiers, x.identifiers)
SET x += coalesce(n.props, {});`

const relQuery = "UNWIND $%s AS r\nMATCH (s:CRM {id: r.src})\nMATCH (t:CRM {id: r.tgt})\nMERGE (s)-[:`%s`]->(t);"

// Statements returns constraints, node batches and relationship batches in
// execution order. Parameter names are nodes_{i} and rels_{i}, numbered in
// statement order.
func (c *Cypher) Statements(graph *crm.Graph) []Statement {
	var stmts []Statement
	if c.opts.IncludeConstraints {
		for _, q := range Constraints {
			stmts = append(stmts, Statement{Query: q})
		}
	}

	size := c.opts.batchSize()
	for i, batch := range batches(c.Nodes(graph), size) {
		name := fmt.Sprintf("nodes_%d", i)
		stmts = append(stmts, Statement{
			Query:  fmt.Sprintf(nodeQuery, name),
			Params: map[string]any{name: batch},
		})
	}

	order, groups := groupByType(c.Relationships(graph))
	n := 0
	for _, relType := range order {
		for _, batch := range batches(groups[relType], size) {
			name := fmt.Sprintf("rels_%d", n)
			n++
			stmts = append(stmts, Statement{
				Query:  fmt.Sprintf(relQuery, name, relType),
				Params: map[string]any{name: batch},
			})
		}
	}
	return stmts
}

// Script renders the statements as one script with section comments.
func (c *Cypher) Script(graph *crm.Graph) string {
	var sections []string
	var nodes, rels []string
	var constraints []string

	for _, st := range c.Statements(graph) {
		switch {
		case st.Params == nil:
			constraints = append(constraints, st.Query)
		case strings.Contains(st.Query, "MERGE (x:CRM"):
			nodes = append(nodes, st.Query)
		default:
			rels = append(rels, st.Query)
		}
	}

	if len(constraints) > 0 {
		sections = append(sections, "// Create constraints\n"+strings.Join(constraints, "\n"))
	}
	if len(nodes) > 0 {
		sections = append(sections, "// Create nodes\n"+strings.Join(nodes, "\n\n"))
	}
	if len(rels) > 0 {
		sections = append(sections, "// Create relationships\n"+strings.Join(rels, "\n\n"))
	}
	return strings.Join(sections, "\n\n")
}

// Parameters returns every parameter the script references.
func (c *Cypher) Parameters(graph *crm.Graph) map[string]any {
	params := make(map[string]any)
	for _, st := range c.Statements(graph) {
		for k, v := range st.Params {
			params[k] = v
		}
	}
	return params
}

// CheckScript reports common problems in a Cypher script.
func CheckScript(script string) []string {
	var issues []string
	if strings.TrimSpace(script) == "" {
		issues = append(issues, "Empty script")
	}
	if strings.Contains(script, "CREATE (") && !strings.Contains(script, "MERGE") {
		issues = append(issues, "Consider using MERGE instead of CREATE for idempotent operations")
	}
	if strings.Contains(script, "UNWIND") && !strings.Contains(script, "$") {
		issues = append(issues, "UNWIND statements should use parameters")
	}
	return issues
}
