package export

import (
	"cmp"
	"slices"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
)

// Node is an entity in a graph document.
type Node struct {
	ID         string   `json:"id"`
	ClassCode  string   `json:"class_code"`
	ClassLabel string   `json:"class_label"`
	Label      string   `json:"label,omitempty"`
	Types      []string `json:"type,omitempty"`
	InDegree   int      `json:"in_degree"`
	OutDegree  int      `json:"out_degree"`
}

// Degree is the total number of incident edges.
func (n Node) Degree() int {
	return n.InDegree + n.OutDegree
}

// Edge is a (source, property, target) triple in a graph document.
type Edge struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	PropertyCode  string `json:"property_code"`
	PropertyLabel string `json:"property_label"`
}

// Stats summarizes a graph document.
type Stats struct {
	Nodes                        int            `json:"nodes"`
	Edges                        int            `json:"edges"`
	Density                      float64        `json:"density"`
	MinDegree                    int            `json:"min_degree"`
	MaxDegree                    int            `json:"max_degree"`
	AvgDegree                    float64        `json:"avg_degree"`
	Components                   int            `json:"components"`
	EntityTypeDistribution       map[string]int `json:"entity_type_distribution"`
	RelationshipTypeDistribution map[string]int `json:"relationship_type_distribution"`
}

// Document is a node/edge view of a CRM graph for JSON consumers.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// BuildGraph converts graph into a document. Edges whose endpoints are not
// entities of the graph are kept but do not count towards degrees.
func BuildGraph(graph *crm.Graph, reg *crm.Registry) Document {
	if reg == nil {
		reg = crm.Default()
	}

	doc := Document{Nodes: make([]Node, 0, len(graph.Entities))}
	index := make(map[string]int, len(graph.Entities))

	for _, e := range graph.Entities {
		label := e.ClassCode
		if c, ok := reg.Class(e.ClassCode); ok {
			label = c.Label
		}
		index[e.ID.String()] = len(doc.Nodes)
		doc.Nodes = append(doc.Nodes, Node{
			ID:         e.ID.String(),
			ClassCode:  e.ClassCode,
			ClassLabel: label,
			Label:      e.Label,
			Types:      e.Types,
		})
	}

	for _, t := range graph.Triples() {
		edge := Edge{
			Source:       t.SourceID.String(),
			Target:       t.TargetID.String(),
			PropertyCode: t.PropertyCode,
		}
		if p, ok := reg.Property(t.PropertyCode); ok {
			edge.PropertyLabel = p.Label
		}
		doc.Edges = append(doc.Edges, edge)

		if i, ok := index[edge.Source]; ok {
			doc.Nodes[i].OutDegree++
		}
		if i, ok := index[edge.Target]; ok {
			doc.Nodes[i].InDegree++
		}
	}

	doc.Stats = doc.computeStats(index)
	return doc
}

func (d *Document) computeStats(index map[string]int) Stats {
	s := Stats{
		Nodes:                        len(d.Nodes),
		Edges:                        len(d.Edges),
		EntityTypeDistribution:       make(map[string]int),
		RelationshipTypeDistribution: make(map[string]int),
	}
	if n := len(d.Nodes); n > 1 {
		s.Density = float64(len(d.Edges)) / float64(n*(n-1))
	}

	total := 0
	for i, n := range d.Nodes {
		deg := n.Degree()
		total += deg
		if i == 0 || deg < s.MinDegree {
			s.MinDegree = deg
		}
		s.MaxDegree = max(s.MaxDegree, deg)
		s.EntityTypeDistribution[n.ClassCode]++
	}
	if len(d.Nodes) > 0 {
		s.AvgDegree = float64(total) / float64(len(d.Nodes))
	}
	for _, e := range d.Edges {
		s.RelationshipTypeDistribution[e.PropertyCode]++
	}

	// weakly connected components by union-find
	parent := make([]int, len(d.Nodes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for _, e := range d.Edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if okA && okB {
			parent[find(a)] = find(b)
		}
	}
	for i := range parent {
		if find(i) == i {
			s.Components++
		}
	}
	return s
}

// TopByDegree returns up to k nodes with the highest total degree. Ties
// keep document order.
func (d *Document) TopByDegree(k int) []Node {
	nodes := slices.Clone(d.Nodes)
	slices.SortStableFunc(nodes, func(a, b Node) int {
		return cmp.Compare(b.Degree(), a.Degree())
	})
	if k >= 0 && k < len(nodes) {
		nodes = nodes[:k]
	}
	return nodes
}
