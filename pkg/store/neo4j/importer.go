// Package neo4j imports resolved graphs into Neo4j or Memgraph over Bolt.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/export"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds graph database configuration.
type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

// Importer runs the Cypher export of a graph against a database.
type Importer struct {
	driver   neo4j.DriverWithContext
	database string
	cypher   *export.Cypher
}

// NewImporter connects to cfg.URL. Without a username the connection is
// unauthenticated, which Memgraph accepts by default.
func NewImporter(cfg Config, cypher *export.Cypher) (*Importer, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URL, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}
	if cypher == nil {
		cypher = export.NewCypher(nil, export.DefaultCypherOptions())
	}
	return &Importer{driver: driver, database: cfg.Database, cypher: cypher}, nil
}

// Close closes the driver connection.
func (i *Importer) Close(ctx context.Context) error {
	return i.driver.Close(ctx)
}

// VerifyConnectivity checks if the database is reachable.
func (i *Importer) VerifyConnectivity(ctx context.Context) error {
	return i.driver.VerifyConnectivity(ctx)
}

// Statements converts the export into driver-ready statements: trailing
// semicolons are stripped and row batches become []any.
func Statements(stmts []export.Statement) []export.Statement {
	out := make([]export.Statement, len(stmts))
	for idx, st := range stmts {
		query := strings.TrimSuffix(strings.TrimSpace(st.Query), ";")
		var params map[string]any
		if len(st.Params) > 0 {
			params = make(map[string]any, len(st.Params))
			for k, v := range st.Params {
				params[k] = toDriverValue(v)
			}
		}
		out[idx] = export.Statement{Query: query, Params: params}
	}
	return out
}

func toDriverValue(v any) any {
	switch val := v.(type) {
	case []map[string]any:
		rows := make([]any, len(val))
		for i, row := range val {
			rows[i] = toDriverValue(row)
		}
		return rows
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toDriverValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

// Import writes graph. Constraints run first in auto-commit transactions;
// schema and data writes never share a transaction. Nodes and relationships
// then run in one write transaction.
func (i *Importer) Import(ctx context.Context, graph *crm.Graph) error {
	session := i.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: i.database,
	})
	defer session.Close(ctx)

	var data []export.Statement
	for _, st := range Statements(i.cypher.Statements(graph)) {
		if st.Params != nil {
			data = append(data, st)
			continue
		}
		res, err := session.Run(ctx, st.Query, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to apply constraint: %w", err)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range data {
			res, err := tx.Run(ctx, st.Query, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	logger.Info("[Neo4j] Imported graph", "entities", len(graph.Entities), "statements", len(data))
	return nil
}
