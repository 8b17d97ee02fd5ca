package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/export"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store/neo4j"

	"github.com/spf13/cobra"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <result.json>",
		Short: "Write a resolved result into Neo4j or Memgraph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Neo4j.URL == "" {
				return errors.New("NEO4J_URL is not set")
			}

			reg := crm.Default()
			_, graph, err := readGraph(args[0], reg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			importer, err := neo4j.NewImporter(cfg.Neo4j, export.NewCypher(reg, export.DefaultCypherOptions()))
			if err != nil {
				return err
			}
			defer importer.Close(context.Background())

			if err := importer.Import(ctx, &graph); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entities and %d relationships\n", len(graph.Entities), len(graph.Relations))
			return nil
		},
	}
}
