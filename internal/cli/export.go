package cli

import (
	"fmt"
	"io"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/export"

	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	var (
		format      string
		style       string
		codes       bool
		constraints bool
		batchSize   int
	)

	cmd := &cobra.Command{
		Use:   "export <result.json>",
		Short: "Render a resolved result as markdown, a Cypher script or a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := crm.Default()
			_, graph, err := readGraph(args[0], reg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch format {
			case "markdown":
				s, err := export.ParseStyle(style)
				if err != nil {
					return err
				}
				md, err := export.NewMarkdown(reg, export.WithGraph(&graph), export.WithCodes(codes)).RenderGraph(&graph, s)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, md)
				return err
			case "cypher":
				opts := export.DefaultCypherOptions()
				opts.IncludeConstraints = constraints
				if batchSize > 0 {
					opts.BatchSize = batchSize
				}
				script := export.NewCypher(reg, opts).Script(&graph)
				for _, w := range export.CheckScript(script) {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
				}
				_, err = io.WriteString(out, script)
				return err
			case "graph":
				return writeJSON(out, export.BuildGraph(&graph, reg))
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "markdown, cypher or graph")
	cmd.Flags().StringVar(&style, "style", "card", "markdown style")
	cmd.Flags().BoolVar(&codes, "codes", false, "show CRM codes in markdown")
	cmd.Flags().BoolVar(&constraints, "constraints", true, "emit uniqueness constraints in cypher")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per UNWIND batch in cypher")
	return cmd
}
