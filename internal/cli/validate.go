package cli

import (
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var severity string

	cmd := &cobra.Command{
		Use:   "validate <result.json>",
		Short: "Check cardinality and domain/range constraints of a resolved result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := validate.ParseSeverity(severity)
			if err != nil {
				return err
			}
			reg := crm.Default()
			_, graph, err := readGraph(args[0], reg)
			if err != nil {
				return err
			}
			report, err := validate.New(reg).Check(&graph, sev)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"valid":    report.Valid(),
				"severity": sev,
				"report":   report,
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", string(validate.SeverityWarn), "raise, warn or ignore")
	return cmd
}
