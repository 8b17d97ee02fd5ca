package cli

import (
	"fmt"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"

	"github.com/spf13/cobra"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Look up CRM classes and properties",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "property <code|alias>",
		Short: "Show a property by code or alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := crm.Default()
			code, ok := reg.ResolveAlias(args[0])
			if !ok {
				return fmt.Errorf("unknown property %s", args[0])
			}
			def, _ := reg.Property(code)
			return writeJSON(cmd.OutOrStdout(), def)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "class <code>",
		Short: "Show a class with its ancestors and applicable properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := crm.Default()
			def, ok := reg.Class(args[0])
			if !ok {
				return fmt.Errorf("unknown class %s", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"code":       def.Code,
				"label":      def.Label,
				"parents":    def.Parents,
				"ancestors":  reg.Ancestors(def.Code),
				"properties": reg.PropertiesForDomain(def.Code),
			})
		},
	})
	return cmd
}
