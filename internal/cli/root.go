// Package cli implements the cidoc command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/DecisionNerd/infoextract-cidoc/internal/config"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger/console"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the cidoc command tree.
func NewRootCommand() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "cidoc",
		Short:         "Extract biographical facts as CIDOC CRM graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(console.New(console.Params{Debug: debug, Writer: cmd.ErrOrStderr()}))
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newResolveCommand(),
		newExtractCommand(),
		newValidateCommand(),
		newExportCommand(),
		newSchemaCommand(),
		newImportCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load()
}

func readJSON(path string, out any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// readGraph loads a resolved result and maps it onto the CRM.
func readGraph(path string, reg *crm.Registry) (*extraction.Result, crm.Graph, error) {
	var result extraction.Result
	if err := readJSON(path, &result); err != nil {
		return nil, crm.Graph{}, err
	}
	return &result, extraction.ToCRM(&result, reg), nil
}
