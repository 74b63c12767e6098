package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate a command-set document",
		Example: `  serialforge validate --config modem.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: OK (%d commands)\n", doc.Name, len(doc.Commands))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Command-set document (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}
