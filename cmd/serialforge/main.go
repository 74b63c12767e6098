package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootFlags struct {
	verbose bool
	debug   bool
	logFile string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "serialforge",
		Short: "Command payload encoding and response framing for serial devices",
		Long: `serialforge builds device command payloads from templates and binary
structures, segments response byte streams into frames, and validates
responses against patterns or scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&rootFlags.verbose, "verbose", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "Debug output (includes hex dumps)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFile, "log-file", "", "Also write log output to this file")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newFeedCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newChecksumCmd())
	rootCmd.AddCommand(newTemplateCmd())
	rootCmd.AddCommand(newValidateCmd())

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(os.Stdout, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(os.Stdout, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(os.Stdout, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLoggerFromFlags builds the logger the persistent flags ask for.
func newLoggerFromFlags() (*logging.Logger, error) {
	level := logging.LogLevelError
	if rootFlags.verbose {
		level = logging.LogLevelVerbose
	}
	if rootFlags.debug {
		level = logging.LogLevelDebug
	}
	return logging.NewLogger(level, rootFlags.logFile)
}
