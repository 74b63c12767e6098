package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/codec"
	"github.com/kbaxter/serialforge/internal/config"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/payload"
)

type buildFlags struct {
	configPath string
	command    string
	params     []string
	raw        bool
}

func newBuildCmd() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a command payload from a command-set document",
		Example: `  serialforge build --config modem.yaml --command dial --param number=5551234
  serialforge build --config plc.yaml --command set_register --param addr=16 --param value=1 --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Command-set document (required)")
	cmd.Flags().StringVar(&flags.command, "command", "", "Command name (required)")
	cmd.Flags().StringArrayVarP(&flags.params, "param", "p", nil, "Parameter value as name=value (repeatable)")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Write raw payload bytes to stdout instead of hex")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("command")

	return cmd
}

func runBuild(flags *buildFlags) error {
	log, err := newLoggerFromFlags()
	if err != nil {
		return err
	}
	defer log.Close()

	doc, err := config.LoadFile(flags.configPath)
	if err != nil {
		return err
	}
	c := doc.Command(flags.command)
	if c == nil {
		return fmt.Errorf("command %q not found in %s", flags.command, flags.configPath)
	}
	values, err := parseParamFlags(flags.params)
	if err != nil {
		return err
	}
	matcher, err := doc.Matcher()
	if err != nil {
		return err
	}

	builder := &payload.Builder{Logger: log}
	data, err := c.BuildPayload(builder, matcher, values)
	if err != nil {
		return sferr.WrapBuildError(err, flags.command)
	}

	if flags.raw {
		_, err = os.Stdout.Write(data)
		return err
	}
	fmt.Fprintln(os.Stdout, codec.EncodeHex(data))
	return nil
}

// parseParamFlags splits repeated name=value flags into a value map.
func parseParamFlags(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q is not name=value", pair)
		}
		values[name] = value
	}
	return values, nil
}
