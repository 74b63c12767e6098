package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/varsyntax"
)

type templateFlags struct {
	syntax        string
	customPattern string
	caseSensitive bool
	values        []string
}

func newTemplateCmd() *cobra.Command {
	flags := &templateFlags{}

	cmd := &cobra.Command{
		Use:   "template <template>",
		Short: "List or substitute template placeholders",
		Example: `  serialforge template 'ATD${number};'
  serialforge template --syntax MUSTACHE 'SET {{key}} {{value}}'
  serialforge template 'ATD${number};' --param number=5551234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplate(flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.syntax, "syntax", "SHELL", "Placeholder syntax: SHELL, MUSTACHE, BATCH, COLON, BRACES or CUSTOM")
	cmd.Flags().StringVar(&flags.customPattern, "pattern", "", "Custom regex with one capture group (CUSTOM syntax)")
	cmd.Flags().BoolVar(&flags.caseSensitive, "case-sensitive", false, "Match placeholder names case-sensitively")
	cmd.Flags().StringArrayVarP(&flags.values, "param", "p", nil, "Value as name=value; when given, substitutes instead of listing")

	return cmd
}

func runTemplate(flags *templateFlags, template string) error {
	syntax, err := varsyntax.ParseSyntax(flags.syntax)
	if err != nil {
		return err
	}
	matcher, err := varsyntax.NewMatcher(syntax, flags.customPattern, flags.caseSensitive)
	if err != nil {
		return err
	}

	if len(flags.values) == 0 {
		names := matcher.Variables(template)
		if len(names) == 0 {
			fmt.Fprintln(os.Stdout, "no placeholders")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(os.Stdout, name)
		}
		return nil
	}

	values, err := parseParamFlags(flags.values)
	if err != nil {
		return err
	}
	out, missing := matcher.Substitute(template, values)
	if len(missing) > 0 {
		return fmt.Errorf("no value for placeholder(s): %v", missing)
	}
	fmt.Fprintln(os.Stdout, out)
	return nil
}
