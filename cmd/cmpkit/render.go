package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/cmpkit"
)

func newRenderCmd(a *app) *cobra.Command {
	var props []string

	cmd := &cobra.Command{
		Use:   "render <component>",
		Short: "Render a component to stdout",
		Example: `  cmpkit render p-index --prop title=Hello --prop progress=40
  cmpkit render b-counter --engine markup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parseProps(props)
			if err != nil {
				return err
			}
			_, render, err := a.setup()
			if err != nil {
				return err
			}
			html, err := render(cmd.Context(), args[0], record)
			if err != nil {
				return fmt.Errorf("render %s: %w", args[0], err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
			return err
		},
	}
	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "component prop as key=value (repeatable)")
	return cmd
}

// parseProps parses key=value pairs. Values stay strings and are coerced
// to the declared prop type on instantiation.
func parseProps(pairs []string) (cmpkit.Record, error) {
	props := cmpkit.Record{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid prop %q (want key=value)", pair)
		}
		props[k] = v
	}
	return props, nil
}
