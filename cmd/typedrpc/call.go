package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/typedrpc/internal/injector"
)

func newCallCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [json-args]",
		Short: "Call a remote method",
		Long: `Call a remote method. Arguments are a JSON object keyed by parameter
name, or a JSON array in declared parameter order. Optional parameters may
be left out.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.clientConfig()
			if err != nil {
				return err
			}

			var in any
			if len(args) == 2 {
				if in, err = parseJSON(args[1]); err != nil {
					return err
				}
			}

			c, cleanup, err := injector.InitializeClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var out any
			switch t := in.(type) {
			case nil:
				out, err = c.Call(cmd.Context(), args[0], nil)
			case map[string]any:
				out, err = c.Call(cmd.Context(), args[0], t)
			case []any:
				out, err = c.CallPositional(cmd.Context(), args[0], t...)
			default:
				return fmt.Errorf("arguments must be a JSON object or array, got %T", in)
			}
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), out)
		},
	}
}
