package main

import (
	"github.com/spf13/cobra"
)

func newTypesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types [type-expr...]",
		Short: "List registered types, or show the resolved form of the given ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := flags.loadSchema()
			if err != nil {
				return err
			}

			out := make(map[string]string)
			if len(args) == 0 {
				for _, name := range schema.Types.Names() {
					def, err := schema.Types.Lookup(name)
					if err != nil {
						return err
					}
					out[string(name)] = def.String()
				}
				return flags.print(cmd.OutOrStdout(), out)
			}

			for _, expr := range args {
				ref, err := schema.Lookup(expr)
				if err != nil {
					return err
				}
				out[expr] = ref.Def.String()
			}
			return flags.print(cmd.OutOrStdout(), out)
		},
	}
}

func newMethodsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List method signatures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := flags.loadSchema()
			if err != nil {
				return err
			}
			out := make([]string, 0, schema.Methods.Len())
			for _, name := range schema.Methods.Names() {
				sig, err := schema.Methods.Lookup(name)
				if err != nil {
					return err
				}
				out = append(out, sig.String())
			}
			return flags.print(cmd.OutOrStdout(), out)
		},
	}
}
