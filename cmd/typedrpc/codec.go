package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
	"github.com/zeusync/typedrpc/pkg/encoding"
)

func newEncodeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <type-expr> <json-value>",
		Short: "Encode a JSON value as the given type and print it as 0x-hex",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := flags.loadSchema()
			if err != nil {
				return err
			}
			ref, err := schema.Lookup(args[0])
			if err != nil {
				return err
			}
			in, err := parseJSON(args[1])
			if err != nil {
				return err
			}
			v, err := value.FromNative(ref, ref.Name, in)
			if err != nil {
				return err
			}
			encoded, err := codec.New(ref).EncodeNamed(ref.Name, v)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), encoding.HexEncode(encoded))
			return err
		},
	}
}

func newDecodeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <type-expr> <0x-hex>",
		Short: "Decode 0x-hex bytes as the given type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := flags.loadSchema()
			if err != nil {
				return err
			}
			ref, err := schema.Lookup(args[0])
			if err != nil {
				return err
			}
			data, err := encoding.HexDecode(args[1])
			if err != nil {
				return err
			}
			v, err := codec.New(ref).DecodeAllNamed(ref.Name, data)
			if err != nil {
				return err
			}
			out, err := value.ToNative(ref, ref.Name, v)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), out)
		},
	}
}
