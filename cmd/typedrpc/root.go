package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/schema/loader"
	"github.com/zeusync/typedrpc/sdk/go/client"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config   string
	schema   string
	endpoint string
	logLevel string
	output   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "typedrpc",
		Short: "Schema-typed RPC client",
		Long: `typedrpc encodes, decodes and calls remote methods described by a
schema document (a "types" section plus an "rpc" section, in JSON or YAML).

  typedrpc -s schema.yaml types
  typedrpc -s schema.yaml encode "[u8; 12]" '"ACME"'
  typedrpc -s schema.yaml decode IdentityId 0x0101...
  typedrpc -s schema.yaml -e ws://127.0.0.1:9944 call identity_getAssetDid '{"ticker": "ACME"}'`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "client config file (YAML)")
	pf.StringVarP(&flags.schema, "schema", "s", "", "schema document, overrides the config")
	pf.StringVarP(&flags.endpoint, "endpoint", "e", "", "node websocket endpoint, overrides the config")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug|info|warn|error")
	pf.StringVarP(&flags.output, "output", "o", "json", "output format: json|yaml")

	root.AddCommand(
		newTypesCmd(flags),
		newMethodsCmd(flags),
		newEncodeCmd(flags),
		newDecodeCmd(flags),
		newCallCmd(flags),
		newServeCmd(flags),
	)
	return root
}

// clientConfig merges the config file with the command line.
func (f *globalFlags) clientConfig() (client.Config, error) {
	cfg := client.DefaultClientConfig()
	if f.config != "" {
		loaded, err := client.LoadConfig(f.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if f.schema != "" {
		cfg.Schema = f.schema
	}
	if f.endpoint != "" {
		cfg.Transport.Endpoint = f.endpoint
	}
	switch {
	case f.logLevel != "":
		level, err := log.ParseLevel(f.logLevel)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = level
	case f.config == "":
		cfg.LogLevel = log.LevelWarn
	}
	return cfg, cfg.Validate()
}

func (f *globalFlags) logger(cfg client.Config) log.Log {
	return log.New(cfg.LogLevel)
}

func (f *globalFlags) loadSchema() (*loader.Schema, error) {
	cfg, err := f.clientConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Schema == "" {
		return nil, fmt.Errorf("%w: pass --schema or set it in --config", client.ErrNoSchema)
	}
	return loader.Load(cfg.Schema, loader.WithLogger(f.logger(cfg)))
}

func (f *globalFlags) print(w io.Writer, v any) error {
	switch strings.ToLower(f.output) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", f.output)
	}
}

// parseJSON decodes a command line JSON argument keeping numbers exact.
func parseJSON(arg string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(arg))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON argument %q: %w", arg, err)
	}
	return v, nil
}
