package main

import (
	"os"

	"github.com/function61/cloudsqlbackup/pkg/cbconfig"
	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/jsonfile"
	"github.com/spf13/cobra"
)

func configEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Commands related to the configuration",
		Version: dynversion.Version,
	}

	cmd.AddCommand(configExampleEntry())
	cmd.AddCommand(configValidateEntry())

	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Prints the effective configuration (read from ENV)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := cbconfig.ReadFromEnv()
			exitIfError(err)

			exitIfError(jsonfile.Marshal(os.Stdout, conf.Redacted()))
		},
	})

	return cmd
}

func configValidateEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validates your config JSON (from stdin)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			conf := &cbconfig.Config{}
			exitIfError(jsonfile.Unmarshal(os.Stdin, conf, true))
			conf.ApplyDefaults()
			exitIfError(conf.Validate())
		},
	}
}

func configExampleEntry() *cobra.Command {
	kitchenSink := false

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Shows you an example config (encode as base64 into CLOUDSQLBACKUP_CONF)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(jsonfile.Marshal(os.Stdout, cbconfig.DefaultConfig(kitchenSink)))
		},
	}

	cmd.Flags().BoolVarP(&kitchenSink, "kitchensink", "", kitchenSink, "All the possible configuration option examples")

	return cmd
}
