package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Shows the merged configuration after defaults, config file, and RIFT_* environment overrides.",
	RunE: func(cmd *cobra.Command, args []string) error {
		effective := *cfg
		if effective.Adapter.APIKey != "" {
			effective.Adapter.APIKey = "********"
		}

		out, err := yaml.Marshal(&effective)
		if err != nil {
			return eris.Wrap(err, "config: marshal")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
