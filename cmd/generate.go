package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/relaynode/internal/config"
)

// CreateGenerateConfigCmd creates the generate-config command. options
// returns the effective options, which are written out as the sample.
func CreateGenerateConfigCmd(options func() any) *cobra.Command {
	var output string
	var force bool

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Write a sample configuration file",
		Long:  `Writes every setting with its current value as a TOML file that can be edited and passed back with --config.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.GenerateSample(output, options(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "config.toml", "File to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
