package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration and print the resulting system.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		s := c.HierarchyBuilder().Build("System")

		dump, _ := cmd.Flags().GetBool("dump")
		if dump {
			data, err := c.Marshal()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), string(data))
		}

		for _, l := range s.Levels() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d blocks of %d bytes\n",
				l.Name(), l.NumBlocks(), l.BlockSize())
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("dump", false,
		"Print the configuration with defaults and overrides applied")
}
