// Package cmd provides the command-line interface of datatrace.
package cmd

import (
	"fmt"
	"os"

	"github.com/Shihao-Song/Pin-Tools/config"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datatrace",
	Short: "Replay memory access traces through a simulated cache hierarchy.",
	Long: `datatrace replays memory access traces through an inclusive, ` +
		`write-back cache hierarchy. It reports per-level statistics and ` +
		`page access histograms and can record the bytes written by every ` +
		`store into a SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		return config.LoadEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File with DATATRACE_* variables to load")
	rootCmd.PersistentFlags().StringP("config", "c", "",
		"YAML file that describes the system")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadConfig reads the configuration named by the flags, applies the
// environment and validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c := config.Default()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		var err error

		c, err = config.Load(path)
		if err != nil {
			return c, err
		}
	}

	if err := c.ApplyEnv(); err != nil {
		return c, err
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration:\n%w", err)
	}

	return c, nil
}

func openInput(name string) (*os.File, error) {
	if name == "" || name == "-" {
		return os.Stdin, nil
	}

	return os.Open(name)
}
