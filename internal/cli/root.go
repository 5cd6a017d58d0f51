// Package cli implements the epidemicd command-line interface on top of
// the gossip reactor: join, leave, members and serve.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "epidemicd",
	Short: "Epidemic membership daemon",
	Long: `epidemicd runs an epidemic (SWIM-style) cluster membership daemon:
a UDP failure detector that gossips join, suspect, down and leave
transitions across a set of peers identified by a stable host key.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config.toml (default ~/.epidemic/config.toml)")
}

// Execute runs the root command, printing any error and exiting non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
