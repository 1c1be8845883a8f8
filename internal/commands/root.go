// Package commands implements the smartbudget CLI, an offline
// companion to the server for inspecting statement files and trying
// the merchant normalizer without a database.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aaron777collins/smartbudget-sub003/internal/version"
)

// NewRootCommand builds the smartbudget command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "smartbudget",
		Short:   "Statement import and merchant normalization tools",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.GitCommit, version.BuildTime),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newNormalizeCommand())

	return rootCmd
}
