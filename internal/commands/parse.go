package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaron777collins/smartbudget-sub003/internal/jobs"
)

func newParseCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a CSV or OFX statement file and print what an import would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading statement: %w", err)
			}

			result, err := jobs.ParseStatement(args[0], data)
			if err != nil {
				return fmt.Errorf("parsing statement: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Format:     %s\n", result.Format)
			fmt.Fprintf(out, "Total rows: %d\n", result.TotalRows)
			fmt.Fprintf(out, "Valid rows: %d\n", result.ValidRows)
			fmt.Fprintf(out, "Errors:     %d\n", len(result.Errors))
			if result.AccountInfo != nil {
				fmt.Fprintf(out, "Account:    %s (%s)\n", result.AccountInfo.AccountID, result.AccountInfo.AccountType)
			}
			if result.Balance != nil {
				fmt.Fprintf(out, "Balance:    %s\n", result.Balance.String())
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Reason)
			}
			fmt.Fprintln(out)
			for _, t := range result.Transactions {
				fmt.Fprintf(out, "%s  %10s  %-6s  %s\n",
					t.Date.Format("2006-01-02"), t.Amount.StringFixed(2), t.Type, t.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full parse result as JSON")

	return cmd
}
