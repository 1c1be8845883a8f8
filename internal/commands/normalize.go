package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
)

func newNormalizeCommand() *cobra.Command {
	var seedPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "normalize [merchant...]",
		Short: "Normalize raw merchant strings, from arguments or stdin",
		Long: `Normalize runs raw merchant strings through the normalization
pipeline without a database: preprocessing, canonical map lookup and
fuzzy matching. With no arguments, one merchant per stdin line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			canonical := normalizer.NewCanonicalMap()
			if seedPath != "" {
				if err := canonical.LoadSeedFile(seedPath); err != nil {
					return fmt.Errorf("loading canonical map: %w", err)
				}
			}
			norm := normalizer.New(canonical, nil)

			merchants := args
			if len(merchants) == 0 {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					if line := scanner.Text(); line != "" {
						merchants = append(merchants, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}
			if len(merchants) == 0 {
				return fmt.Errorf("no merchants to normalize")
			}

			results, stats, err := norm.NormalizeMerchants(merchants, false)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"results": results, "stats": stats})
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%-40s -> %-30s %.2f (%s)\n", r.Input, r.CanonicalName, r.Confidence, r.Source)
			}
			fmt.Fprintf(out, "\n%d merchants, mean confidence %.2f\n", stats.Total, stats.MeanConfidence)
			return nil
		},
	}

	cmd.Flags().StringVar(&seedPath, "canonical-map", "", "YAML file of extra pattern: canonical entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")

	return cmd
}
