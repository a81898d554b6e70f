package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/autoroster/pkg/clients/sheetsclient"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/services"
)

// parseOverrides reads email=delta pairs
func parseOverrides(pairs []string) (map[string]int, error) {
	overrides := make(map[string]int, len(pairs))
	for _, p := range pairs {
		email, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("override %q must be email=delta", p)
		}
		delta, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("override %q: delta must be a number: %w", p, err)
		}
		overrides[model.NormalizeEmail(email)] = delta
	}
	return overrides, nil
}

// SettlePrioritiesCmd creates the settlePriorities command
func SettlePrioritiesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settlePriorities <roster_sheet_id> <form_sheet_id>",
		Short: "Propose priority changes after a trip (use --apply to write them)",
		Long: `Reads the finished roster and the commitment form responses. People who went lose a point,
people who were waitlisted or never made the roster gain one, and the eboard is left alone.
Nothing is written unless --apply is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apply, _ := cmd.Flags().GetBool("apply")
			pairs, _ := cmd.Flags().GetStringArray("override")
			overrides, err := parseOverrides(pairs)
			if err != nil {
				return err
			}

			result, err := services.SettlePriorities(
				app.Ctx,
				sheetsclient.FilledRoster{Reader: app.SheetsClient, SpreadsheetID: args[0]},
				sheetsclient.CommitmentForm{Reader: app.SheetsClient, SpreadsheetID: args[1], Logger: app.Logger},
				app.eboardSheet(),
				app.Ledger,
				services.SettleOptions{
					EmailDomain:    app.Cfg.EmailDomain,
					SeatsPerDriver: app.Cfg.SeatsPerDriver,
					Overrides:      overrides,
					DryRun:         !apply,
				},
				app.Logger,
			)
			if err != nil {
				return err
			}

			fmt.Printf("\nTrip capacity: %d\n\n", result.Plan.Capacity)
			for _, l := range result.Plan.Lines {
				note := ""
				if l.IsEboard {
					note = " (eboard)"
				}
				fmt.Printf("  %-25s %-35s %-10s %+d%s\n", l.Name, l.Email, l.State, l.Delta, note)
			}
			fmt.Println()

			if result.Summary == nil {
				fmt.Println("Dry run, nothing was written. Re-run with --apply to update priorities.")
				return nil
			}
			fmt.Printf("✓ %s\n\n", result.Summary.Message())
			return nil
		},
	}

	cmd.Flags().Bool("apply", false, "Write the adjustments to the priority ledger")
	cmd.Flags().StringArray("override", nil, "Replace the proposed change for one person, as email=delta (repeatable)")

	return cmd
}
