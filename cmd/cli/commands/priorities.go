package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

// ListPrioritiesCmd creates the listPriorities command
func ListPrioritiesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listPriorities",
		Short: "List every member's priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Ledger.List(app.Ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d members:\n\n", len(entries))
			for _, e := range entries {
				fmt.Printf("  %-40s %-25s %3d\n", e.Email, e.Name, e.Priority)
			}
			fmt.Println()
			return nil
		},
	}
}

// GetPriorityCmd creates the getPriority command
func GetPriorityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "getPriority <email>",
		Short: "Show one member's priority (0 if unknown)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := model.NormalizeEmail(args[0])
			priority, err := app.Ledger.Get(app.Ctx, email)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d\n", email, priority)
			return nil
		},
	}
}

// AdjustPriorityCmd creates the adjustPriority command
func AdjustPriorityCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjustPriority <email> <delta>",
		Short: "Add delta to one member's priority, never going below zero",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("delta must be a number: %w", err)
			}
			name, _ := cmd.Flags().GetString("name")

			newValue, err := app.Ledger.AdjustOne(app.Ctx, args[0], name, delta)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Priority updated: %s is now %d\n\n", model.NormalizeEmail(args[0]), newValue)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Name to record if the member is new")

	return cmd
}

// adjustmentFile is the YAML layout read by batchAdjustPriority
type adjustmentFile struct {
	Adjustments []model.Adjustment `yaml:"adjustments"`
}

func loadAdjustments(path string) ([]model.Adjustment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adjustments file: %w", err)
	}

	var f adjustmentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse adjustments file: %w", err)
	}
	for i, a := range f.Adjustments {
		if model.NormalizeEmail(a.Email) == "" {
			return nil, fmt.Errorf("adjustment %d has no email", i+1)
		}
	}
	return f.Adjustments, nil
}

// BatchAdjustPriorityCmd creates the batchAdjustPriority command
func BatchAdjustPriorityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batchAdjustPriority <file.yaml>",
		Short: "Apply a YAML list of priority adjustments under one lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adjustments, err := loadAdjustments(args[0])
			if err != nil {
				return err
			}

			summary, err := app.Ledger.AdjustBatch(app.Ctx, adjustments)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ %s\n\n", summary.Message())
			fmt.Printf("Added:   %d\n", summary.Added)
			fmt.Printf("Updated: %d\n", summary.Updated)
			fmt.Printf("Skipped: %d\n\n", summary.Skipped)
			for _, r := range summary.Results {
				fmt.Printf("  %-40s %3d -> %3d\n", r.Email, r.Previous, r.New)
			}
			fmt.Println()
			return nil
		},
	}
}

// parseSince reads --since as a date, a timestamp, or a duration back from now. Blank means the
// whole trail.
func parseSince(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	if t := model.ParseTimestamp(value); t != nil {
		return *t, nil
	}
	return time.Time{}, fmt.Errorf("since %q is not a date, timestamp or duration", value)
}

// ListAdjustmentsCmd creates the listAdjustments command
func ListAdjustmentsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listAdjustments",
		Short: "Show the priority adjustment audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, _ := cmd.Flags().GetString("since")
			since, err := parseSince(value, time.Now())
			if err != nil {
				return err
			}

			records, err := app.Database.AdjustmentsSince(app.Ctx, since)
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d adjustments:\n\n", len(records))
			for _, r := range records {
				fmt.Printf("  %-20s %-40s %-6s %+3d  %3d -> %3d\n",
					r.At.Local().Format("2006-01-02 15:04:05"), r.Email, r.Mode, r.Delta, r.Previous, r.New)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("since", "", "Only show adjustments at or after this date, timestamp, or duration ago (e.g. 2026-03-01, 168h)")

	return cmd
}
