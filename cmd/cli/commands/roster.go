package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/capacity"
	"github.com/jakechorley/autoroster/pkg/core/model"
	"github.com/jakechorley/autoroster/pkg/core/services"
	"github.com/jakechorley/autoroster/pkg/core/workflow"
	"github.com/jakechorley/autoroster/pkg/httpapi"
)

func addTripFlags(cmd *cobra.Command) {
	cmd.Flags().String("roster", "", "Roster spreadsheet ID (required)")
	cmd.Flags().String("form", "", "Commitment form responses spreadsheet ID (required)")
	cmd.Flags().Int("waitlist", 0, "Waitlist size (defaults to config)")
	cmd.Flags().Int("limit", 0, "Roster limit overriding drivers × seats (0 for none)")
}

func tripRequestFromFlags(cmd *cobra.Command) (httpapi.TripRequest, error) {
	rosterID, _ := cmd.Flags().GetString("roster")
	formID, _ := cmd.Flags().GetString("form")
	if rosterID == "" || formID == "" {
		return httpapi.TripRequest{}, fmt.Errorf("--roster and --form are required")
	}

	req := httpapi.TripRequest{RosterSheetID: rosterID, CommitmentSheetID: formID}
	req.RosterLimit, _ = cmd.Flags().GetInt("limit")
	if cmd.Flags().Changed("waitlist") {
		waitlist, _ := cmd.Flags().GetInt("waitlist")
		req.WaitlistSize = &waitlist
	}
	if req.RosterLimit < 0 || (req.WaitlistSize != nil && *req.WaitlistSize < 0) {
		return httpapi.TripRequest{}, fmt.Errorf("--waitlist and --limit must not be negative")
	}
	return req, nil
}

// CapacityCmd creates the capacity command
func CapacityCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show how many seats the rostered drivers provide and who is waiting for one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tripRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			trip, err := app.OpenTrip(app.Ctx, req)
			if err != nil {
				return err
			}

			plan, err := trip.Plan(app.Ctx)
			if err != nil {
				return err
			}

			printCapacity(plan.Capacity)

			fmt.Printf("Candidates (%d):\n", len(plan.Pool.Candidates))
			for i, c := range plan.Pool.Candidates {
				fmt.Printf("  %2d. %-25s %-35s priority %d%s\n", i+1, c.Name, c.Email, c.PriorityValue(), driverMark(c))
			}
			fmt.Println()

			if len(plan.Pool.Exclusions) > 0 {
				fmt.Printf("⚠️  Excluded %d submissions:\n", len(plan.Pool.Exclusions))
				for _, e := range plan.Pool.Exclusions {
					fmt.Printf("  ✗ %s (%s): %s\n", e.Name, e.Email, e.Reason)
				}
				fmt.Println()
			}
			return nil
		},
	}

	addTripFlags(cmd)

	return cmd
}

// PreviewRosterCmd creates the previewRoster command
func PreviewRosterCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "previewRoster",
		Short: "Run an allocation policy without writing to the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tripRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			policy, err := policyFromFlag(cmd, app.Cfg.DefaultPolicy)
			if err != nil {
				return err
			}

			trip, err := app.OpenTrip(app.Ctx, req)
			if err != nil {
				return err
			}
			decision, err := trip.Allocate(app.Ctx, policy)
			if err != nil {
				return err
			}

			fmt.Printf("\nPreview only, nothing was written.\n")
			printDecision(decision)
			return nil
		},
	}

	addTripFlags(cmd)
	cmd.Flags().String("policy", "", "Allocation policy: priority, gender-tiered or gender-global (defaults to config)")

	return cmd
}

// BuildRosterCmd creates the buildRoster command
func BuildRosterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "buildRoster <plan.yaml>",
		Short: "Walk a trip from eboard to final roster using the answers in a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadTripPlan(args[0])
			if err != nil {
				return err
			}

			trip, err := app.OpenTrip(app.Ctx, httpapi.TripRequest{
				RosterSheetID:     plan.RosterSheetID,
				CommitmentSheetID: plan.CommitmentSheetID,
				WaitlistSize:      plan.WaitlistSize,
				RosterLimit:       plan.RosterLimit,
			})
			if err != nil {
				return err
			}
			app.Logger.Info("Building roster", zap.String("runID", trip.RunID()), zap.String("roster", plan.RosterSheetID))

			if plan.SkipSetup {
				if err := trip.SkipTo(workflow.DecidingRoster); err != nil {
					return err
				}
			} else if err := runSetup(app, trip, plan); err != nil {
				return err
			}

			var decision services.DecisionResult
			if len(plan.Decisions) > 0 {
				decision, err = trip.DecideManually(app.Ctx, plan.Decisions)
			} else {
				policy, perr := allocator.ParsePolicy(firstNonEmpty(plan.Policy, app.Cfg.DefaultPolicy))
				if perr != nil {
					return perr
				}
				decision, err = trip.DecideAutomated(app.Ctx, policy)
			}
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Roster built!\n")
			printDecision(decision)
			return nil
		},
	}
}

// runSetup writes the eboard then the drivers
func runSetup(app *AppContext, trip *services.Trip, plan *tripPlan) error {
	members, err := trip.EboardMembers(app.Ctx)
	if err != nil {
		return err
	}
	selections, unanswered := plan.eboardSelections(members)
	for _, email := range unanswered {
		app.Logger.Info("Eboard member not in plan, treating as not going", zap.String("email", email))
	}

	result, err := trip.AddEboard(app.Ctx, selections)
	if err != nil {
		return err
	}
	fmt.Printf("\nEboard: %s\n", result.Message())

	if len(plan.Drivers) == 0 {
		offered, err := trip.DriverCandidates(app.Ctx)
		if err != nil {
			return err
		}
		if len(offered) > 0 {
			fmt.Printf("⚠️  Plan names no drivers; %d volunteers offered to drive:\n", len(offered))
			for _, o := range offered {
				fmt.Printf("  - %s (%s)\n", o.Name, o.Email)
			}
		}
	}

	result, err = trip.AddDrivers(app.Ctx, plan.Drivers)
	if err != nil {
		return err
	}
	fmt.Printf("Drivers: %s\n", result.Message())
	return nil
}

// ComparePoliciesCmd creates the comparePolicies command
func ComparePoliciesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comparePolicies",
		Short: "Compare balancing gender within priorities against balancing across them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tripRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			trip, err := app.OpenTrip(app.Ctx, req)
			if err != nil {
				return err
			}

			comparison, tripCapacity, err := trip.ComparePolicies(app.Ctx)
			if err != nil {
				return err
			}

			printCapacity(tripCapacity)
			fmt.Printf("Priority order alone: %.1f%% female\n\n", comparison.PriorityFemalePercent)
			fmt.Println(comparison.Message())
			fmt.Println()
			return nil
		},
	}

	addTripFlags(cmd)

	return cmd
}

// ClearRosterCmd creates the clearRoster command
func ClearRosterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clearRoster <roster_sheet_id>",
		Short: "Blank every roster row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ClearRoster(app.Ctx, app.RosterStore(args[0]), app.Logger); err != nil {
				return err
			}
			fmt.Printf("\n✓ Roster cleared\n\n")
			return nil
		},
	}
}

// RebuildRosterCmd creates the rebuildRoster command
func RebuildRosterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuildRoster <roster_sheet_id>",
		Short: "Rewrite the roster with drivers first, keeping everyone else in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.RebuildRoster(app.Ctx, app.RosterStore(args[0]), app.Logger)
			if err != nil {
				if len(result.Applicants) > 0 {
					fmt.Printf("❌ Roster was cleared but not fully rewritten. Rows read before clearing:\n")
					printApplicants(result.Applicants)
				}
				return err
			}

			fmt.Printf("\n✓ Roster rebuilt: %s\n\n", result.Commit.Message())
			return nil
		},
	}
}

func policyFromFlag(cmd *cobra.Command, fallback string) (allocator.Policy, error) {
	name, _ := cmd.Flags().GetString("policy")
	return allocator.ParsePolicy(firstNonEmpty(name, fallback))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printCapacity(c capacity.Capacity) {
	fmt.Printf("\nDrivers:          %d × %d seats\n", c.DriverCount, c.SeatsPerDriver)
	fmt.Printf("Roster capacity:  %d\n", c.TotalRosterCapacity)
	fmt.Printf("Already rostered: %d\n", c.AlreadyRostered)
	fmt.Printf("Remaining slots:  %d\n", c.RemainingRosterSlots)
	fmt.Printf("Waitlist size:    %d\n\n", c.WaitlistSize)
	if c.Overbooked {
		fmt.Printf("⚠️  The roster already holds more people than the drivers can seat\n\n")
	}
}

func printDecision(d services.DecisionResult) {
	printCapacity(d.Capacity)
	fmt.Printf("Policy:     %s\n", d.Policy)
	fmt.Printf("Rostered:   %d\n", d.Counts.Rostered)
	fmt.Printf("Waitlisted: %d\n", d.Counts.Waitlisted)
	fmt.Printf("Rejected:   %d\n\n", d.Counts.Rejected)
	if d.Overage.Roster > 0 || d.Overage.Waitlist > 0 {
		fmt.Printf("⚠️  Over capacity by %d rostered and %d waitlisted\n\n", d.Overage.Roster, d.Overage.Waitlist)
	}

	printApplicants(d.Allocation)

	if len(d.Commit.Written) > 0 || len(d.Commit.Skipped) > 0 {
		fmt.Printf("%s\n\n", d.Commit.Message())
	}
}

func printApplicants(applicants []model.Applicant) {
	for i, a := range applicants {
		fmt.Printf("  %2d. %-25s %-35s %-10s%s\n", i+1, a.Name, a.Email, a.RosterState, driverMark(a))
	}
	fmt.Println()
}

func driverMark(a model.Applicant) string {
	switch {
	case a.IsDriver:
		return " 🚗"
	case a.OffersToDrive:
		return " (offered to drive)"
	}
	return ""
}
