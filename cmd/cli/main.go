package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jakechorley/autoroster/cmd/cli/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		env     string
		verbose bool
	)
	app := &commands.AppContext{}

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Autoroster CLI - Build trip rosters and manage member priorities",
		Long: `A CLI tool for allocating trip seats from commitment form responses, maintaining the
priority ledger that decides who goes next time, and serving both over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Init(ctx, env, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	_ = rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.ListPrioritiesCmd(app))
	rootCmd.AddCommand(commands.GetPriorityCmd(app))
	rootCmd.AddCommand(commands.AdjustPriorityCmd(app))
	rootCmd.AddCommand(commands.BatchAdjustPriorityCmd(app))
	rootCmd.AddCommand(commands.ListAdjustmentsCmd(app))
	rootCmd.AddCommand(commands.CapacityCmd(app))
	rootCmd.AddCommand(commands.PreviewRosterCmd(app))
	rootCmd.AddCommand(commands.BuildRosterCmd(app))
	rootCmd.AddCommand(commands.ComparePoliciesCmd(app))
	rootCmd.AddCommand(commands.ClearRosterCmd(app))
	rootCmd.AddCommand(commands.RebuildRosterCmd(app))
	rootCmd.AddCommand(commands.SettlePrioritiesCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		app.Close()
		stop()
		os.Exit(1)
	}
}
