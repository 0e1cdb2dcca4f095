package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/store"
)

var (
	runsStatus string
	runsURL    string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect generation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:     model.RunStatus(runsStatus),
			SubjectURL: runsURL,
			Limit:      runsLimit,
		})
		if err != nil {
			return err
		}

		for _, r := range runs {
			fmt.Printf("%s  %-13s  %s\n", r.ID, r.Status, r.Business.URL)
		}
		fmt.Printf("%d run(s)\n", len(runs))
		return nil
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show one run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status")
	runsListCmd.Flags().StringVar(&runsURL, "url", "", "filter by business URL")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to list")
	runsCmd.AddCommand(runsListCmd, runsGetCmd)
	rootCmd.AddCommand(runsCmd)
}
