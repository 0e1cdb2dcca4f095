package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/uvp-engine/internal/engine"
	"github.com/sells-group/uvp-engine/internal/model"
)

var (
	campaignSubject  string
	campaignResult   string
	campaignBrief    string
	campaignPurpose  string
	campaignIndustry string
	campaignPieces   int
	campaignDays     int
	campaignJSON     bool
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Expand value propositions into multi-day campaigns",
}

var campaignGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a campaign from a stored result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		camp, err := env.Engine.GenerateCampaign(ctx, engine.CampaignRequest{
			SubjectID:    campaignSubject,
			ResultID:     campaignResult,
			Brief:        campaignBrief,
			Purpose:      model.CampaignPurpose(campaignPurpose),
			Industry:     campaignIndustry,
			PieceCount:   campaignPieces,
			DurationDays: campaignDays,
		})
		if err != nil {
			return err
		}

		if campaignJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(camp)
		}
		printCampaign(camp)
		return nil
	},
}

var campaignApproveCmd = &cobra.Command{
	Use:   "approve <campaign-id>",
	Short: "Approve a generated campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		camp, err := env.Engine.ApproveCampaign(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("campaign %s is now %s\n", camp.ID, camp.Status)
		return nil
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a subject's campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		campaigns, err := st.ListCampaigns(ctx, campaignSubject)
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			fmt.Printf("%s  %-10s  %-12s  %d pieces / %d days\n",
				c.ID, c.Status, c.Purpose, len(c.Pieces), c.DurationDays)
		}
		fmt.Printf("%d campaign(s)\n", len(campaigns))
		return nil
	},
}

func printCampaign(c *model.Campaign) {
	fmt.Printf("Campaign: %s (%s, %s)\n", c.ID, c.Purpose, c.Template)
	fmt.Printf("Status:   %s, %d days\n\n", c.Status, c.DurationDays)
	for _, p := range c.Pieces {
		fmt.Printf("Day %2d [%s]\n%s\n\n", p.DayOffset, p.Trigger, p.Content)
	}
}

func init() {
	campaignGenerateCmd.Flags().StringVar(&campaignSubject, "subject", "", "subject ID (uses its newest result)")
	campaignGenerateCmd.Flags().StringVar(&campaignResult, "result", "", "specific synthesis result ID")
	campaignGenerateCmd.Flags().StringVar(&campaignBrief, "brief", "", "free-text campaign intent, classified when --purpose is unset")
	campaignGenerateCmd.Flags().StringVar(&campaignPurpose, "purpose", "", "campaign purpose: launch, awareness, engagement, conversion, retention, reactivation")
	campaignGenerateCmd.Flags().StringVar(&campaignIndustry, "industry", "", "industry for customization overlay")
	campaignGenerateCmd.Flags().IntVar(&campaignPieces, "pieces", 0, "piece count (clamped to the template bounds)")
	campaignGenerateCmd.Flags().IntVar(&campaignDays, "days", 0, "campaign duration in days (clamped to the template bounds)")
	campaignGenerateCmd.Flags().BoolVar(&campaignJSON, "json", false, "print the campaign as JSON")
	campaignListCmd.Flags().StringVar(&campaignSubject, "subject", "", "subject ID")
	campaignCmd.AddCommand(campaignGenerateCmd, campaignApproveCmd, campaignListCmd)
	rootCmd.AddCommand(campaignCmd)
}
