package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/model"
)

var (
	generateMode string
	generateName string
	generateWait time.Duration
	generateJSON bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <url>",
	Short: "Generate a value proposition for a business website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		business := model.Business{
			URL:  args[0],
			Name: generateName,
		}

		run, err := env.Engine.GenerateUVP(ctx, business, model.SynthesisMode(generateMode))
		if err != nil {
			return err
		}

		// Optionally hang around for background enhancement to land.
		if generateWait > 0 && run.Status == model.RunStatusEnhancing {
			run = waitForEnhancement(env, run, generateWait)
		}

		if generateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		printRun(run)
		return nil
	},
}

// waitForEnhancement blocks until the subject's enhancement tasks settle
// or the wait budget elapses, returning the freshest result seen.
func waitForEnhancement(env *engineEnv, run *model.Run, wait time.Duration) *model.Run {
	updates, cancel := env.Engine.Subscribe(run.Business.ID)
	defer cancel()

	deadline := time.After(wait)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return run
			}
			if u.Status == model.TaskStatusComplete && u.Result != nil {
				run.Result = u.Result
			}
			if u.Status.Terminal() && env.Pool.Depth() == 0 {
				return run
			}
		case <-deadline:
			zap.L().Info("enhancement wait elapsed, returning current result")
			return run
		}
	}
}

func printRun(run *model.Run) {
	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("Status:  %s\n", run.Status)
	if run.Result == nil {
		return
	}
	res := run.Result
	fmt.Printf("Tier:    %s", res.TierUsed)
	if res.Degraded {
		fmt.Printf(" (degraded)")
	}
	fmt.Println()
	if res.Quality != nil {
		fmt.Printf("Quality: %.0f\n", res.Quality.Overall)
	}
	fmt.Printf("\n%s\n", res.PrimaryStatement)
	for _, sec := range res.SecondaryStatements {
		fmt.Printf("  - %s\n", sec)
	}
}

func init() {
	generateCmd.Flags().StringVar(&generateMode, "mode", "standard", "synthesis mode: standard, concise, bold")
	generateCmd.Flags().StringVar(&generateName, "name", "", "business name override")
	generateCmd.Flags().DurationVar(&generateWait, "wait", 0, "wait up to this long for background enhancement")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "print the full run as JSON")
	rootCmd.AddCommand(generateCmd)
}
