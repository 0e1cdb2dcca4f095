package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks <subject-id>",
	Short: "List a subject's enhancement tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tasks, err := st.ListTasks(ctx, args[0])
		if err != nil {
			return err
		}
		for _, t := range tasks {
			line := fmt.Sprintf("%s  %-20s  %-10s  priority %.0f  attempts %d",
				t.ID, t.Dimension, t.Status, t.Priority, t.Attempts)
			if t.LastError != "" {
				line += "  (" + t.LastError + ")"
			}
			fmt.Println(line)
		}
		fmt.Printf("%d task(s)\n", len(tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
