package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"drillagg/internal/services"
)

func newListCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workbooks a run would read, in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := fallback(input, cfg.Aggregate.InputDir)
			if dir == "" {
				return fmt.Errorf("no input directory: pass --input or set aggregate.input_dir")
			}

			svc := services.NewAggregateService(cfg.Aggregate, logger)
			refs, err := svc.ListDocuments(cmd.Context(), dir)
			if err != nil {
				return err
			}

			if len(refs) == 0 {
				colorYellow.Fprintf(os.Stderr, "No workbooks in %s\n", dir)
				return nil
			}
			colorCyan.Fprintf(os.Stderr, "%d workbooks in %s\n", len(refs), dir)
			out := cmd.OutOrStdout()
			for i, ref := range refs {
				fmt.Fprintf(out, "%3d  %-40s %10d  %s\n", i+1, ref.Name, ref.Size, ref.ModTime.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "directory holding the workbooks")
	return cmd
}
