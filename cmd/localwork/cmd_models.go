package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, download and load models",
	}
	cmd.AddCommand(modelsListCmd(), modelsDownloadCmd(), modelsLoadCmd())
	return cmd
}

func modelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog and local models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.app.Models.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No models configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATUS")
			for _, m := range list {
				status := "available"
				if m.Downloaded {
					status = "downloaded"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.DisplayName, formatBytes(m.SizeBytes), status)
			}
			return w.Flush()
		},
	}
}

func modelsDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <model-id>",
		Short: "Download a model from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			job, err := s.app.Downloads.Start(ctx, args[0])
			if err != nil {
				return err
			}

			updates := job.Progress()
			interrupted := ctx.Done()
			for {
				select {
				case p, ok := <-updates:
					if !ok {
						fmt.Println()
						path, err := job.Result()
						if err != nil {
							return err
						}
						fmt.Printf("Saved to %s\n", path)
						return nil
					}
					printProgress(p)
				case <-interrupted:
					job.Cancel()
					interrupted = nil
				}
			}
		},
	}
}

func modelsLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <model-id>",
		Short: "Check that a downloaded model loads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.app.SelectModel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Model %s loaded.\n", args[0])
			return nil
		},
	}
}

func printProgress(p api.DownloadProgress) {
	if p.Indeterminate() {
		fmt.Printf("\r%s: %s", p.ModelID, formatBytes(p.DownloadedBytes))
		return
	}
	fmt.Printf("\r%s: %5.1f%% (%s / %s)", p.ModelID, p.PercentValue(), formatBytes(p.DownloadedBytes), formatBytes(p.TotalBytes))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
