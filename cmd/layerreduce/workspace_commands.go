package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"layerreduce/internal/staging"
)

func newWorkspaceCommand(ctx *commandContext) *cobra.Command {
	workspaceCmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage project folders in the work directory",
	}

	workspaceCmd.AddCommand(newWorkspaceListCommand(ctx))
	workspaceCmd.AddCommand(newWorkspaceCleanCommand(ctx))

	return workspaceCmd
}

func newWorkspaceListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staged project folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			workDir := cfg.WorkDir()

			dirs, err := staging.ListDirectories(workDir)
			if err != nil {
				return fmt.Errorf("list project folders: %w", err)
			}
			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"work_dir":         workDir,
					"directories":      orEmpty(dirs),
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No project folders in %s\n", workDir)
				return nil
			}
			fmt.Fprintf(out, "Work directory: %s\n\n", workDir)

			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				age := time.Since(dir.ModTime).Truncate(time.Minute)
				rows = append(rows, []string{dir.Name, formatAge(age), formatBytes(dir.Size)})
			}
			fmt.Fprintln(out, renderTable(tableLayout{
				Headers: []string{"Project", "Age", "Size"},
				Rows:    rows,
				Right:   []int{1, 2},
				Footer:  []string{fmt.Sprintf("Total: %d folders", len(dirs)), "", formatBytes(totalSize)},
			}))
			return nil
		},
	}
}

func newWorkspaceCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove project folders older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			result := staging.CleanStale(cmd.Context(), cfg.WorkDir(), olderThan, logger)

			if ctx.JSONMode() {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Err))
				}
				return writeJSON(cmd, map[string]any{"removed": orEmpty(result.Removed), "errors": errs})
			}

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No project folders to clean")
				return nil
			}
			fmt.Fprintf(out, "Removed %d project folders", len(result.Removed))
			if len(result.Errors) > 0 {
				fmt.Fprintf(out, ", %d errors", len(result.Errors))
			}
			fmt.Fprintln(out)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Minimum age of folders to remove")
	return cmd
}

func formatAge(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return formatDuration(d)
}
