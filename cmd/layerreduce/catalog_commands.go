package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"layerreduce/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage shots, tasks and versions in the asset catalog",
	}

	catalogCmd.AddCommand(newCatalogAddShotCommand(ctx))
	catalogCmd.AddCommand(newCatalogAddTaskCommand(ctx))
	catalogCmd.AddCommand(newCatalogAddVersionCommand(ctx))
	catalogCmd.AddCommand(newCatalogSetStatusCommand(ctx))
	catalogCmd.AddCommand(newCatalogListCommand(ctx))

	return catalogCmd
}

func newCatalogAddShotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-shot CODE",
		Short: "Register a shot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				shot, err := store.AddShot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, shot)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added shot %s (id %d)\n", shot.Code, shot.ID)
				return nil
			})
		},
	}
}

func newCatalogAddTaskCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-task SHOT NAME",
		Short: "Register a task on a shot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				shot, err := store.FindShot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				task, err := store.AddTask(cmd.Context(), shot.ID, args[1])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added task %q to %s (id %d)\n", task.Name, shot.Code, task.ID)
				return nil
			})
		},
	}
}

func newCatalogAddVersionCommand(ctx *commandContext) *cobra.Command {
	var status string
	var description string

	cmd := &cobra.Command{
		Use:   "add-version SHOT TASK CODE PATH",
		Short: "Record a delivered version of a task",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				shot, err := store.FindShot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				task, err := store.FindTask(cmd.Context(), shot.ID, args[1])
				if err != nil {
					return err
				}
				version, err := store.AddVersion(cmd.Context(), catalog.NewVersion{
					TaskID:      task.ID,
					Code:        args[2],
					Path:        args[3],
					Status:      status,
					Description: description,
				})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, version)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added version %s (id %d, status %s)\n", version.Code, version.ID, version.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", catalog.DefaultVersionStatus, "Version status")
	cmd.Flags().StringVar(&description, "description", "", "Version description")
	return cmd
}

func newCatalogSetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status VERSION_ID STATUS",
		Short: "Change the status of a version, e.g. to omit it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version id %q", args[0])
			}
			return ctx.withCatalog(func(store *catalog.Store) error {
				if err := store.SetStatus(cmd.Context(), id, args[1]); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"id": id, "status": args[1]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version %d is now %s\n", id, args[1])
				return nil
			})
		},
	}
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [SHOT]",
		Short: "List shots, or the versions of one shot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				if len(args) == 0 {
					return listShots(cmd, ctx, store)
				}
				return listVersions(cmd, ctx, store, args[0])
			})
		},
	}
}

func listShots(cmd *cobra.Command, ctx *commandContext, store *catalog.Store) error {
	shots, err := store.ListShots(cmd.Context())
	if err != nil {
		return err
	}
	if ctx.JSONMode() {
		return writeJSON(cmd, orEmpty(shots))
	}
	out := cmd.OutOrStdout()
	if len(shots) == 0 {
		fmt.Fprintln(out, "No shots in the catalog")
		return nil
	}
	rows := make([][]string, 0, len(shots))
	for _, s := range shots {
		rows = append(rows, []string{strconv.FormatInt(s.ID, 10), s.Code, s.CreatedAt.Local().Format(time.DateTime)})
	}
	fmt.Fprintln(out, renderTable(tableLayout{
		Headers: []string{"ID", "Shot", "Created"},
		Rows:    rows,
		Right:   []int{0},
	}))
	return nil
}

func listVersions(cmd *cobra.Command, ctx *commandContext, store *catalog.Store, code string) error {
	shot, err := store.FindShot(cmd.Context(), code)
	if err != nil {
		return err
	}
	versions, err := store.ListVersions(cmd.Context(), shot.ID)
	if err != nil {
		return err
	}
	if ctx.JSONMode() {
		return writeJSON(cmd, orEmpty(versions))
	}
	out := cmd.OutOrStdout()
	if len(versions) == 0 {
		fmt.Fprintf(out, "No versions for %s\n", shot.Code)
		return nil
	}
	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			v.Code,
			v.TaskName,
			v.Status,
			v.Path,
			v.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, renderTable(tableLayout{
		Headers: []string{"ID", "Version", "Task", "Status", "Path", "Created"},
		Rows:    rows,
		Right:   []int{0},
	}))
	return nil
}
