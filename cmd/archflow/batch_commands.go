package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archflow/internal/api"
	"archflow/internal/store"
	"archflow/internal/workflow"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Track import batches",
	}

	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchAddCommand(ctx))
	batchCmd.AddCommand(newBatchUpdateCommand(ctx))

	return batchCmd
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List import batches",
	}
	flags := []queryFlag{
		{name: "id", key: "id", usage: "Batch id", multi: true},
		{name: "state", key: "state", usage: "Batch state", multi: true},
		{name: "profile", key: "profile", usage: "Import profile name", multi: true},
		{name: "owner", key: "owner", usage: "Batch owner"},
		{name: "job", key: "job", usage: "Job id"},
	}
	flags = append(flags, timeRangeFlags("created")...)
	flags = append(flags, timeRangeFlags("modified")...)
	query := addQueryFlags(cmd, flags...)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		filter, err := api.BatchFilterFromQuery(query.values(ctx.locale()))
		if err != nil {
			return err
		}
		return ctx.withManager(func(mgr *workflow.Manager) error {
			views, err := mgr.FindBatch(cmd.Context(), filter)
			if err != nil {
				return err
			}
			batches := api.FromBatchViews(views)
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				job := ""
				if b.JobID > 0 {
					job = strconv.FormatInt(b.JobID, 10)
				}
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10),
					b.Folder,
					b.Title,
					b.State,
					strconv.Itoa(b.ItemCount),
					job,
					b.Owner,
					b.Modified,
				})
			}
			return ctx.render(cmd, listing{
				payload: api.ListResponse[api.Batch]{Items: batches, Offset: filter.Offset},
				headers: []string{"ID", "Folder", "Title", "State", "Items", "Job", "Owner", "Modified"},
				rows:    rows,
				aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				empty:   "No batches found",
			})
		})
	}
	return cmd
}

func newBatchAddCommand(ctx *commandContext) *cobra.Command {
	var (
		folder      string
		title       string
		profileName string
		owner       string
		jobID       int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an import batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := workflow.BatchRequest{
				Folder:      folder,
				Title:       title,
				ProfileName: profileName,
				Owner:       owner,
				JobID:       jobID,
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				batch, err := mgr.AddBatch(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromBatch(batch))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered batch %d (%s)\n", batch.ID, batch.Folder)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Folder being imported")
	cmd.Flags().StringVar(&title, "title", "", "Batch title")
	cmd.Flags().StringVar(&profileName, "profile", "", "Import profile name")
	cmd.Flags().StringVar(&owner, "owner", "", "Batch owner")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Job the batch belongs to")
	_ = cmd.MarkFlagRequired("folder")
	return cmd
}

func newBatchUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		state   string
		logText string
		items   int
		jobID   int64
		version int64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Move a batch along its import lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("batch", args[0])
			if err != nil {
				return err
			}
			update := workflow.BatchUpdate{
				ID:        id,
				Version:   version,
				Log:       textFlag(cmd, "log", logText),
				ItemCount: intFlag(cmd, "items", items),
			}
			if cmd.Flags().Changed("state") {
				next := store.BatchState(strings.ToUpper(strings.TrimSpace(state)))
				update.State = &next
			}
			if cmd.Flags().Changed("job") {
				update.JobID = &jobID
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				if !cmd.Flags().Changed("version") {
					current, err := mgr.GetBatch(cmd.Context(), id)
					if err != nil {
						return err
					}
					update.Version = current.Version
				}
				batch, err := mgr.UpdateBatch(cmd.Context(), update)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromBatch(batch))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated batch %d (%s, version %d)\n", batch.ID, batch.State, batch.Version)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Target state, e.g. LOADED or INGESTING")
	cmd.Flags().StringVar(&logText, "log", "", "Import log text")
	cmd.Flags().IntVar(&items, "items", 0, "Number of imported items")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Job the batch belongs to")
	cmd.Flags().Int64Var(&version, "version", 0, "Expected batch version (defaults to the current one)")
	return cmd
}
