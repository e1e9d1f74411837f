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

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Create and manage workflow jobs",
	}

	jobCmd.AddCommand(newJobAddCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobUpdateCommand(ctx))

	return jobCmd
}

func newJobAddCommand(ctx *commandContext) *cobra.Command {
	var (
		profileName  string
		metadata     string
		metadataFile string
		catalogID    string
		field        string
		value        string
		required     bool
		owner        string
		priority     int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a job from a profile job definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := readText(metadata, metadataFile)
			if err != nil {
				return err
			}
			req := workflow.AddJobRequest{
				ProfileName: strings.TrimSpace(profileName),
				Metadata:    mods,
				Owner:       strings.TrimSpace(owner),
				Priority:    intFlag(cmd, "priority", priority),
			}
			if strings.TrimSpace(catalogID) != "" {
				req.Catalog = &workflow.CatalogQuery{
					ID:       strings.TrimSpace(catalogID),
					Field:    strings.TrimSpace(field),
					Value:    strings.TrimSpace(value),
					Required: required,
				}
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				job, err := mgr.AddJob(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromJob(job))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created job %d (%s)\n", job.ID, job.Label)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "Job definition name from the profile")
	cmd.Flags().StringVar(&metadata, "metadata", "", "MODS XML describing the physical document")
	cmd.Flags().StringVar(&metadataFile, "metadata-file", "", "Read MODS XML from this file")
	cmd.Flags().StringVar(&catalogID, "catalog", "", "Catalog to look the document up in")
	cmd.Flags().StringVar(&field, "field", "", "Catalog search field (defaults to the catalog's field)")
	cmd.Flags().StringVar(&value, "value", "", "Catalog search value")
	cmd.Flags().BoolVar(&required, "required", false, "Fail when the catalog lookup fails")
	cmd.Flags().StringVar(&owner, "owner", "", "Job owner")
	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority (defaults to the profile's)")
	_ = cmd.MarkFlagRequired("profile")
	cmd.MarkFlagsMutuallyExclusive("metadata", "metadata-file")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
	}
	flags := []queryFlag{
		{name: "id", key: "id", usage: "Job id", multi: true},
		{name: "state", key: "state", usage: "Job state", multi: true},
		{name: "profile", key: "profile", usage: "Job definition name", multi: true},
		{name: "owner", key: "owner", usage: "Job owner"},
		{name: "label", key: "label", usage: "Label substring"},
	}
	flags = append(flags, timeRangeFlags("created")...)
	flags = append(flags, timeRangeFlags("modified")...)
	query := addQueryFlags(cmd, flags...)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		filter, err := api.JobFilterFromQuery(query.values(ctx.locale()))
		if err != nil {
			return err
		}
		return ctx.withManager(func(mgr *workflow.Manager) error {
			views, err := mgr.FindJob(cmd.Context(), filter)
			if err != nil {
				return err
			}
			jobs := api.FromJobViews(views)
			return ctx.render(cmd, listing{
				payload: api.ListResponse[api.Job]{Items: jobs, Offset: filter.Offset},
				headers: []string{"ID", "Profile", "Label", "State", "Progress", "Active Task", "Owner", "Modified"},
				rows:    jobRows(jobs),
				aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				empty:   "No jobs found",
			})
		})
	}
	return cmd
}

func jobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress, active := "", ""
		if job.Progress != nil {
			progress = fmt.Sprintf("%d/%d", job.Progress.Closed, job.Progress.Tasks)
			if job.Progress.ActiveTask != "" {
				active = fmt.Sprintf("%s (%s)", job.Progress.ActiveTaskLabel, job.Progress.ActiveTaskState)
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			labelOr(job.ProfileLabel, job.ProfileName),
			job.Label,
			job.State,
			progress,
			active,
			job.Owner,
			job.Modified,
		})
	}
	return rows
}

// jobDetail is the JSON shape of job show.
type jobDetail struct {
	Job   api.Job    `json:"job"`
	Tasks []api.Task `json:"tasks"`
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				if _, err := mgr.GetJob(cmd.Context(), id); err != nil {
					return err
				}
				views, err := mgr.FindJob(cmd.Context(), store.JobFilter{
					IDs:  []int64{id},
					Page: store.Page{Locale: ctx.locale()},
				})
				if err != nil {
					return err
				}
				if len(views) == 0 {
					return fmt.Errorf("job %d disappeared while reading", id)
				}
				taskViews, err := mgr.FindTask(cmd.Context(), store.TaskFilter{
					JobIDs: []int64{id},
					Page:   store.Page{Locale: ctx.locale()},
				})
				if err != nil {
					return err
				}
				detail := jobDetail{
					Job:   api.FromJobView(views[0]),
					Tasks: api.FromTaskViews(taskViews),
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				job := detail.Job
				fmt.Fprintf(out, "Job %d: %s\n", job.ID, job.Label)
				fmt.Fprintf(out, "Profile: %s\n", labelOr(job.ProfileLabel, job.ProfileName))
				fmt.Fprintf(out, "State: %s\n", job.State)
				fmt.Fprintf(out, "Priority: %d\n", job.Priority)
				if job.Owner != "" {
					fmt.Fprintf(out, "Owner: %s\n", job.Owner)
				}
				if job.Note != "" {
					fmt.Fprintf(out, "Note: %s\n", job.Note)
				}
				fmt.Fprintf(out, "Created: %s\n", job.Created)
				fmt.Fprintf(out, "Modified: %s\n", job.Modified)
				fmt.Fprintf(out, "Version: %d\n", job.Version)
				fmt.Fprintln(out)
				return ctx.render(cmd, listing{
					headers: taskHeaders,
					rows:    taskRows(detail.Tasks),
					aligns:  taskAligns,
					empty:   "Job has no tasks",
				})
			})
		},
	}
}

func newJobUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		cancel   bool
		label    string
		note     string
		priority int
		owner    string
		version  int64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a job's label, note, priority or owner, or cancel it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			update := workflow.JobUpdate{
				ID:       id,
				Version:  version,
				Label:    textFlag(cmd, "label", label),
				Note:     textFlag(cmd, "note", note),
				Priority: intFlag(cmd, "priority", priority),
				Owner:    textFlag(cmd, "owner", owner),
			}
			if cancel {
				state := store.JobCanceled
				update.State = &state
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				if !cmd.Flags().Changed("version") {
					current, err := mgr.GetJob(cmd.Context(), id)
					if err != nil {
						return err
					}
					update.Version = current.Version
				}
				job, err := mgr.UpdateJob(cmd.Context(), update)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromJob(job))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated job %d (%s, version %d)\n", job.ID, job.State, job.Version)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "Cancel the job and its open tasks")
	cmd.Flags().StringVar(&label, "label", "", "New label")
	cmd.Flags().StringVar(&note, "note", "", "New note")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringVar(&owner, "owner", "", "New owner")
	cmd.Flags().Int64Var(&version, "version", 0, "Expected job version (defaults to the current one)")
	return cmd
}

func labelOr(label, fallback string) string {
	if strings.TrimSpace(label) != "" {
		return label
	}
	return fallback
}
