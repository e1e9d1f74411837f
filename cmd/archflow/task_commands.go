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

var (
	taskHeaders = []string{"ID", "Job", "Task", "State", "Owner", "Priority", "Modified"}
	taskAligns  = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight}
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and advance tasks",
	}

	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskAddCommand(ctx))
	taskCmd.AddCommand(newTaskUpdateCommand(ctx))

	return taskCmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
	}
	flags := []queryFlag{
		{name: "id", key: "id", usage: "Task id", multi: true},
		{name: "job", key: "job", usage: "Job id", multi: true},
		{name: "state", key: "state", usage: "Task state", multi: true},
		{name: "profile", key: "profile", usage: "Task definition name", multi: true},
		{name: "owner", key: "owner", usage: "Task owner"},
	}
	flags = append(flags, timeRangeFlags("created")...)
	flags = append(flags, timeRangeFlags("modified")...)
	query := addQueryFlags(cmd, flags...)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		filter, err := api.TaskFilterFromQuery(query.values(ctx.locale()))
		if err != nil {
			return err
		}
		return ctx.withManager(func(mgr *workflow.Manager) error {
			views, err := mgr.FindTask(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tasks := api.FromTaskViews(views)
			return ctx.render(cmd, listing{
				payload: api.ListResponse[api.Task]{Items: tasks, Offset: filter.Offset},
				headers: taskHeaders,
				rows:    taskRows(tasks),
				aligns:  taskAligns,
				empty:   "No tasks found",
			})
		})
	}
	return cmd
}

func taskRows(tasks []api.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(task.ID, 10),
			strconv.FormatInt(task.JobID, 10),
			labelOr(task.ProfileLabel, task.ProfileName),
			task.State,
			task.Owner,
			strconv.Itoa(task.Priority),
			task.Modified,
		})
	}
	return rows
}

func newTaskAddCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "add <job> <task>",
		Short: "Add a task of the job's definition to an open job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				task, err := mgr.AddTask(cmd.Context(), jobID, strings.TrimSpace(args[1]), strings.TrimSpace(owner))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromTask(task))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added task %d (%s, %s) to job %d\n", task.ID, task.ProfileName, task.State, task.JobID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Task owner")
	return cmd
}

func newTaskUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		state    string
		owner    string
		note     string
		priority int
		params   []string
		version  int64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a task's state, owner, note, priority or parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			update := workflow.TaskUpdate{
				ID:       id,
				Version:  version,
				Owner:    textFlag(cmd, "owner", owner),
				Note:     textFlag(cmd, "note", note),
				Priority: intFlag(cmd, "priority", priority),
				Params:   values,
			}
			if cmd.Flags().Changed("state") {
				next := store.TaskState(strings.ToUpper(strings.TrimSpace(state)))
				update.State = &next
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				if !cmd.Flags().Changed("version") {
					current, err := mgr.GetTask(cmd.Context(), id)
					if err != nil {
						return err
					}
					update.Version = current.Version
				}
				task, err := mgr.UpdateTask(cmd.Context(), update)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromTask(task))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d (%s, version %d)\n", task.ID, task.State, task.Version)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Target state: READY, PROCESSING, FINISHED or CANCELED")
	cmd.Flags().StringVar(&owner, "owner", "", "New owner")
	cmd.Flags().StringVar(&note, "note", "", "New note")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Parameter as name=value; an empty value clears it (repeatable)")
	cmd.Flags().Int64Var(&version, "version", 0, "Expected task version (defaults to the current one)")
	return cmd
}
