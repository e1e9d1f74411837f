package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"archflow/internal/api"
	"archflow/internal/workflow"
)

func newParamCommand(ctx *commandContext) *cobra.Command {
	paramCmd := &cobra.Command{
		Use:   "param",
		Short: "Inspect task parameters",
	}
	paramCmd.AddCommand(newParamListCommand(ctx))
	return paramCmd
}

func newParamListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task parameters",
	}
	query := addQueryFlags(cmd,
		queryFlag{name: "task", key: "task", usage: "Task id", multi: true},
		queryFlag{name: "job", key: "job", usage: "Job id", multi: true},
		queryFlag{name: "profile", key: "name", usage: "Parameter name", multi: true},
		queryFlag{name: "task-profile", key: "taskProfile", usage: "Task definition name", multi: true},
	)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		filter, err := api.ParamFilterFromQuery(query.values(ctx.locale()))
		if err != nil {
			return err
		}
		return ctx.withManager(func(mgr *workflow.Manager) error {
			views, err := mgr.FindParameter(cmd.Context(), filter)
			if err != nil {
				return err
			}
			params := api.FromParamViews(views)
			rows := make([][]string, 0, len(params))
			for _, p := range params {
				value := p.Value
				if !p.Set {
					value = "-"
				}
				rows = append(rows, []string{
					strconv.FormatInt(p.TaskID, 10),
					strconv.FormatInt(p.JobID, 10),
					p.TaskProfileName,
					p.TaskState,
					labelOr(p.Label, p.Name),
					p.ValueType,
					value,
					yesNo(p.Required),
				})
			}
			return ctx.render(cmd, listing{
				payload: api.ListResponse[api.Param]{Items: params, Offset: filter.Offset},
				headers: []string{"Task", "Job", "Task Profile", "Task State", "Parameter", "Type", "Value", "Required"},
				rows:    rows,
				aligns:  []columnAlignment{alignRight, alignRight},
				empty:   "No parameters found",
			})
		})
	}
	return cmd
}
