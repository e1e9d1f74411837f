package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archflow/internal/api"
	"archflow/internal/config"
	"archflow/internal/profile"
	"archflow/internal/workflow"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect the workflow profile",
	}

	profileCmd.AddCommand(newProfileValidateCommand(ctx))
	profileCmd.AddCommand(newProfileListCommand(ctx))

	return profileCmd
}

func newProfileValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Parse a profile document and report its summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.Profile
			if len(args) == 1 {
				if path, err = config.ExpandPath(strings.TrimSpace(args[0])); err != nil {
					return fmt.Errorf("resolve profile path: %w", err)
				}
			}
			p, err := profile.Load(path)
			if err != nil {
				return err
			}
			info := api.FromProfile(p)
			if ctx.jsonOutput() {
				return writeJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile: %s\n", info.Source)
			fmt.Fprintf(out, "Checksum: %s\n", info.Checksum)
			fmt.Fprintf(out, "Jobs: %d\n", info.Jobs)
			fmt.Fprintln(out, "Profile valid")
			return nil
		},
	}
}

func newProfileListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job definitions with their steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := profile.Load(cfg.Paths.Profile)
			if err != nil {
				return err
			}
			// Job definitions come from the profile alone; no store is needed.
			mgr := workflow.NewManager(nil, profile.NewHolder(p), nil,
				workflow.WithDefaultLocale(cfg.Workflow.DefaultLocale))
			defs, err := mgr.JobDefinitions(ctx.locale())
			if err != nil {
				return err
			}
			dtos := api.FromJobDefinitions(defs)
			rows := make([][]string, 0, len(dtos))
			for _, def := range dtos {
				steps := make([]string, 0, len(def.Steps))
				for _, step := range def.Steps {
					name := step.Task
					if step.Optional {
						name += "?"
					}
					steps = append(steps, name)
				}
				rows = append(rows, []string{
					def.Name,
					def.Title,
					strconv.Itoa(def.Priority),
					yesNo(def.Disabled),
					strings.Join(steps, " > "),
				})
			}
			return ctx.render(cmd, listing{
				payload: dtos,
				headers: []string{"Name", "Title", "Priority", "Disabled", "Steps"},
				rows:    rows,
				aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				empty:   "Profile defines no jobs",
			})
		},
	}
}
