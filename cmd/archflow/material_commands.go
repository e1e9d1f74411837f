package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"archflow/internal/api"
	"archflow/internal/workflow"
)

func newMaterialCommand(ctx *commandContext) *cobra.Command {
	materialCmd := &cobra.Command{
		Use:   "material",
		Short: "Inspect and edit job materials",
	}

	materialCmd.AddCommand(newMaterialListCommand(ctx))
	materialCmd.AddCommand(newMaterialUpdateCommand(ctx))

	return materialCmd
}

func newMaterialListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List materials",
	}
	query := addQueryFlags(cmd,
		queryFlag{name: "id", key: "id", usage: "Material id", multi: true},
		queryFlag{name: "job", key: "job", usage: "Job id", multi: true},
		queryFlag{name: "task", key: "task", usage: "Only materials linked to this task"},
		queryFlag{name: "type", key: "type", usage: "FOLDER, PHYSICAL_DOCUMENT or DIGITAL_OBJECT", multi: true},
		queryFlag{name: "profile", key: "profile", usage: "Material definition name", multi: true},
		queryFlag{name: "label", key: "label", usage: "Label substring"},
		queryFlag{name: "barcode", key: "barcode", usage: "Physical document barcode"},
	)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		filter, err := api.MaterialFilterFromQuery(query.values(ctx.locale()))
		if err != nil {
			return err
		}
		return ctx.withManager(func(mgr *workflow.Manager) error {
			views, err := mgr.FindMaterial(cmd.Context(), filter)
			if err != nil {
				return err
			}
			materials := api.FromMaterialViews(views)
			rows := make([][]string, 0, len(materials))
			for _, m := range materials {
				rows = append(rows, []string{
					strconv.FormatInt(m.ID, 10),
					strconv.FormatInt(m.JobID, 10),
					labelOr(m.ProfileLabel, m.ProfileName),
					m.Type,
					m.Label,
					m.State,
					m.Way,
					materialLocator(m),
				})
			}
			return ctx.render(cmd, listing{
				payload: api.ListResponse[api.Material]{Items: materials, Offset: filter.Offset},
				headers: []string{"ID", "Job", "Material", "Type", "Label", "State", "Way", "Locator"},
				rows:    rows,
				aligns:  []columnAlignment{alignRight, alignRight},
				empty:   "No materials found",
			})
		})
	}
	return cmd
}

// materialLocator picks the attribute that identifies a material of its type.
func materialLocator(m api.Material) string {
	switch {
	case m.Path != "":
		return m.Path
	case m.PID != "":
		return m.PID
	case m.Barcode != "":
		return m.Barcode
	case m.Signature != "":
		return m.Signature
	}
	return m.Field001
}

func newMaterialUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		label        string
		note         string
		state        string
		path         string
		pid          string
		barcode      string
		field001     string
		signature    string
		metadata     string
		metadataFile string
		version      int64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a material's attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("material", args[0])
			if err != nil {
				return err
			}
			update := workflow.MaterialUpdate{
				ID:        id,
				Version:   version,
				Label:     textFlag(cmd, "label", label),
				Note:      textFlag(cmd, "note", note),
				State:     textFlag(cmd, "state", state),
				Path:      textFlag(cmd, "path", path),
				PID:       textFlag(cmd, "pid", pid),
				Barcode:   textFlag(cmd, "barcode", barcode),
				Field001:  textFlag(cmd, "field001", field001),
				Signature: textFlag(cmd, "signature", signature),
				Metadata:  textFlag(cmd, "metadata", metadata),
			}
			if cmd.Flags().Changed("metadata-file") {
				mods, err := readText("", metadataFile)
				if err != nil {
					return err
				}
				update.Metadata = &mods
			}
			return ctx.withManager(func(mgr *workflow.Manager) error {
				if !cmd.Flags().Changed("version") {
					current, err := mgr.GetMaterial(cmd.Context(), id)
					if err != nil {
						return err
					}
					update.Version = current.Version
				}
				material, err := mgr.UpdateMaterial(cmd.Context(), update)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromMaterial(material))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated material %d (%s, version %d)\n", material.ID, material.Label, material.Version)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "New label")
	cmd.Flags().StringVar(&note, "note", "", "New note")
	cmd.Flags().StringVar(&state, "state", "", "New material state")
	cmd.Flags().StringVar(&path, "path", "", "Folder path (FOLDER)")
	cmd.Flags().StringVar(&pid, "pid", "", "Repository PID (DIGITAL_OBJECT)")
	cmd.Flags().StringVar(&barcode, "barcode", "", "Barcode (PHYSICAL_DOCUMENT)")
	cmd.Flags().StringVar(&field001, "field001", "", "Catalog control number (PHYSICAL_DOCUMENT)")
	cmd.Flags().StringVar(&signature, "signature", "", "Shelf signature (PHYSICAL_DOCUMENT)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "MODS XML (PHYSICAL_DOCUMENT)")
	cmd.Flags().StringVar(&metadataFile, "metadata-file", "", "Read MODS XML from this file")
	cmd.Flags().Int64Var(&version, "version", 0, "Expected material version (defaults to the current one)")
	cmd.MarkFlagsMutuallyExclusive("metadata", "metadata-file")
	return cmd
}
