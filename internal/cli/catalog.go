// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// catalog.go - Model and agent listings.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/util"
)

func (a *app) newModelsCmd() *cobra.Command {
	var usage bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the backend offers",
		Long: `List the models the backend offers. With --usage, show today's call
count and remaining calls for each model instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			if usage {
				rows, err := client.DailyUsage(ctx)
				if err != nil {
					return a.fail(cmd, err)
				}
				if a.flags.JSON {
					return NewJSONResponse("models usage", rows).Print(a.out)
				}
				fmt.Fprint(a.out, formatUsage(rows))
				return nil
			}

			models, err := client.ListModels(ctx)
			if err != nil {
				return a.fail(cmd, err)
			}
			if a.flags.JSON {
				return NewJSONResponse("models", models).Print(a.out)
			}
			fmt.Fprint(a.out, formatModels(models))
			return nil
		},
	}
	cmd.Flags().BoolVar(&usage, "usage", false, "show today's usage per model")
	return cmd
}

func (a *app) newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agents available for agent mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			agents, err := client.ListAgents(ctx)
			if err != nil {
				return a.fail(cmd, err)
			}
			if a.flags.JSON {
				return NewJSONResponse("agents", agents).Print(a.out)
			}
			fmt.Fprint(a.out, formatAgents(agents))
			return nil
		},
	}
}

func formatModels(models []backend.Model) string {
	if len(models) == 0 {
		return "No models available.\n"
	}
	var sb strings.Builder
	sb.WriteString(util.Pad("MODEL", 36) + "  DESCRIPTION\n")
	for _, m := range models {
		desc := firstNonEmpty(m.Desc, m.Label)
		sb.WriteString(strings.TrimRight(util.Pad(m.Value(), 36)+"  "+desc, " ") + "\n")
	}
	return sb.String()
}

func formatUsage(rows []backend.ModelUsage) string {
	if len(rows) == 0 {
		return "No usage reported.\n"
	}
	var sb strings.Builder
	sb.WriteString(util.Pad("MODEL", 36) + "  " + util.Pad("USED", 6) + "  " + util.Pad("LEFT", 6) + "  LIMIT\n")
	for _, u := range rows {
		limit := "-"
		if u.MaxCalls > 0 {
			limit = fmt.Sprint(u.MaxCalls)
		}
		line := util.Pad(u.Value(), 36) + "  " +
			util.Pad(fmt.Sprint(u.CurrentUsage), 6) + "  " +
			util.Pad(fmt.Sprint(u.RemainingCalls), 6) + "  " + limit
		if u.Exhausted() {
			line = RenderConditional(WarningStyle, line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func formatAgents(agents []backend.Agent) string {
	if len(agents) == 0 {
		return "No agents available.\n"
	}
	var sb strings.Builder
	sb.WriteString(util.Pad("AGENT", 36) + "  NAME\n")
	for _, ag := range agents {
		sb.WriteString(util.Pad(ag.ID, 36) + "  " + ag.Name + "\n")
	}
	return sb.String()
}
