// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration inspection and editing.

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstream/internal/config"
)

// ErrConfigExists is returned by "config init" when a file is already present.
var ErrConfigExists = errors.New("config file already exists (use --force to overwrite)")

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}
	cmd.AddCommand(
		a.newConfigShowCmd(),
		a.newConfigPathCmd(),
		a.newConfigInitCmd(),
		a.newConfigGetCmd(),
		a.newConfigSetCmd(),
	)
	return cmd
}

func (a *app) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after environment and flag overrides. The token is masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.JSON {
				values := make(map[string]string, len(config.Keys()))
				for _, k := range config.Keys() {
					v, err := a.cfg.Get(k)
					if err != nil {
						return err
					}
					values[k] = v
				}
				return NewJSONResponse("config show", values).Print(a.out)
			}
			fmt.Fprint(a.out, a.cfg.String())
			return nil
		},
	}
}

func (a *app) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.JSON {
				return NewJSONResponse("config path", map[string]string{"path": a.cfgPath}).Print(a.out)
			}
			fmt.Fprintln(a.out, a.cfgPath)
			return nil
		},
	}
}

func (a *app) newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.cfgPath); err == nil && !force {
				return ErrConfigExists
			}
			if err := config.Default().SaveTo(a.cfgPath); err != nil {
				return err
			}
			if a.flags.JSON {
				return NewJSONResponse("config init", map[string]string{"path": a.cfgPath}).Print(a.out)
			}
			fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Wrote "+a.cfgPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (a *app) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Field: args[0], Reason: err.Error(), Example: "chatstream config get chat.model"}
			}
			if a.flags.JSON {
				return NewJSONResponse("config get", map[string]string{args[0]: v}).Print(a.out)
			}
			fmt.Fprintln(a.out, v)
			return nil
		},
	}
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value",
		Long: `Change one value in the config file. Environment variables and
command-line flags are not written back.

Keys: ` + strings.Join(config.Keys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Edit the file as stored, without the overrides applied by load.
			stored := config.Default()
			if _, err := os.Stat(a.cfgPath); err == nil {
				loaded, err := config.LoadFrom(a.cfgPath)
				if err != nil {
					return err
				}
				stored = loaded
			}
			if err := stored.Set(args[0], args[1]); err != nil {
				return &UsageError{Field: args[0], Reason: err.Error(), Example: "chatstream config set chat.model gpt-4o"}
			}
			if err := stored.Validate(); err != nil {
				return err
			}
			if err := stored.SaveTo(a.cfgPath); err != nil {
				return err
			}
			a.logger.Debug().Str("key", args[0]).Str("path", a.cfgPath).Msg("config updated")

			shown, _ := stored.Get(args[0])
			if a.flags.JSON {
				return NewJSONResponse("config set", map[string]string{args[0]: shown}).Print(a.out)
			}
			fmt.Fprintln(a.out, RenderConditional(SuccessStyle, fmt.Sprintf("%s = %s", args[0], shown)))
			return nil
		},
	}
}
