// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the JSON form of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if a.flags.JSON {
				return NewJSONResponse("version", info).Print(a.out)
			}
			fmt.Fprintf(a.out, "chatstream version %s\n", info.Version)
			if a.flags.Verbose {
				fmt.Fprintln(a.out, RenderField("commit", info.GitCommit))
				fmt.Fprintln(a.out, RenderField("built", info.BuildDate))
				fmt.Fprintln(a.out, RenderField("go", info.GoVersion))
				fmt.Fprintln(a.out, RenderField("platform", info.Platform))
			}
			return nil
		},
	}
}
