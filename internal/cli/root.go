// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// root.go - Command tree and entry point.

package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// loadAnnotation controls how much of the configuration a command needs
// before it runs.
const (
	loadAnnotation = "chatstream/load"
	loadNone       = "none"
	loadPathOnly   = "path"
)

// NewRootCmd builds the command tree reading from in and writing to out
// and errOut.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := newApp(in, out, errOut)

	root := &cobra.Command{
		Use:   "chatstream",
		Short: "Stream answers from a chat backend in the terminal",
		Long: `chatstream talks to a conversational AI backend and streams its answers
as they are produced.

Configuration lives in ~/.chatstream/config.toml (or $CHATSTREAM_HOME).
CHATSTREAM_* environment variables and flags override it.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Annotations[loadAnnotation] {
			case loadNone:
				return nil
			case loadPathOnly:
				return a.resolvePath()
			}
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate("chatstream version {{.Version}}\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Field: "flag", Reason: err.Error(), Example: cmd.CommandPath() + " --help"}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ConfigPath, "config", "", "config file (default ~/.chatstream/config.toml)")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.URL, "url", "", "backend base URL")
	pf.StringVar(&a.flags.Token, "token", "", "bearer token")
	pf.BoolVar(&a.flags.JSON, "json", false, "print machine-readable JSON")
	pf.BoolVar(&a.flags.NoTyping, "no-typing", false, "print answers without the typing animation")
	pf.BoolVar(&a.flags.NoHistory, "no-history", false, "do not read or write local history")
	pf.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose output")

	version := a.newVersionCmd()
	version.Annotations = map[string]string{loadAnnotation: loadNone}

	cfgCmd := a.newConfigCmd()
	for _, sub := range cfgCmd.Commands() {
		if sub.Name() == "path" || sub.Name() == "init" || sub.Name() == "set" {
			sub.Annotations = map[string]string{loadAnnotation: loadPathOnly}
		}
	}

	root.AddCommand(
		a.newAskCmd(),
		a.newAgentCmd(),
		a.newChatCmd(),
		a.newRoomsCmd(),
		a.newModelsCmd(),
		a.newAgentsCmd(),
		a.newHistoryCmd(),
		cfgCmd,
		version,
	)
	return root
}

// Execute runs chatstream with the process arguments and returns the
// exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	root := NewRootCmd(in, out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		DisplayError(errOut, err)
	}
	return GetExitCode(err)
}
