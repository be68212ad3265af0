// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Local exchange history command.

package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstream/internal/export"
	"github.com/jeranaias/chatstream/internal/storage"
)

// errHistoryDisabled is returned when the history store is off or cannot
// be opened.
var errHistoryDisabled = errors.New("history is disabled (history.enabled = false) or unavailable")

func (a *app) newHistoryCmd() *cobra.Command {
	var opts struct {
		Room   string
		Search string
		Limit  int
		Show   string
		Delete string
	}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past exchanges",
		Long:  "Show exchanges recorded locally, newest first, or one room in order.",
		Example: `  chatstream history
  chatstream history --room 8f2c0a1e
  chatstream history --search "kubernetes"
  chatstream history --show 3fa85f64`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.history()
			if store == nil {
				return errHistoryDisabled
			}
			defer store.Close()
			ctx := cmd.Context()

			switch {
			case opts.Delete != "":
				if err := store.Delete(ctx, opts.Delete); err != nil {
					return a.fail(cmd, err)
				}
				if a.flags.JSON {
					return NewJSONResponse("history", map[string]string{"deleted": opts.Delete}).Print(a.out)
				}
				fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Deleted "+opts.Delete))
				return nil

			case opts.Show != "":
				e, err := store.Get(ctx, opts.Show)
				if err != nil {
					return a.fail(cmd, err)
				}
				if a.flags.JSON {
					return NewJSONResponse("history", e).Print(a.out)
				}
				a.printEntry(e)
				return nil
			}

			var (
				entries []storage.Entry
				err     error
			)
			switch {
			case opts.Search != "":
				entries, err = store.Search(ctx, opts.Search)
			case opts.Room != "":
				entries, err = store.ByRoom(ctx, opts.Room)
			default:
				entries, err = store.Recent(ctx, opts.Limit)
			}
			if err != nil {
				return a.fail(cmd, err)
			}
			if opts.Limit > 0 && len(entries) > opts.Limit {
				entries = entries[:opts.Limit]
			}

			if a.flags.JSON {
				if entries == nil {
					entries = []storage.Entry{}
				}
				return NewJSONResponse("history", entries).Print(a.out)
			}
			fmt.Fprint(a.out, storage.FormatEntries(entries))
			if len(entries) == 0 {
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Room, "room", "", "only exchanges of this room, oldest first")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "only exchanges whose query or answer contains text")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print one exchange in full")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete one exchange")
	cmd.MarkFlagsMutuallyExclusive("room", "search", "show", "delete")
	cmd.AddCommand(a.newHistoryExportCmd())
	return cmd
}

func (a *app) newHistoryExportCmd() *cobra.Command {
	var opts struct {
		Room     string
		Format   string
		Output   string
		Title    string
		Limit    int
		Stdout   bool
		Open     bool
		Theme    string
		Metadata bool
	}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exchanges to Markdown, JSON or HTML",
		Example: `  chatstream history export --room 8f2c0a1e --format html --open
  chatstream history export --limit 10 --stdout > recent.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.history()
			if store == nil {
				return errHistoryDisabled
			}
			defer store.Close()

			var (
				entries []storage.Entry
				err     error
			)
			if opts.Room != "" {
				entries, err = store.ByRoom(cmd.Context(), opts.Room)
			} else {
				entries, err = store.Recent(cmd.Context(), opts.Limit)
				slices.Reverse(entries)
			}
			if err != nil {
				return a.fail(cmd, err)
			}

			exportOpts := export.DefaultOptions()
			exportOpts.OutputDir = opts.Output
			exportOpts.Open = opts.Open
			exportOpts.Theme = opts.Theme
			exportOpts.IncludeMetadata = opts.Metadata

			exporter, err := export.ForFormat(opts.Format, exportOpts)
			if err != nil {
				return &UsageError{Field: "--format", Reason: err.Error()}
			}
			transcript := export.FromEntries(opts.Title, entries)

			if opts.Stdout {
				data, err := exporter.Export(transcript)
				if err != nil {
					return err
				}
				_, err = a.out.Write(data)
				return err
			}

			path, err := export.WriteFile(transcript, exporter, exportOpts)
			if err != nil && path == "" {
				return a.fail(cmd, err)
			}
			if err != nil {
				a.logger.Warn().Err(err).Str("path", path).Msg("could not open export")
			}
			if a.flags.JSON {
				return NewJSONResponse("history export", map[string]any{
					"path":      path,
					"format":    opts.Format,
					"exchanges": len(transcript.Exchanges),
				}).Print(a.out)
			}
			fmt.Fprintln(a.out, RenderConditional(SuccessStyle, fmt.Sprintf(
				"Exported %d exchanges to %s", len(transcript.Exchanges), path)))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&opts.Room, "room", "", "export one room (default: recent exchanges)")
	fl.StringVar(&opts.Format, "format", "markdown", "output format: "+strings.Join(export.Formats, ", "))
	fl.StringVarP(&opts.Output, "output", "o", ".", "directory to write into")
	fl.StringVar(&opts.Title, "title", "", "document title (default: first question)")
	fl.IntVarP(&opts.Limit, "limit", "n", 50, "exchanges to export without --room (0 for all)")
	fl.BoolVar(&opts.Stdout, "stdout", false, "write to stdout instead of a file")
	fl.BoolVar(&opts.Open, "open", false, "open the file when done")
	fl.StringVar(&opts.Theme, "theme", "dark", "HTML theme: dark or light")
	fl.BoolVar(&opts.Metadata, "metadata", true, "include the metadata header")
	cmd.MarkFlagsMutuallyExclusive("stdout", "open")
	return cmd
}

func (a *app) printEntry(e storage.Entry) {
	fmt.Fprintln(a.out, RenderField("id", e.ID))
	fmt.Fprintln(a.out, RenderField("when", e.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintln(a.out, RenderField("mode", e.Mode))
	if e.RoomID != "" {
		fmt.Fprintln(a.out, RenderField("room", e.RoomID))
	}
	if e.ConversationID != "" {
		fmt.Fprintln(a.out, RenderField("conversation", e.ConversationID))
	}
	fmt.Fprintln(a.out, RenderSeparator(60))
	fmt.Fprintln(a.out, RenderConditional(UserStyle, "> "+e.Query))
	if e.Answer != "" {
		fmt.Fprintln(a.out, e.Answer)
	}
	if e.Failed() {
		fmt.Fprintln(a.out, RenderConditional(ErrorStyle, "[ERROR] "+e.Error))
	}
}
