// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// rooms.go - Room management commands.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/util"
)

func (a *app) newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rooms",
		Aliases: []string{"room"},
		Short:   "List and manage chat rooms",
	}
	cmd.AddCommand(
		a.newRoomsListCmd(),
		a.newRoomsShowCmd(),
		a.newRoomsCreateCmd(),
		a.newRoomsRenameCmd(),
		a.newRoomsDeleteCmd(),
	)
	return cmd
}

func (a *app) newRoomsListCmd() *cobra.Command {
	var opts struct {
		Page   int
		Size   int
		Status string
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			page, err := client.ListRooms(ctx, opts.Page, opts.Size, opts.Status)
			if err != nil {
				return a.fail(cmd, err)
			}
			if a.flags.JSON {
				return NewJSONResponse("rooms list", page).Print(a.out)
			}
			fmt.Fprint(a.out, formatRooms(page.Rooms))
			if page.TotalCount > len(page.Rooms) {
				fmt.Fprintln(a.out, RenderConditional(DimStyle, fmt.Sprintf(
					"page %d, %d of %d rooms (use --page)", page.Page, len(page.Rooms), page.TotalCount)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number (0-based)")
	cmd.Flags().IntVar(&opts.Size, "size", backend.DefaultRoomPageSize, "rooms per page")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only rooms with this status")
	return cmd
}

func (a *app) newRoomsShowCmd() *cobra.Command {
	var opts struct {
		Page int
		Size int
	}
	cmd := &cobra.Command{
		Use:   "show <room-id>",
		Short: "Show a room's messages and agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			detail, err := client.RoomDetail(ctx, args[0], opts.Page, opts.Size)
			if err != nil {
				return a.fail(cmd, err)
			}
			if a.flags.JSON {
				return NewJSONResponse("rooms show", detail).Print(a.out)
			}
			writeRoomDetail(a.out, detail)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 0, "message page (0-based)")
	cmd.Flags().IntVar(&opts.Size, "size", backend.DefaultMessagePageSize, "messages per page")
	return cmd
}

func (a *app) newRoomsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Create a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			room, err := client.CreateRoom(ctx, strings.Join(args, " "))
			if err != nil {
				return a.fail(cmd, err)
			}
			if a.flags.JSON {
				return NewJSONResponse("rooms create", room).Print(a.out)
			}
			fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Created room "+room.RoomID))
			return nil
		},
	}
}

func (a *app) newRoomsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <room-id> <title>",
		Short: "Rename a room",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			title := strings.Join(args[1:], " ")
			if err := client.RenameRoom(ctx, args[0], title); err != nil {
				return a.fail(cmd, err)
			}
			if a.flags.JSON {
				return NewJSONResponse("rooms rename", map[string]string{"room_id": args[0], "title": title}).Print(a.out)
			}
			fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Renamed room "+args[0]))
			return nil
		},
	}
}

func (a *app) newRoomsDeleteCmd() *cobra.Command {
	var keepHistory bool
	cmd := &cobra.Command{
		Use:   "delete <room-id>",
		Short: "Delete a room",
		Long:  "Delete a room on the backend and its entries in the local history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := runContext(cmd)
			defer stop()

			if err := client.DeleteRoom(ctx, args[0]); err != nil {
				return a.fail(cmd, err)
			}

			var purged int64
			if !keepHistory {
				if store := a.history(); store != nil {
					purged, err = store.DeleteRoom(ctx, args[0])
					store.Close()
					if err != nil {
						a.logger.Warn().Err(err).Msg("failed to purge room history")
					}
				}
			}

			if a.flags.JSON {
				return NewJSONResponse("rooms delete", map[string]any{"room_id": args[0], "history_removed": purged}).Print(a.out)
			}
			fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Deleted room "+args[0]))
			if purged > 0 {
				fmt.Fprintln(a.out, RenderConditional(DimStyle, fmt.Sprintf("removed %d local history entries", purged)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepHistory, "keep-history", false, "keep the room's local history entries")
	return cmd
}

// fail prints err as JSON in --json mode and marks it reported.
func (a *app) fail(cmd *cobra.Command, err error) error {
	if !a.flags.JSON {
		return err
	}
	if perr := NewJSONErrorResponse(cmd.CommandPath(), err, nil).Print(a.out); perr != nil {
		return perr
	}
	return reported(err)
}

// =============================================================================
// FORMATTING
// =============================================================================

func formatRooms(rooms []backend.Room) string {
	if len(rooms) == 0 {
		return "No rooms found.\n"
	}
	var sb strings.Builder
	sb.WriteString(util.Pad("ROOM", 36) + "  " + util.Pad("TITLE", 32) + "  UPDATED\n")
	for _, r := range rooms {
		sb.WriteString(util.Pad(r.RoomID, 36) + "  " +
			util.Pad(firstNonEmpty(r.Title, "(untitled)"), 32) + "  " +
			firstNonEmpty(r.UpdatedAt, r.CreatedAt) + "\n")
	}
	return sb.String()
}

func writeRoomDetail(w io.Writer, d *backend.RoomDetail) {
	fmt.Fprintln(w, RenderConditional(TitleStyle, firstNonEmpty(d.Title, "(untitled)")))
	fmt.Fprintln(w, RenderField("room", d.RoomID))
	if len(d.Agents) > 0 {
		names := make([]string, len(d.Agents))
		for i, ag := range d.Agents {
			names[i] = ag.Name
		}
		fmt.Fprintln(w, RenderField("agents", strings.Join(names, ", ")))
	}
	fmt.Fprintln(w, RenderSeparator(60))
	if len(d.Messages) == 0 {
		fmt.Fprintln(w, RenderConditional(DimStyle, "(no messages)"))
		return
	}
	for _, m := range d.Messages {
		if m.Role == "user" {
			fmt.Fprintln(w, RenderConditional(UserStyle, "> "+m.Content))
			continue
		}
		fmt.Fprintln(w, m.Content)
		fmt.Fprintln(w)
	}
}
