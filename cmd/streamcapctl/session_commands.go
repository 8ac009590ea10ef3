// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Start and manage capture sessions",
	}
	sessionCmd.AddCommand(newSessionStartCommand(ctx))
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionGetCommand(ctx))
	sessionCmd.AddCommand(newSessionSelectCommand(ctx))
	sessionCmd.AddCommand(newSessionCloseCommand(ctx))
	sessionCmd.AddCommand(newSessionKeepOpenCommand(ctx))
	return sessionCmd
}

type startRequest struct {
	URL          string `json:"url"`
	Resolution   string `json:"resolution,omitempty"`
	Framerate    string `json:"framerate,omitempty"`
	Format       string `json:"format,omitempty"`
	Filename     string `json:"filename,omitempty"`
	AutoDownload bool   `json:"autoDownload"`
}

func newSessionStartCommand(ctx *commandContext) *cobra.Command {
	var req startRequest
	cmd := &cobra.Command{
		Use:   "start <url>",
		Short: "Open a page and watch it for streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			var snap model.Snapshot
			if err := ctx.client().do(cmd.Context(), http.MethodPost, "/sessions", req, &snap); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s started (%s)\n", snap.ID, colorState(cmd, string(snap.State)))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Resolution, "resolution", "", "Preferred resolution: best, worst or WxH")
	cmd.Flags().StringVar(&req.Framerate, "framerate", "", "Preferred framerate: best, worst or a number")
	cmd.Flags().StringVar(&req.Format, "format", "", "Output container (mp4, mkv, ts)")
	cmd.Flags().StringVar(&req.Filename, "filename", "", "Output file name")
	cmd.Flags().BoolVar(&req.AutoDownload, "auto", false, "Select a stream and download without asking")
	return cmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snaps []model.Snapshot
			if err := ctx.client().do(cmd.Context(), http.MethodGet, "/sessions", nil, &snaps); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
				return nil
			}
			rows := make([][]string, 0, len(snaps))
			for _, s := range snaps {
				written := "-"
				if s.Download != nil {
					written = byteSize(s.Download.BytesWritten)
				}
				rows = append(rows, []string{
					s.ID,
					colorState(cmd, string(s.State)),
					s.URL,
					strconv.Itoa(len(s.DetectedStreams)),
					written,
					relTime(&s.CreatedAt),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "State", "URL", "Streams", "Written", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newSessionGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one session with its detected streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap model.Snapshot
			if err := ctx.client().do(cmd.Context(), http.MethodGet, "/sessions/"+url.PathEscape(args[0]), nil, &snap); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, snap)
			}
			printSession(cmd, &snap)
			return nil
		},
	}
}

func printSession(cmd *cobra.Command, s *model.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:   %s\n", s.ID)
	fmt.Fprintf(out, "State:     %s\n", colorState(cmd, string(s.State)))
	fmt.Fprintf(out, "URL:       %s\n", s.URL)
	if s.ScheduleID != "" {
		fmt.Fprintf(out, "Schedule:  %s\n", s.ScheduleID)
	}
	fmt.Fprintf(out, "Kept open: %s\n", yesNo(s.KeptOpen))
	if s.Error != nil {
		fmt.Fprintf(out, "Error:     %s %s\n", s.Error.Reason, s.Error.Message)
	}
	if s.Download != nil {
		fmt.Fprintf(out, "Output:    %s (%s, %s)\n", s.Download.OutputPath, s.Download.State, byteSize(s.Download.BytesWritten))
	}
	if len(s.DetectedStreams) == 0 {
		return
	}
	rows := make([][]string, 0, len(s.DetectedStreams))
	for i, d := range s.DetectedStreams {
		fps := "-"
		if d.Framerate > 0 {
			fps = strconv.FormatFloat(d.Framerate, 'f', -1, 64)
		}
		mark := ""
		if s.SelectedStream != nil && s.SelectedStream.URL == d.URL {
			mark = "*"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1) + mark, dashIfEmpty(d.Name), dashIfEmpty(d.Resolution), fps, d.URL})
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "Name", "Resolution", "FPS", "URL"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func newSessionSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id> <stream-url|index>",
		Short: "Download one of the detected streams",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			path := "/sessions/" + url.PathEscape(args[0])
			streamURL := args[1]
			if idx, err := strconv.Atoi(streamURL); err == nil {
				var snap model.Snapshot
				if err := client.do(cmd.Context(), http.MethodGet, path, nil, &snap); err != nil {
					return err
				}
				if idx < 1 || idx > len(snap.DetectedStreams) {
					return fmt.Errorf("stream index %d out of range (1-%d)", idx, len(snap.DetectedStreams))
				}
				streamURL = snap.DetectedStreams[idx-1].URL
			}
			var snap model.Snapshot
			if err := client.do(cmd.Context(), http.MethodPost, path+"/select", map[string]string{"url": streamURL}, &snap); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s\n", snap.ID, colorState(cmd, string(snap.State)))
			return nil
		},
	}
}

func newSessionCloseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "close <id>",
		Aliases: []string{"rm"},
		Short:   "Close a session and stop its download",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap model.Snapshot
			if err := ctx.client().do(cmd.Context(), http.MethodDelete, "/sessions/"+url.PathEscape(args[0]), nil, &snap); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s closed (%s)\n", snap.ID, colorState(cmd, string(snap.State)))
			return nil
		},
	}
}

func newSessionKeepOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keep-open <id>",
		Short: "Keep the browser open after the download ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap model.Snapshot
			if err := ctx.client().do(cmd.Context(), http.MethodPost, "/sessions/"+url.PathEscape(args[0])+"/keep-open", nil, &snap); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s will stay open\n", snap.ID)
			return nil
		},
	}
}

func newClearProfileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-profile",
		Short: "Close every session and wipe the browser profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().do(cmd.Context(), http.MethodPost, "/browser/clear-profile", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Browser profile cleared")
			return nil
		},
	}
}
