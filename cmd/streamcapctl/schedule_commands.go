// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// scheduleView mirrors the daemon's schedule record.
type scheduleView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	StartTime     string     `json:"startTime"`
	EndTime       string     `json:"endTime"`
	Repeat        bool       `json:"repeat"`
	Daily         bool       `json:"daily"`
	Resolution    string     `json:"resolution"`
	Framerate     string     `json:"framerate"`
	Format        string     `json:"format"`
	Status        string     `json:"status"`
	NextCheck     *time.Time `json:"nextCheck"`
	LastCheck     *time.Time `json:"lastCheck,omitempty"`
	LastSessionID string     `json:"lastSessionId,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func (s scheduleView) kind() string {
	switch {
	case s.Daily:
		return "daily"
	case s.Repeat:
		return "weekly"
	}
	return "once"
}

type scheduleInput struct {
	Name       string `json:"name,omitempty"`
	URL        string `json:"url"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Repeat     bool   `json:"repeat"`
	Daily      bool   `json:"daily"`
	Resolution string `json:"resolution,omitempty"`
	Framerate  string `json:"framerate,omitempty"`
	Format     string `json:"format,omitempty"`
}

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"schedules"},
		Short:   "Manage recurring capture windows",
	}
	scheduleCmd.AddCommand(newScheduleListCommand(ctx))
	scheduleCmd.AddCommand(newScheduleAddCommand(ctx))
	scheduleCmd.AddCommand(newScheduleRemoveCommand(ctx))
	scheduleCmd.AddCommand(newScheduleRefreshCommand(ctx))
	return scheduleCmd
}

func newScheduleListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List schedules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []scheduleView
			if err := ctx.client().do(cmd.Context(), http.MethodGet, "/schedules", nil, &items); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedules")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, s := range items {
				status := colorState(cmd, s.Status)
				if s.Error != "" {
					status += " (" + s.Error + ")"
				}
				rows = append(rows, []string{
					s.ID,
					dashIfEmpty(s.Name),
					s.kind(),
					s.StartTime + " - " + s.EndTime,
					status,
					relTime(s.NextCheck),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Kind", "Window", "Status", "Next check"},
				rows, nil,
			))
			return nil
		},
	}
}

func newScheduleAddCommand(ctx *commandContext) *cobra.Command {
	var in scheduleInput
	cmd := &cobra.Command{
		Use:   "add <url> <start> <end>",
		Short: "Add a capture window",
		Long: `Add a capture window. Start and end are RFC 3339 date-times, or HH:MM
with --daily.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.URL, in.StartTime, in.EndTime = args[0], args[1], args[2]
			var created scheduleView
			if err := ctx.client().do(cmd.Context(), http.MethodPost, "/schedules", in, &created); err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s added (%s), next check %s\n", created.ID, created.kind(), relTime(created.NextCheck))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	cmd.Flags().BoolVar(&in.Daily, "daily", false, "Repeat every day at the given HH:MM times")
	cmd.Flags().BoolVar(&in.Repeat, "weekly", false, "Repeat every week")
	cmd.Flags().StringVar(&in.Resolution, "resolution", "", "Preferred resolution")
	cmd.Flags().StringVar(&in.Framerate, "framerate", "", "Preferred framerate")
	cmd.Flags().StringVar(&in.Format, "format", "", "Output container")
	cmd.MarkFlagsMutuallyExclusive("daily", "weekly")
	return cmd
}

func newScheduleRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a schedule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().do(cmd.Context(), http.MethodDelete, "/schedules/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s deleted\n", args[0])
			return nil
		},
	}
}

func newScheduleRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute next checks and re-read the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Refreshed int `json:"refreshed"`
			}
			if err := ctx.client().do(cmd.Context(), http.MethodPost, "/schedules/refresh", nil, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d schedules\n", out.Refreshed)
			return nil
		},
	}
}
