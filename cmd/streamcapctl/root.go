// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamcap/internal/version"
)

const defaultServer = "http://127.0.0.1:8088"

type commandContext struct {
	serverFlag *string
	jsonFlag   *bool
}

func (c *commandContext) client() *apiClient {
	server := strings.TrimSpace(*c.serverFlag)
	if server == "" {
		server = defaultServer
	}
	return newAPIClient(server)
}

func (c *commandContext) json() bool { return c.jsonFlag != nil && *c.jsonFlag }

func newRootCommand() *cobra.Command {
	var serverFlag string
	var jsonFlag bool
	ctx := &commandContext{serverFlag: &serverFlag, jsonFlag: &jsonFlag}

	rootCmd := &cobra.Command{
		Use:           "streamcapctl",
		Short:         "Control a streamcap daemon",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	server := os.Getenv("STREAMCAP_SERVER")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", server, "Daemon base URL (default "+defaultServer+")")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newSessionCommand(ctx))
	rootCmd.AddCommand(newScheduleCommand(ctx))
	rootCmd.AddCommand(newClearProfileCommand(ctx))
	return rootCmd
}
