package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyboard/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintf(out, "Gemini API key: %s\n", configuredLabel(cfg.Gemini.APIKey != ""))
			fmt.Fprintf(out, "OpenAI API key: %s\n", configuredLabel(cfg.OpenAI.APIKey != ""))

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				available := "yes"
				if !status.Available {
					available = "no"
				}
				rows = append(rows, []string{status.Name, status.Command, available, status.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Tool", "Command", "Available", "Detail"}, rows))
			return nil
		},
	}
}

func configuredLabel(set bool) string {
	if set {
		return "configured"
	}
	return "not set"
}
