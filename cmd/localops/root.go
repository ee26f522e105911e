package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/localops/config"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "localops",
		Short: "Governed local operations over MCP",
		Long: `localops is an MCP server that exposes file, command, system and AI
tools over stdio. Every tool call is validated, rate limited and
concurrency bounded before it touches the host.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the localops version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "localops", Version)
		},
	}
}

func newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if !force {
				if _, err := config.LoadFrom(path); err == nil {
					return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
				}
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
