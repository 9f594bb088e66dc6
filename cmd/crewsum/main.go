// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command crewsum summarises business documents with an analyst and a writer
// role backed by a hosted language model.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllopis/crewsum/pkg/config"
	"github.com/jllopis/crewsum/pkg/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigPath = "config/config.yaml"

// app holds global flags and the state shared by subcommands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	profile    string
	sets       []string

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		cliErr := asCLIError(err)
		cliErr.Print(stderr)
		return cliErr.ExitCode()
	}
	return 0
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crewsum",
		Short:         "Summarise business documents with an analyst and a writer role",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return NewInvalidArgumentError(cmd.Name(), err.Error())
	})
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to crewsum config file (default "+defaultConfigPath+" when present)")
	root.PersistentFlags().StringVar(&a.profile, "profile", "", "Overlay config.<profile>.yaml on top of the config file")
	root.PersistentFlags().StringArrayVar(&a.sets, "set", nil, "Override a config value (key=value, repeatable)")

	root.AddCommand(
		a.newSummariseCmd(),
		a.newValidateCmd(),
		a.newServeCmd(),
		a.newVersionCmd(),
	)
	return root
}

func (a *app) loadConfig() error {
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.LoadWithOptions(config.LoadOptions{Path: path, Profile: a.profile, Sets: a.sets})
	if err != nil {
		return NewConfigError(err, path)
	}
	a.cfg = cfg
	telemetry.ConfigureSlog(a.stderr, cfg.Log.Level, cfg.Log.Format)
	return nil
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crewsum version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(a.stdout, "crewsum "+version+"\n")
			return err
		},
	}
}
