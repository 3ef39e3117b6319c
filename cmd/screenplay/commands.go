// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianScreenplay/pkg/logging"
	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/pkg/ux"
	"github.com/AleutianAI/AleutianScreenplay/services/llm"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/config"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/server"
)

// backend is a collaborator stack opened for one command.
type backend struct {
	generator llm.LLMClient
	probe     llm.LLMClient
	close     func() error
}

// app holds state shared by all commands.
type app struct {
	configPath string
	outputMode string
	logLevel   string
	jsonOutput bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg    config.Config
	logger *logging.Logger

	// openBackend builds the collaborator. Tests replace it with a stub.
	openBackend func(cfg *config.Config, logger *slog.Logger) (*backend, error)
}

func newApp() *app {
	return &app{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		openBackend: openConfiguredBackend,
	}
}

func openConfiguredBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	c, err := cfg.BuildClient(logger)
	if err != nil {
		return nil, err
	}
	return &backend{generator: c.Generator, probe: c.Backend, close: c.Close}, nil
}

// printer returns a Printer for stdout, detecting the mode unless
// --output was given.
func (a *app) printer() *ux.Printer {
	if a.outputMode != "" {
		return ux.NewPrinter(a.stdout, ux.ParseMode(a.outputMode))
	}
	if f, ok := a.stdout.(*os.File); ok {
		return ux.NewPrinter(a.stdout, ux.DetectMode(f))
	}
	return ux.NewPrinter(a.stdout, ux.ModeMachine)
}

// setup loads configuration and the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return withExitCode(exitError, fmt.Errorf("load config: %w", err))
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return withExitCode(exitError, err)
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "screenplay",
		JSON:    cfg.Log.JSON,
		Output:  a.stderr,
	})
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.logger != nil {
		return a.logger.Close()
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:                "screenplay",
		Short:              "Analyze screenplays through a seven-station pipeline",
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&a.outputMode, "output", "", "Output style: rich, plain or machine (default: detect)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newAnalyzeCmd(a),
		newEstimateCmd(a),
		newHealthCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// readScreenplay reads a file, or stdin when path is "-".
func (a *app) readScreenplay(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read screenplay: %w", err)
	}
	return string(data), nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		title  string
		preset string
		from   int
		to     int
		skip   []int
		out    string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Run the analysis pipeline over a screenplay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readScreenplay(args[0])
			if err != nil {
				return withExitCode(exitError, err)
			}
			if title == "" && args[0] != "-" {
				title = args[0]
			}

			cfg := a.cfg
			if preset != "" {
				if err := cfg.ApplyPreset(preset); err != nil {
					return withExitCode(exitError, err)
				}
			}

			logger := a.logger.Slog()
			be, err := a.openBackend(&cfg, logger)
			if err != nil {
				return withExitCode(exitError, fmt.Errorf("open backend: %w", err))
			}
			defer func() { _ = be.close() }()

			sched, err := server.NewScheduler(cfg, be.generator, logger)
			if err != nil {
				return withExitCode(exitError, err)
			}
			opts := pipeline.RunOptions{StartFromStage: from, EndAtStage: to, SkipStages: skip}
			if err := sched.ValidateOptions(opts); err != nil {
				return withExitCode(exitError, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := a.printer()
			var res *pipeline.Result
			if a.jsonOutput {
				res = sched.Execute(ctx, text, title, opts)
			} else {
				spin := p.NewSpinner(fmt.Sprintf("Analyzing %s (%s preset)", orUntitled(title), cfg.Preset))
				spin.Start()
				res = sched.Execute(ctx, text, title, opts)
				spin.Stop()
			}

			if out != "" {
				if err := writeResultFile(out, res); err != nil {
					return withExitCode(exitError, err)
				}
			}
			if a.jsonOutput {
				if err := a.writeJSON(res); err != nil {
					return withExitCode(exitError, err)
				}
			} else {
				renderResult(p, res)
			}
			if !res.Success {
				return withExitCode(exitFindings, fmt.Errorf("%d station(s) failed", res.FailedCount))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Project title (default: file name)")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Retry preset: quick, standard or robust")
	cmd.Flags().IntVar(&from, "from", 0, "First station to run (1-7)")
	cmd.Flags().IntVar(&to, "to", 0, "Last station to run (1-7)")
	cmd.Flags().IntSliceVar(&skip, "skip", nil, "Stations to skip, e.g. --skip 4,5")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the JSON result to this file")
	cmd.Flags().BoolVar(&a.jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func writeResultFile(path string, res *pipeline.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func newEstimateCmd(a *app) *cobra.Command {
	var (
		length int
		preset string
	)
	cmd := &cobra.Command{
		Use:   "estimate [file|-]",
		Short: "Predict how long a full analysis takes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				text, err := a.readScreenplay(args[0])
				if err != nil {
					return withExitCode(exitError, err)
				}
				length = len(text)
			}
			if length <= 0 {
				return withExitCode(exitError, errors.New("give a file or a positive --length"))
			}
			cfg := a.cfg
			if preset != "" {
				if err := cfg.ApplyPreset(preset); err != nil {
					return withExitCode(exitError, err)
				}
			}
			est := pipeline.EstimateAnalysisTime(length, cfg.Pipeline.InterStageDelay)
			if a.jsonOutput {
				return a.writeJSON(server.EstimateResponse{Estimate: est, TotalSeconds: est.Total.Seconds(), Preset: cfg.Preset})
			}
			renderEstimate(a.printer(), length, cfg.Preset, est)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 0, "Text length in characters, instead of a file")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Retry preset: quick, standard or robust")
	cmd.Flags().BoolVar(&a.jsonOutput, "json", false, "Print the estimate as JSON")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the configured collaborator backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			be, err := a.openBackend(&a.cfg, a.logger.Slog())
			if err != nil {
				return withExitCode(exitError, fmt.Errorf("open backend: %w", err))
			}
			defer func() { _ = be.close() }()

			status := llm.HealthCheck(cmd.Context(), be.probe)
			if a.jsonOutput {
				if err := a.writeJSON(status); err != nil {
					return withExitCode(exitError, err)
				}
			} else {
				renderHealth(a.printer(), status)
			}
			if !status.Healthy {
				return withExitCode(exitFindings, fmt.Errorf("backend %s is unhealthy", status.Backend))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := a.logger.Slog()
			if cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
			if err != nil {
				return withExitCode(exitError, fmt.Errorf("init telemetry: %w", err))
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
				}
			}()

			be, err := a.openBackend(&cfg, logger)
			if err != nil {
				return withExitCode(exitError, fmt.Errorf("open backend: %w", err))
			}
			defer func() { _ = be.close() }()

			srv := server.New(cfg, be.generator, be.probe, logger)

			if a.configPath != "" {
				w, err := config.NewWatcher(a.configPath, srv.UpdateConfig, logger)
				if err != nil {
					logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
				} else {
					go w.Start(ctx)
					defer func() { _ = w.Stop() }()
				}
			}

			if err := srv.Run(ctx); err != nil {
				return withExitCode(exitError, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return withExitCode(exitError, err)
			}
			if err := enc.Close(); err != nil {
				return withExitCode(exitError, err)
			}
			key := "not set"
			if a.cfg.HasAPIKey() {
				key = "set (sealed)"
			}
			fmt.Fprintf(a.stdout, "# api key: %s\n", key)
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.stdout, "screenplay %s\n", version)
			return nil
		},
	}
	// Printing the version needs no configuration.
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }
	return cmd
}

func orUntitled(title string) string {
	if title == "" {
		return "untitled screenplay"
	}
	return title
}
