// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/liberry/internal/api"
	"github.com/autobrr/liberry/internal/buildinfo"
	"github.com/autobrr/liberry/internal/config"
	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "liberry",
		Short: "Search books and send the best ebook release to qBittorrent",
		Long: `liberry - find a book through Hardcover, check whether Calibre already has it,
and grab the best ebook release from MyAnonaMouse or your indexers.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunSearchCommand())
	rootCmd.AddCommand(RunDownloadCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		logPath   string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/liberry/ or %APPDATA%\\liberry\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, logPath, pprofFlag)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of liberry",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/liberry/config.toml
- Windows: %APPDATA%\liberry\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := config.ResolveConfigPath(configDir)

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func RunSearchCommand() *cobra.Command {
	var (
		configDir    string
		checkLibrary bool
	)

	command := &cobra.Command{
		Use:   "search <query>",
		Short: "Search Hardcover for books",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg.ApplyLogConfig()

			svc, err := buildServices(cfg.Config, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			books, err := svc.hardcover.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if !checkLibrary {
				return printJSON(cmd, books)
			}

			type row struct {
				models.NormalizedBook
				InLibrary bool `json:"inLibrary"`
			}
			rows := make([]row, 0, len(books))
			for _, b := range books {
				author := ""
				if len(b.AuthorNames) > 0 {
					author = b.AuthorNames[0]
				}
				isbn := b.ISBN13
				if isbn == "" {
					isbn = b.ISBN10
				}
				p := svc.presence.CheckPresence(ctx, b.Title, author, isbn)
				rows = append(rows, row{NormalizedBook: b, InLibrary: p.InLibrary})
			}
			return printJSON(cmd, rows)
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().BoolVar(&checkLibrary, "check-library", false,
		"also report whether each result is already in the Calibre library")

	return command
}

func RunDownloadCommand() *cobra.Command {
	var (
		configDir string
		query     models.BookQuery
	)

	command := &cobra.Command{
		Use:   "download",
		Short: "Find the best ebook release for a book and send it to qBittorrent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg.ApplyLogConfig()

			svc, err := buildServices(cfg.Config, nil)
			if err != nil {
				return err
			}

			result, err := svc.orchestrator.Acquire(cmd.Context(), query)
			if domain.IsNoResults(err) {
				return fmt.Errorf("download failed: %w", err)
			}
			if err != nil {
				return err
			}

			if !result.Success {
				return fmt.Errorf("download failed: %s", result.ErrorReason)
			}

			if result.Selected == nil {
				cmd.Printf("Download started via %s\n", result.SourceName)
				return nil
			}
			cmd.Printf("Download started via %s: %s (%s)\n",
				result.SourceName, result.Selected.Title, result.Selected.HumanSize())
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&query.Title, "title", "", "book title")
	command.Flags().StringVar(&query.Author, "author", "", "book author")
	command.Flags().StringVar(&query.ISBN, "isbn", "", "book ISBN")
	command.Flags().StringVar(&query.Year, "year", "", "publication year")
	_ = command.MarkFlagRequired("title")

	return command
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type Application struct {
	configDir string
	logPath   string
	pprofFlag bool
}

func NewApplication(configDir, logPath string, pprofFlag bool) *Application {
	return &Application{
		configDir: configDir,
		logPath:   logPath,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	if app.logPath != "" {
		cfg.Config.LogPath = app.logPath
	}
	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting liberry")

	var metricsManager *metrics.Manager
	if cfg.Config.MetricsEnabled {
		metricsManager = metrics.NewMetricsManager()
	}

	svc, err := buildServices(cfg.Config, metricsManager)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	cfg.RegisterReloadListener(func(c *domain.Config) {
		if err := svc.engine.SetFilter(c.ReleaseFilter); err != nil {
			log.Error().Err(err).Msg("Keeping previous release filter")
			return
		}
		log.Info().Msg("Release filter reloaded")
	})

	httpServer := api.NewServer(&api.Dependencies{
		Config:       cfg,
		Version:      buildinfo.Version,
		BookSearcher: svc.hardcover,
		Acquirer:     svc.orchestrator,
		Presence:     svc.presence,
		Prober:       svc.prober,
		Metrics:      metricsManager,
	})

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
		log.Info().Msgf("Listening on %s:%d", cfg.Config.Host, cfg.Config.Port)
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	var metricsServer *metrics.MetricsServer
	if metricsManager != nil {
		metricsServer = metrics.NewMetricsServer(
			metricsManager,
			cfg.Config.MetricsHost,
			cfg.Config.MetricsPort,
			cfg.Config.MetricsBasicAuthUsers,
		)

		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errorChannel <- err
			}
		}()
	}

	if cfg.Config.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			log.Info().Msg("Access profiling at: http://localhost:6060/debug/pprof/")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("got error during metrics server shutdown")
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
		cancel()
		os.Exit(1)
	}

	log.Info().Msg("Server stopped")
}
