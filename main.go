package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"kahaani/agent"
	"kahaani/client"
	"kahaani/config"
	"kahaani/cost"
	"kahaani/history"
	"kahaani/pipeline"
	"kahaani/provider"
	"kahaani/router"
	"kahaani/rss"
	"kahaani/server"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kahaani",
		Short:         "Kahaani AI: audio story scripts from what India is talking about",
		Long:          "Kahaani AI picks three trending Indian topics and writes long-form audio scripts for them.\nRun without a subcommand to open the terminal app.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment and .env are always read")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTUICmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the generation endpoint and health probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !cfg.Configured() {
				logger.Warn("OPENAI_API_KEY is not set, generation requests will return 503")
			}

			tracker := cost.NewTracker()
			orch, closeFn, err := newOrchestrator(cfg, logger, tracker, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			srv, err := server.New(server.Options{Config: cfg, Generator: orch, Logger: logger, Version: Version})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = srv.Run(ctx)

			total := tracker.Total()
			logger.Info("provider usage", "input_tokens", total.InputTokens, "output_tokens", total.OutputTokens, "cost_usd", total.Cost)
			return err
		},
	}
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal app (talks to the endpoint in client.endpoint)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI()
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		mode     string
		language string
		local    bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one set of scripts and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			store, err := newHistory(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var resp *pipeline.Response
			if local {
				resp, err = generateLocal(ctx, cfg, logger, store, mode, language)
			} else {
				var c *client.Client
				c, err = client.New(client.Options{Endpoint: cfg.Client.Endpoint, Timeout: cfg.Client.Timeout, History: store, Logger: logger})
				if err != nil {
					return err
				}
				resp, err = c.Generate(ctx, mode, language)
			}
			if err != nil {
				logger.Error("generation failed", "error", err)
				return errors.New(client.FriendlyMessage(err))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			rendered, err := renderMarkdown(responseMarkdown(resp), 100)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(agent.ModeBoth), "content mode: inform|imagine|both")
	cmd.Flags().StringVar(&language, "language", string(agent.LanguageEnglish), "script language: en|hi|hinglish")
	cmd.Flags().BoolVar(&local, "local", false, "run the pipeline in this process instead of calling the endpoint")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", pipeline.ProductName, Version)
			return nil
		},
	}
}

func setup() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "kahaani",
	})
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// newChatClient builds one provider client per key, behind a router when
// there is more than one. It returns nil when no key is configured.
func newChatClient(cfg *config.Config, logger *log.Logger) (agent.ChatClient, func()) {
	keys := cfg.APIKeys()
	if len(keys) == 0 {
		return nil, func() {}
	}

	providers := make([]*provider.APIClient, len(keys))
	clients := make([]router.Client, len(keys))
	for i, key := range keys {
		providers[i] = provider.NewAPIClient(provider.APIClientConfig{
			Name:              fmt.Sprintf("key-%d", i+1),
			APIKey:            key,
			BaseURL:           cfg.LLM.BaseURL,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			Logger:            logger,
		})
		clients[i] = providers[i]
	}
	closeFn := func() {
		for _, p := range providers {
			p.Close()
		}
	}

	if len(providers) == 1 {
		return providers[0], closeFn
	}
	logger.Info("routing model calls across keys", "keys", len(providers))
	return router.NewRouter(clients, logger), closeFn
}

func newOrchestrator(cfg *config.Config, logger *log.Logger, tracker *cost.Tracker, progress chan<- pipeline.ProgressUpdate) (*pipeline.Orchestrator, func(), error) {
	chat, closeFn := newChatClient(cfg, logger)

	opts := agent.Options{
		Model:        cfg.LLM.Model,
		ResponseMode: agent.ParseResponseMode(cfg.LLM.ResponseMode),
		Tracker:      tracker,
		Logger:       logger,
	}
	orch, err := pipeline.New(pipeline.Options{
		Config:   cfg,
		Feeds:    rss.NewFetcher(cfg.Feeds.Timeout, logger),
		Research: agent.NewResearchAgent(chat, opts),
		Writer:   agent.NewWriterAgent(chat, opts),
		Logger:   logger,
		Progress: progress,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return orch, closeFn, nil
}

func newHistory(cfg *config.Config, logger *log.Logger) (*history.Store, error) {
	backend, err := history.NewFileBackend(cfg.History.Dir, cfg.History.QuotaBytes)
	if err != nil {
		return nil, err
	}
	return history.NewStore(backend, history.Options{
		Capacity:         cfg.History.Capacity,
		FallbackCapacity: cfg.History.FallbackCapacity,
		Logger:           logger,
	}), nil
}

// generateLocal runs the pipeline in-process with the same exclusion and
// history behaviour as the endpoint client.
func generateLocal(ctx context.Context, cfg *config.Config, logger *log.Logger, store *history.Store, mode, language string) (*pipeline.Response, error) {
	tracker := cost.NewTracker()
	progress := make(chan pipeline.ProgressUpdate, 16)
	orch, closeFn, err := newOrchestrator(cfg, logger, tracker, progress)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Err == nil {
				logger.Info(update.Message, "state", update.State)
			}
		}
	}()

	resp, err := orch.Generate(ctx, pipeline.NewRequest(mode, language, store.UsedTopics()))
	close(progress)
	<-done
	if err != nil {
		return nil, err
	}

	for stage, usage := range tracker.Stats() {
		logger.Debug("stage usage", "stage", stage, "calls", usage.CallCount, "tokens", usage.Usage.TotalTokens)
	}
	store.Append(resp)
	return resp, nil
}

func runTUI() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Logs would tear the alt screen, so they go to a file next to history.
	if err := os.MkdirAll(cfg.History.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.History.Dir, "kahaani.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger := log.NewWithOptions(logFile, log.Options{ReportTimestamp: true, Prefix: "kahaani"})
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	store, err := newHistory(cfg, logger)
	if err != nil {
		return err
	}
	c, err := client.New(client.Options{Endpoint: cfg.Client.Endpoint, Timeout: cfg.Client.Timeout, History: store, Logger: logger})
	if err != nil {
		return err
	}

	program := tea.NewProgram(initialModel(c, store), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
