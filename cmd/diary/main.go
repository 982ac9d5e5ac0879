package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pbaille/diary/internal/api"
	"github.com/pbaille/diary/internal/classifier"
	"github.com/pbaille/diary/internal/config"
	"github.com/pbaille/diary/internal/diary"
	"github.com/pbaille/diary/internal/domain"
	"github.com/pbaille/diary/internal/logging"
	"github.com/pbaille/diary/internal/metrics"
	"github.com/pbaille/diary/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "diary",
		Short:        "Diary with automatic emotion tagging",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/diary/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(writeCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(emotionsCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

// app bundles what every command needs
type app struct {
	cfg     config.Config
	log     *slog.Logger
	store   *store.Store
	service *diary.Service
}

func (a *app) Close() error {
	return a.store.Close()
}

func openApp(registry prometheus.Registerer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if registry != nil {
		if m, err = metrics.New(registry); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	clf := classifier.New(classifier.Options{
		Endpoint: cfg.Classifier.Endpoint,
		APIKey:   cfg.Classifier.APIKey,
		Host:     cfg.Classifier.Host,
		Language: cfg.Classifier.Language,
		Timeout:  cfg.Classifier.Timeout,
		Logger:   log,
	})

	return &app{
		cfg:     cfg,
		log:     log,
		store:   s,
		service: diary.New(s, clf, diary.Options{Logger: log, Metrics: m}),
	}, nil
}

func writeCmd() *cobra.Command {
	var (
		emotion string
		at      string
	)

	cmd := &cobra.Command{
		Use:   "write [text]",
		Short: "Write a new entry",
		Long: `Examples:
	diary write "Great run along the river" --emotion joy
	diary write "I lost my keys today"             # emotion inferred by the classifier`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			draft := a.service.NewDraft()
			if at != "" {
				ts, err := time.Parse(time.RFC3339Nano, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				draft.Timestamp = ts
			}

			if emotion == "" {
				fmt.Print("Classifying... ")
			}
			entry, err := a.service.Save(cmd.Context(), diary.SaveRequest{
				Text:      strings.Join(args, " "),
				Emotion:   emotion,
				Timestamp: draft.Timestamp,
			})
			if err != nil {
				if emotion == "" {
					fmt.Println("failed")
				}
				if errors.Is(err, domain.ErrClassification) || errors.Is(err, domain.ErrEmptyClassification) {
					return fmt.Errorf("%w\nentry not saved; pick an emotion with --emotion (see 'diary emotions')", err)
				}
				return err
			}
			if emotion == "" {
				fmt.Println("done")
			}

			fmt.Println(renderEntry(entry, true))
			return nil
		},
	}

	cmd.Flags().StringVarP(&emotion, "emotion", "e", "", "emotion label or glyph; skips classification")
	cmd.Flags().StringVar(&at, "at", "", "entry timestamp, RFC3339 (default now)")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.service.Entries(cmd.Context())
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No entries yet. Use 'diary write' to create one.")
				return nil
			}

			fmt.Print(renderList(entries, limit))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search entries by text, date or emotion",
		Long: `Examples:
	diary search keys            # text
	diary search 2024-03-05      # date
	diary search sadness         # primary emotion (label or glyph)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			entries, err := a.service.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No matching entries found.")
				return nil
			}

			fmt.Println(titleStyle.Render("Search") + "  " + metaStyle.Render("query: ") + query)
			fmt.Print(renderList(entries, 0))
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [timestamp]",
		Short: "Show entry details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := time.Parse(time.RFC3339Nano, args[0])
			if err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", args[0], err)
			}

			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.service.Get(cmd.Context(), ts)
			if err != nil {
				return err
			}

			fmt.Println(renderEntry(entry, true))
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [timestamp]",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := time.Parse(time.RFC3339Nano, args[0])
			if err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", args[0], err)
			}

			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.Delete(cmd.Context(), ts); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
}

func emotionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emotions",
		Short: "List the emotion vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, e := range domain.Emotions() {
				fmt.Printf("  %s  %s\n", e.Glyph, e.Label)
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := prometheus.NewRegistry()
			a, err := openApp(registry)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.New(a.service, registry, a.log).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info("starting server", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				a.log.Info("shutting down server")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default from config, :8080)")
	return cmd
}
