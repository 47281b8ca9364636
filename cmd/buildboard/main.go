// Command buildboard runs the signup API and drives the signup forms from
// the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/buildboard/analytics"
	"github.com/hazyhaar/buildboard/api"
	"github.com/hazyhaar/buildboard/attribution"
	"github.com/hazyhaar/buildboard/config"
	"github.com/hazyhaar/buildboard/form"
	"github.com/hazyhaar/buildboard/gateway"
	"github.com/hazyhaar/buildboard/observability"
	"github.com/hazyhaar/buildboard/signup"
	"github.com/hazyhaar/buildboard/store"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "buildboard",
		Short:         "buildboard waitlist and referral service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", env("BUILDBOARD_CONFIG", ""), "Config file path (YAML)")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		lvl, _ := cfg.Level()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)
		return cfg, logger, nil
	}

	cmd.AddCommand(serveCmd(load), joinCmd(load), referCmd(load), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "buildboard %s\n", version)
		},
	})
	return cmd
}

type loader func() (*config.Config, *slog.Logger, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return serve(cfg, logger)
		},
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := api.New(api.Config{
		Store:       st,
		EnableMCP:   cfg.EnableMCP,
		CORSOrigins: cfg.CORS,
		Version:     version,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	srv.StartBackground(ctx.Done())

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("buildboard starting", "addr", cfg.Listen, "db", cfg.DBPath, "mcp", cfg.EnableMCP, "version", version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		return httpSrv.Shutdown(shutCtx)
	})
	g.Go(func() error {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			if err := observability.Cleanup(gctx, st.DB(), cfg.Retention); err != nil {
				logger.Warn("retention cleanup", "error", err)
			}
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
			}
		}
	})
	return g.Wait()
}

type submitFlags struct {
	location string
	values   map[string]*string
}

func joinCmd(load loader) *cobra.Command {
	var footer bool
	f := submitFlags{values: map[string]*string{}}
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the waitlist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema := form.Waitlist()
			if footer {
				schema = form.FooterEmail()
			}
			return submit(cmd, load, schema, f)
		},
	}
	cmd.Flags().BoolVar(&footer, "subscribe", false, "Email-only subscription (footer form)")
	f.bind(cmd, form.FieldName, "name", "Your name")
	f.bind(cmd, form.FieldEmail, "email", "Your email")
	f.bind(cmd, form.FieldRole, "role", "One of: "+strings.Join(signup.Roles, ", "))
	cmd.Flags().StringVar(&f.location, "location", attribution.FallbackSourceURL, "Landing URL carrying utm_* parameters")
	return cmd
}

func referCmd(load loader) *cobra.Command {
	f := submitFlags{values: map[string]*string{}}
	cmd := &cobra.Command{
		Use:   "refer",
		Short: "Refer a shop or builder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submit(cmd, load, form.Referral(), f)
		},
	}
	f.bind(cmd, form.FieldReferrer, "name", "Your name")
	f.bind(cmd, form.FieldRefEmail, "email", "Your email")
	f.bind(cmd, form.FieldRefType, "type", "One of: "+strings.Join(signup.ReferralTypes, ", "))
	f.bind(cmd, form.FieldRefName, "referral", "Shop or builder name")
	f.bind(cmd, form.FieldContact, "contact", "Instagram handle or website")
	f.bind(cmd, form.FieldNotes, "notes", "Anything we should know")
	cmd.Flags().StringVar(&f.location, "location", attribution.FallbackSourceURL, "Landing URL carrying utm_* parameters")
	return cmd
}

func (f submitFlags) bind(cmd *cobra.Command, field, flag, usage string) {
	f.values[field] = cmd.Flags().String(flag, "", usage)
}

// submit drives one form controller through a single submission against the
// configured API and prints the outcome.
func submit(cmd *cobra.Command, load loader, schema form.Schema, f submitFlags) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	if cfg.APIBase == "" {
		return errors.New("api_base (or BUILDBOARD_API_BASE) is required outside the browser")
	}
	ctx := cmd.Context()
	tracker, closeTracker := analytics.Open(ctx, cfg.Analytics, logger)
	defer closeTracker()

	attr := attribution.Resolve(f.location)
	if role := attr.Role(); schema.Name == form.Waitlist().Name && signup.IsRole(role) {
		schema = schema.WithDefault(form.FieldRole, role)
	}

	c := form.NewController(schema, gateway.New(cfg.APIBase, gateway.WithLogger(logger)),
		form.WithAttribution(attr),
		form.WithTracker(tracker),
		form.WithLogger(logger),
	)
	defer c.Unmount()
	for field, v := range f.values {
		if *v != "" {
			c.SetField(field, *v)
		}
	}

	out, err := c.Submit(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"result":     out.Kind.String(),
		"id":         out.ID,
		"created_at": out.CreatedAt,
		"message":    out.UserMessage(),
	}); err != nil {
		return err
	}
	if !out.OK() {
		return fmt.Errorf("%s: %s", out.Kind, out.UserMessage())
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
