package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crosswire/intercom/internal/config"
	"github.com/crosswire/intercom/internal/console"
	"github.com/crosswire/intercom/internal/dashboard"
	"github.com/crosswire/intercom/internal/db"
	"github.com/crosswire/intercom/internal/history"
	"github.com/crosswire/intercom/internal/protocol"
	"github.com/crosswire/intercom/internal/reconcile"
	"github.com/crosswire/intercom/internal/signaling"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the intercom console daemon",
		Long:  "Connects to the signaling server, maintains the call state, and serves the local dashboard until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	gormDB, err := db.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	histLog, err := history.NewLog(history.LogOpts{
		DB: gormDB,
		LabelFor: func(id protocol.StationID) []string {
			return cfg.StationLabels(string(id))
		},
	})
	if err != nil {
		return err
	}

	adapter, err := signaling.NewWSAdapter(signaling.WSOpts{
		URL:                  cfg.Server.URL,
		Token:                fileToken(cfg.Auth.TokenFile),
		MaxReconnectAttempts: cfg.Server.MaxReconnectAttempts,
	})
	if err != nil {
		return err
	}
	commander, err := signaling.NewCommander(adapter)
	if err != nil {
		return err
	}

	identity := console.NewIdentity()
	stations := console.NewRegistry()
	stations.SetDefaultStation(protocol.StationID(cfg.Call.DefaultStation))
	directory := console.NewDirectory()

	ignored := make([]protocol.ClientID, 0, len(cfg.Call.Ignored))
	for _, id := range cfg.Call.Ignored {
		ignored = append(ignored, protocol.ClientID(id))
	}
	session, err := console.NewSession(console.SessionOpts{
		Identity:        identity,
		Stations:        stations,
		Directory:       directory,
		Commander:       commander,
		Recorder:        histLog,
		AutoHangupAfter: time.Duration(cfg.Call.AutoHangupSeconds) * time.Second,
		IgnoredCallers:  ignored,
	})
	if err != nil {
		return err
	}

	reconciler, err := reconcile.NewReconciler(reconcile.ReconcilerOpts{
		Adapter:    adapter,
		Identity:   identity,
		Stations:   stations,
		Directory:  directory,
		Session:    session,
		History:    histLog,
		Position:   protocol.PositionID(cfg.Server.Position),
		ResyncCron: cfg.Resync.Cron,
		Out:        out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		err := dashboard.Start(ctx, dashboard.StartOpts{
			Console: reconciler,
			History: histLog,
			Port:    cfg.Dashboard.Port,
			Out:     out,
		})
		if err != nil {
			log.Printf("icom: dashboard: %v", err)
		}
	}()

	return reconciler.Run(ctx)
}

// fileToken reads the stored login token on every connection attempt.
func fileToken(path string) signaling.TokenFunc {
	return func() (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file %s (run `icom login` first): %w", path, err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("token file %s is empty", path)
		}
		return token, nil
	}
}
